package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"clinic-queue/pkg/apperror"
	"clinic-queue/pkg/jwt"
	"clinic-queue/pkg/response"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UsernameKey contextKey = "username"
	RoleKey     contextKey = "role"
	TokenIDKey  contextKey = "token_id"
)

var (
	ErrMissingToken  = errors.New("authorization token is required")
	ErrInvalidHeader = errors.New("invalid authorization header format")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrTokenRevoked  = errors.New("token has been revoked")
)

type AuthMiddleware struct {
	jwtService  *jwt.JWTService
	redisClient *redis.Client
}

func NewAuthMiddleware(jwtService *jwt.JWTService, redisClient *redis.Client) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService:  jwtService,
		redisClient: redisClient,
	}
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.verify(r)
		if err != nil {
			switch {
			case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidHeader),
				errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenRevoked):
				response.Unauthorized(w, capitalize(err.Error()))
			default:
				response.FromError(w, apperror.Transient("session store unavailable", err), "Failed to validate token")
			}
			return
		}

		ctx := WithIdentity(r.Context(), claims.UserID, claims.Username, claims.Role)
		ctx = context.WithValue(ctx, TokenIDKey, claims.TokenID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthenticateRequest validates a realtime handshake.
// Browsers cannot set headers on WebSocket upgrades, so ?token= is accepted too.
func (m *AuthMiddleware) AuthenticateRequest(r *http.Request) (uuid.UUID, string, error) {
	claims, err := m.verify(r)
	if err != nil {
		return uuid.Nil, "", err
	}
	return claims.UserID, claims.Role, nil
}

func (m *AuthMiddleware) verify(r *http.Request) (*jwt.Claims, error) {
	tokenString, err := bearerToken(r)
	if err != nil {
		return nil, err
	}

	claims, err := m.jwtService.ValidateToken(tokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != jwt.AccessToken {
		return nil, ErrInvalidToken
	}

	exists, err := m.redisClient.Exists(r.Context(), jwt.AccessTokenKey(claims.UserID, claims.TokenID)).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
		return "", ErrMissingToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ErrInvalidHeader
	}
	return parts[1], nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// WithIdentity stores the caller identity the way Authenticate does
func WithIdentity(ctx context.Context, userID uuid.UUID, username, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UsernameKey, username)
	return context.WithValue(ctx, RoleKey, role)
}

// GetUserIDFromContext extracts user ID from context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// ActorFromContext returns the caller id for audit trails, or nil when anonymous
func ActorFromContext(ctx context.Context) *uuid.UUID {
	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		return nil
	}
	return &userID
}

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

// GetTokenIDFromContext extracts token ID from context
func GetTokenIDFromContext(ctx context.Context) (string, bool) {
	tokenID, ok := ctx.Value(TokenIDKey).(string)
	return tokenID, ok
}
