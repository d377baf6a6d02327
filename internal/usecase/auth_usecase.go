package usecase

import (
	"context"
	"time"

	"clinic-queue/internal/converter"
	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/delivery/http/middleware"
	"clinic-queue/internal/domain/entity"
	"clinic-queue/internal/domain/repository"
	"clinic-queue/internal/service"
	"clinic-queue/pkg/jwt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthUsecase interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Logout(ctx context.Context, req *dto.LogoutRequest) error
	RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error)
	GetCurrentUser(ctx context.Context) (*dto.UserResponse, error)
	ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error
}

type authUsecase struct {
	db         *gorm.DB
	log        *logrus.Logger
	userRepo   repository.UserRepository
	audit      service.AuditService
	jwtService *jwt.JWTService
	sessions   *service.SessionStore
	mailer     service.Mailer
	baseURL    string
	resetTTL   time.Duration
}

func NewAuthUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	userRepo repository.UserRepository,
	audit service.AuditService,
	jwtService *jwt.JWTService,
	sessions *service.SessionStore,
	mailer service.Mailer,
	baseURL string,
	resetTTL time.Duration,
) AuthUsecase {
	return &authUsecase{
		db:         db,
		log:        log,
		userRepo:   userRepo,
		audit:      audit,
		jwtService: jwtService,
		sessions:   sessions,
		mailer:     mailer,
		baseURL:    baseURL,
		resetTTL:   resetTTL,
	}
}

func (u *authUsecase) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// Find user by username (read-only, no transaction needed)
	user, err := u.userRepo.FindByUsername(u.db.WithContext(ctx), req.Username)
	if err != nil {
		u.log.Warnf("Failed to find user by username: %+v", err)
		return nil, storeError(err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	tokens, err := u.issueTokens(ctx, user.ID, user.Username, user.Role)
	if err != nil {
		return nil, err
	}

	if err := u.audit.Record(u.db.WithContext(ctx), service.AuditEntry{
		ActorID:  &user.ID,
		Action:   entity.AuditActionUserLogin,
		Entity:   "user",
		EntityID: user.ID.String(),
	}); err != nil {
		u.log.Warnf("Failed to record login: %+v", err)
	}

	tokens.User = converter.UserToResponse(user)
	return tokens, nil
}

func (u *authUsecase) Logout(ctx context.Context, req *dto.LogoutRequest) error {
	userID, _ := middleware.GetUserIDFromContext(ctx)
	accessID, _ := middleware.GetTokenIDFromContext(ctx)

	var refreshID string
	if req != nil && req.RefreshToken != "" {
		if claims, err := u.jwtService.ValidateToken(req.RefreshToken); err == nil && claims.UserID == userID {
			refreshID = claims.TokenID
		}
	}

	if err := u.sessions.Revoke(ctx, userID, accessID, refreshID); err != nil {
		return err
	}

	if err := u.audit.Record(u.db.WithContext(ctx), service.AuditEntry{
		ActorID:  &userID,
		Action:   entity.AuditActionUserLogout,
		Entity:   "user",
		EntityID: userID.String(),
	}); err != nil {
		u.log.Warnf("Failed to record logout: %+v", err)
	}
	return nil
}

func (u *authUsecase) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	// Validate refresh token
	claims, err := u.jwtService.ValidateToken(req.RefreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != jwt.RefreshToken {
		return nil, ErrInvalidToken
	}

	exists, err := u.sessions.RefreshExists(ctx, claims.UserID, claims.TokenID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrTokenRevoked
	}

	// Role may have changed since the token was issued
	user, err := u.userRepo.FindByID(u.db.WithContext(ctx), claims.UserID)
	if err != nil {
		u.log.Warnf("Failed to find user by ID: %+v", err)
		return nil, storeError(err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrTokenRevoked
	}

	if err := u.sessions.RevokeRefresh(ctx, claims.UserID, claims.TokenID); err != nil {
		return nil, err
	}

	tokens, err := u.issueTokens(ctx, user.ID, user.Username, user.Role)
	if err != nil {
		return nil, err
	}
	tokens.User = converter.UserToResponse(user)
	return tokens, nil
}

func (u *authUsecase) GetCurrentUser(ctx context.Context) (*dto.UserResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrInvalidToken
	}

	user, err := u.userRepo.FindByID(u.db.WithContext(ctx), userID)
	if err != nil {
		u.log.Warnf("Failed to find user by ID: %+v", err)
		return nil, storeError(err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return converter.UserToResponse(user), nil
}

// ForgotPassword mails a reset link. Unknown users get the same silent success.
func (u *authUsecase) ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error {
	user, err := u.userRepo.FindByUsername(u.db.WithContext(ctx), req.Username)
	if err != nil {
		u.log.Warnf("Failed to find user by username: %+v", err)
		return storeError(err)
	}
	if user == nil || !user.IsActive || user.Email == "" {
		u.log.Infof("Password reset requested for unknown or unreachable user %q", req.Username)
		return nil
	}

	token, err := u.sessions.IssueResetToken(ctx, user.ID, u.resetTTL)
	if err != nil {
		return err
	}

	link := u.baseURL + "/reset-password?token=" + token
	if err := u.mailer.SendPasswordReset(user.Email, user.FullName, link); err != nil {
		u.log.Warnf("Failed to send password reset email: %+v", err)
		return err
	}
	return nil
}

func (u *authUsecase) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	userID, err := u.sessions.ConsumeResetToken(ctx, req.Token)
	if err != nil {
		return err
	}

	tx, err := begin(ctx, u.db)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	user, err := u.userRepo.FindByID(tx, userID)
	if err != nil {
		u.log.Warnf("Failed to find user by ID: %+v", err)
		return storeError(err)
	}
	if user == nil {
		return service.ErrResetTokenInvalid
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		u.log.Warnf("Failed to hash password: %+v", err)
		return err
	}
	user.Password = string(hashedPassword)

	if err := u.userRepo.Update(tx, user); err != nil {
		u.log.Warnf("Failed to update user password: %+v", err)
		return storeError(err)
	}

	if err := u.audit.Record(tx, service.AuditEntry{
		ActorID:  &user.ID,
		Action:   entity.AuditActionPasswordReset,
		Entity:   "user",
		EntityID: user.ID.String(),
		After:    map[string]interface{}{"via": "email"},
	}); err != nil {
		return err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return storeError(err)
	}

	if err := u.sessions.RevokeAll(ctx, user.ID); err != nil {
		u.log.Warnf("Failed to revoke sessions after password reset: %+v", err)
	}
	return nil
}

func (u *authUsecase) issueTokens(ctx context.Context, userID uuid.UUID, username, role string) (*dto.TokenResponse, error) {
	accessToken, accessTokenID, err := u.jwtService.GenerateAccessToken(userID, username, role)
	if err != nil {
		u.log.Warnf("Failed to generate access token: %+v", err)
		return nil, err
	}

	refreshToken, refreshTokenID, err := u.jwtService.GenerateRefreshToken(userID, username, role)
	if err != nil {
		u.log.Warnf("Failed to generate refresh token: %+v", err)
		return nil, err
	}

	if err := u.sessions.Store(ctx, userID,
		accessTokenID, u.jwtService.GetAccessExpiry(),
		refreshTokenID, u.jwtService.GetRefreshExpiry()); err != nil {
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(u.jwtService.GetAccessExpiry().Seconds()),
	}, nil
}
