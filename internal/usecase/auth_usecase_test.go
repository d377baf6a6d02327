package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"clinic-queue/config"
	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/delivery/http/middleware"
	"clinic-queue/internal/domain/entity"
	"clinic-queue/internal/service"
	"clinic-queue/internal/testutil"
	"clinic-queue/pkg/apperror"
	"clinic-queue/pkg/jwt"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	uc     AuthUsecase
	mock   sqlmock.Sqlmock
	mr     *miniredis.Miniredis
	users  *fakeUserRepo
	jwt    *jwt.JWTService
	mailer *fakeMailer
	staff  entity.User
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db, mock := testutil.NewMockDB(t)
	mr, client := testutil.NewRedis(t)
	log := testutil.NewLogger()

	staff := staffUser(t, "maria", "secreto1", entity.RoleReception)
	staff.Email = "maria@clinica.local"

	f := &authFixture{
		mock:   mock,
		mr:     mr,
		users:  newFakeUserRepo(staff),
		jwt:    jwt.NewJWTService(config.JWTConfig{Secret: "test-secret", AccessExpiry: 15 * time.Minute, RefreshExpiry: time.Hour}),
		mailer: &fakeMailer{},
		staff:  staff,
	}
	f.uc = NewAuthUsecase(db, log, f.users, &fakeAudit{}, f.jwt, service.NewSessionStore(client, log),
		f.mailer, "https://turnos.example", 30*time.Minute)
	return f
}

func (f *authFixture) login(t *testing.T) *dto.TokenResponse {
	t.Helper()
	tokens, err := f.uc.Login(context.Background(), &dto.LoginRequest{Username: "maria", Password: "secreto1"})
	require.NoError(t, err)
	return tokens
}

// sessionContext mimics what the auth middleware puts on the request
func (f *authFixture) sessionContext(t *testing.T, accessToken string) context.Context {
	t.Helper()
	claims, err := f.jwt.ValidateToken(accessToken)
	require.NoError(t, err)
	ctx := middleware.WithIdentity(context.Background(), claims.UserID, claims.Username, claims.Role)
	return context.WithValue(ctx, middleware.TokenIDKey, claims.TokenID)
}

func (f *authFixture) resetToken(t *testing.T) string {
	t.Helper()
	require.NoError(t, f.uc.ForgotPassword(context.Background(), &dto.ForgotPasswordRequest{Username: "maria"}))
	_, token, found := strings.Cut(f.mailer.link, "token=")
	require.True(t, found)
	return token
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)

	tokens := f.login(t)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, int64(900), tokens.ExpiresIn)
	require.NotNil(t, tokens.User)
	assert.Equal(t, entity.RoleReception, tokens.User.Role)

	claims, err := f.jwt.ValidateToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.True(t, f.mr.Exists(jwt.AccessTokenKey(f.staff.ID, claims.TokenID)))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newAuthFixture(t)
	inactive := staffUser(t, "pedro", "secreto1", entity.RoleRegistry)
	inactive.IsActive = false
	f.users.users[inactive.ID] = inactive

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"unknown user", "nadie", "secreto1"},
		{"wrong password", "maria", "otra"},
		{"inactive user", "pedro", "secreto1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.Login(context.Background(), &dto.LoginRequest{Username: tt.username, Password: tt.password})
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
		})
	}
}

func TestRefreshRotatesAndPicksUpRoleChange(t *testing.T) {
	f := newAuthFixture(t)
	tokens := f.login(t)

	promoted := f.users.users[f.staff.ID]
	promoted.Role = entity.RoleAdmin
	f.users.users[f.staff.ID] = promoted

	next, err := f.uc.RefreshToken(context.Background(), &dto.RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	require.NoError(t, err)
	claims, err := f.jwt.ValidateToken(next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, claims.Role)

	_, err = f.uc.RefreshToken(context.Background(), &dto.RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, err = f.uc.RefreshToken(context.Background(), &dto.RefreshTokenRequest{RefreshToken: next.AccessToken})
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.uc.RefreshToken(context.Background(), &dto.RefreshTokenRequest{RefreshToken: "garbage"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTransientWhenRedisDown(t *testing.T) {
	f := newAuthFixture(t)
	tokens := f.login(t)
	f.mr.Close()

	_, err := f.uc.RefreshToken(context.Background(), &dto.RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	require.Error(t, err)
	assert.True(t, apperror.IsRetryable(err))
}

func TestLogoutRevokesBothTokens(t *testing.T) {
	f := newAuthFixture(t)
	tokens := f.login(t)
	ctx := f.sessionContext(t, tokens.AccessToken)
	accessID, _ := middleware.GetTokenIDFromContext(ctx)

	require.NoError(t, f.uc.Logout(ctx, &dto.LogoutRequest{RefreshToken: tokens.RefreshToken}))
	assert.False(t, f.mr.Exists(jwt.AccessTokenKey(f.staff.ID, accessID)))

	_, err := f.uc.RefreshToken(context.Background(), &dto.RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestGetCurrentUser(t *testing.T) {
	f := newAuthFixture(t)
	tokens := f.login(t)

	me, err := f.uc.GetCurrentUser(f.sessionContext(t, tokens.AccessToken))
	require.NoError(t, err)
	assert.Equal(t, "maria", me.Username)

	_, err = f.uc.GetCurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestForgotPasswordIsSilentForUnknownUsers(t *testing.T) {
	f := newAuthFixture(t)

	require.NoError(t, f.uc.ForgotPassword(context.Background(), &dto.ForgotPasswordRequest{Username: "nadie"}))
	assert.Zero(t, f.mailer.sent)

	token := f.resetToken(t)
	assert.Equal(t, 1, f.mailer.sent)
	assert.Equal(t, "maria@clinica.local", f.mailer.to)
	assert.True(t, strings.HasPrefix(f.mailer.link, "https://turnos.example/reset-password?token="))
	assert.NotEmpty(t, token)
}

func TestResetPasswordWithMailedToken(t *testing.T) {
	f := newAuthFixture(t)
	tokens := f.login(t)
	token := f.resetToken(t)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	require.NoError(t, f.uc.ResetPassword(context.Background(), &dto.ResetPasswordRequest{Token: token, Password: "nuevo123"}))

	stored := f.users.users[f.staff.ID]
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("nuevo123")))

	// old sessions end
	_, err := f.uc.RefreshToken(context.Background(), &dto.RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// tokens are single use
	err = f.uc.ResetPassword(context.Background(), &dto.ResetPasswordRequest{Token: token, Password: "otro1234"})
	assert.ErrorIs(t, err, service.ErrResetTokenInvalid)

	_, err = f.uc.Login(context.Background(), &dto.LoginRequest{Username: "maria", Password: "nuevo123"})
	assert.NoError(t, err)
}

func TestResetTokenExpires(t *testing.T) {
	f := newAuthFixture(t)
	token := f.resetToken(t)
	f.mr.FastForward(31 * time.Minute)

	err := f.uc.ResetPassword(context.Background(), &dto.ResetPasswordRequest{Token: token, Password: "nuevo123"})
	assert.ErrorIs(t, err, service.ErrResetTokenInvalid)
}
