package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-queue/pkg/apperror"
	"clinic-queue/pkg/jwt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const resetTokenPrefix = "password_reset:"

// ErrResetTokenInvalid is returned for unknown, expired or already used reset tokens
var ErrResetTokenInvalid = apperror.Validation("reset token is invalid or expired")

// SessionStore tracks live JWT ids and single-use password reset tokens in Redis
type SessionStore struct {
	client *redis.Client
	log    *logrus.Logger
}

func NewSessionStore(client *redis.Client, log *logrus.Logger) *SessionStore {
	return &SessionStore{client: client, log: log}
}

// Store marks an access/refresh pair as live for their lifetimes
func (s *SessionStore) Store(ctx context.Context, userID uuid.UUID, accessID string, accessTTL time.Duration, refreshID string, refreshTTL time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, jwt.AccessTokenKey(userID, accessID), "valid", accessTTL)
	pipe.Set(ctx, jwt.RefreshTokenKey(userID, refreshID), "valid", refreshTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warnf("Failed to store tokens in Redis: %+v", err)
		return apperror.Transient("session store unavailable", err)
	}
	return nil
}

func (s *SessionStore) RefreshExists(ctx context.Context, userID uuid.UUID, refreshID string) (bool, error) {
	exists, err := s.client.Exists(ctx, jwt.RefreshTokenKey(userID, refreshID)).Result()
	if err != nil {
		s.log.Warnf("Failed to check refresh token in Redis: %+v", err)
		return false, apperror.Transient("session store unavailable", err)
	}
	return exists > 0, nil
}

// Revoke deletes one access token and, when refreshID is set, its refresh token
func (s *SessionStore) Revoke(ctx context.Context, userID uuid.UUID, accessID, refreshID string) error {
	keys := []string{jwt.AccessTokenKey(userID, accessID)}
	if refreshID != "" {
		keys = append(keys, jwt.RefreshTokenKey(userID, refreshID))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.log.Warnf("Failed to delete tokens: %+v", err)
		return apperror.Transient("session store unavailable", err)
	}
	return nil
}

func (s *SessionStore) RevokeRefresh(ctx context.Context, userID uuid.UUID, refreshID string) error {
	if err := s.client.Del(ctx, jwt.RefreshTokenKey(userID, refreshID)).Err(); err != nil {
		s.log.Warnf("Failed to delete old refresh token: %+v", err)
		return apperror.Transient("session store unavailable", err)
	}
	return nil
}

// RevokeAll revokes every token of a user (password changed or account disabled)
func (s *SessionStore) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	for _, pattern := range []string{
		fmt.Sprintf("access_token:%s:*", userID.String()),
		fmt.Sprintf("refresh_token:%s:*", userID.String()),
	} {
		keys, err := s.client.Keys(ctx, pattern).Result()
		if err != nil {
			s.log.Warnf("Failed to get token keys: %+v", err)
			return apperror.Transient("session store unavailable", err)
		}
		if len(keys) == 0 {
			continue
		}
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			s.log.Warnf("Failed to delete tokens: %+v", err)
			return apperror.Transient("session store unavailable", err)
		}
	}
	return nil
}

// IssueResetToken returns a new single-use token bound to userID
func (s *SessionStore) IssueResetToken(ctx context.Context, userID uuid.UUID, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, resetTokenPrefix+token, userID.String(), ttl).Err(); err != nil {
		s.log.Warnf("Failed to store reset token: %+v", err)
		return "", apperror.Transient("session store unavailable", err)
	}
	return token, nil
}

// ConsumeResetToken returns the token's user and invalidates it
func (s *SessionStore) ConsumeResetToken(ctx context.Context, token string) (uuid.UUID, error) {
	value, err := s.client.GetDel(ctx, resetTokenPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrResetTokenInvalid
	}
	if err != nil {
		s.log.Warnf("Failed to read reset token: %+v", err)
		return uuid.Nil, apperror.Transient("session store unavailable", err)
	}

	userID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, ErrResetTokenInvalid
	}
	return userID, nil
}
