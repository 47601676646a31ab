package contracts

import (
	"context"
	"time"
)

// TokenRevoker keeps a denylist of session token ids until they would have expired.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RateLimiter counts hits per key inside a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// PasswordResetSender delivers a password reset token to the account's owner.
type PasswordResetSender interface {
	SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
}
