package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/masterboy376/cphere/internal/core/contracts"
	"github.com/masterboy376/cphere/internal/core/domain"
)

// Session is what a valid token proves about its bearer.
type Session struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

type TokenService struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
	revoker   contracts.TokenRevoker
}

func NewTokenService(secret, issuer string, ttl time.Duration, revoker contracts.TokenRevoker) *TokenService {
	return &TokenService{
		secretKey: []byte(secret),
		issuer:    issuer,
		ttl:       ttl,
		revoker:   revoker,
	}
}

func (s *TokenService) TTL() time.Duration { return s.ttl }

func (s *TokenService) GenerateToken(userID string) (string, *Session, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, &Session{UserID: userID, TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// ValidateToken checks signature, issuer, expiry and the revocation list.
func (s *TokenService) ValidateToken(ctx context.Context, tokenStr string) (*Session, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or id", domain.ErrInvalidToken)
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, domain.ErrTokenRevoked
		}
	}
	return &Session{UserID: claims.Subject, TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// RevokeToken denies the session's token until it would have expired anyway.
func (s *TokenService) RevokeToken(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("revoke: nil session")
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 || s.revoker == nil {
		return nil
	}
	return s.revoker.Revoke(ctx, session.TokenID, ttl)
}
