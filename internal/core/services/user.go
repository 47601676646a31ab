package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/masterboy376/cphere/internal/core/contracts"
	"github.com/masterboy376/cphere/internal/core/domain"
	"github.com/masterboy376/cphere/pkg/logging"
	"golang.org/x/crypto/bcrypt"
)

const (
	minUsernameLen  = 3
	minPasswordLen  = 8
	searchLimit     = 20
	resetTokenBytes = 32
	defaultResetTTL = 15 * time.Minute
)

type UserService struct {
	log      *slog.Logger
	repo     domain.UserRepository
	sender   contracts.PasswordResetSender
	resetTTL time.Duration
	cost     int
	now      func() time.Time
}

// NewUserService hashes passwords with the given bcrypt cost, or bcrypt.DefaultCost
// when cost is zero. Reset tokens live for resetTTL, or 15 minutes when it is zero.
func NewUserService(
	log *slog.Logger,
	repo domain.UserRepository,
	sender contracts.PasswordResetSender,
	resetTTL time.Duration,
	cost int,
) *UserService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if resetTTL <= 0 {
		resetTTL = defaultResetTTL
	}
	return &UserService{
		log:      log,
		repo:     repo,
		sender:   sender,
		resetTTL: resetTTL,
		cost:     cost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if len(username) < minUsernameLen {
		return nil, fmt.Errorf("%w: username must be at least %d characters", domain.ErrInvalidInput, minUsernameLen)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: invalid email address", domain.ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		ID:           domain.NewID(),
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		s.log.WarnContext(ctx, "user - register - create user failed", slog.String("username", username), logging.Err(err))
		return nil, err
	}
	s.log.InfoContext(ctx, "user - register - created", logging.User(u.ID))
	return u, nil
}

// Authenticate does not reveal whether the username exists.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.InfoContext(ctx, "user - authenticate - wrong password", logging.User(u.ID))
		return nil, domain.ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if !domain.ValidID(id) {
		return nil, domain.ErrInvalidID
	}
	return s.repo.GetUserByID(ctx, id)
}

// Search returns up to 20 users whose username or email contains query, ignoring case.
func (s *UserService) Search(ctx context.Context, query string) ([]domain.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is empty", domain.ErrInvalidInput)
	}
	return s.repo.SearchUsers(ctx, query, searchLimit)
}

// RequestPasswordReset issues a reset token for the account registered under
// email and hands it to the sender. An unknown address is not an error, so the
// caller cannot tell which addresses are registered.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	u, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.log.InfoContext(ctx, "user - reset password - unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	token, hash, err := newResetToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.resetTTL)
	if err := s.repo.SetResetToken(ctx, u.ID, hash, expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if err := s.sender.SendPasswordReset(ctx, u.Email, token, expiresAt); err != nil {
		return fmt.Errorf("send reset token: %w", err)
	}
	s.log.InfoContext(ctx, "user - reset password - token issued", logging.User(u.ID))
	return nil
}

// ChangePassword redeems a reset token. A token works once.
func (s *UserService) ChangePassword(ctx context.Context, token, newPassword string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrInvalidResetToken
	}
	if len(newPassword) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.repo.ResetPassword(ctx, hashResetToken(token), string(hash), s.now())
	if err != nil {
		s.log.InfoContext(ctx, "user - change password - rejected", logging.Err(err))
		return nil, err
	}
	s.log.InfoContext(ctx, "user - change password - changed", logging.User(u.ID))
	return u, nil
}

// newResetToken returns the token handed to the user and the hash that is stored.
func newResetToken() (token, hash string, err error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate reset token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(b)
	return token, hashResetToken(token), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
