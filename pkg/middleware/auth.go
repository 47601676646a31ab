package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/masterboy376/cphere/internal/core/domain"
	"github.com/masterboy376/cphere/internal/core/services"
	"github.com/masterboy376/cphere/pkg/logging"
)

type contextKey string

const (
	UserIDKey  contextKey = "user_id"
	SessionKey contextKey = "session"
)

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*services.Session, error)
}

// AuthMiddleware accepts the session cookie or a Bearer token and puts the
// caller's user id and session into the request context.
func AuthMiddleware(tokens TokenValidator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := tokenFromRequest(r, cookieName)
			if err != nil {
				http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
				return
			}
			session, err := tokens.ValidateToken(r.Context(), raw)
			if err != nil {
				if !errors.Is(err, domain.ErrInvalidToken) && !errors.Is(err, domain.ErrTokenRevoked) {
					logging.FromContext(r.Context()).ErrorContext(r.Context(), "auth middleware - validate token failed", logging.Err(err))
				}
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx, _ := logging.With(r.Context(), logging.User(session.UserID))
			next.ServeHTTP(w, r.WithContext(WithSession(ctx, session)))
		})
	}
}

func tokenFromRequest(r *http.Request, cookieName string) (string, error) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("session cookie or authorization header required")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization format")
	}
	return parts[1], nil
}

func WithSession(ctx context.Context, s *services.Session) context.Context {
	ctx = context.WithValue(ctx, SessionKey, s)
	return context.WithValue(ctx, UserIDKey, s.UserID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

func SessionFromContext(ctx context.Context) (*services.Session, bool) {
	s, ok := ctx.Value(SessionKey).(*services.Session)
	return s, ok && s != nil
}
