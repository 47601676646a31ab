package handlers

import (
	"net/http"
	"time"

	"github.com/masterboy376/cphere/internal/core/services"
	"github.com/masterboy376/cphere/pkg/logging"
	"github.com/masterboy376/cphere/pkg/middleware"
)

type AuthHandler struct {
	userSvc      *services.UserService
	tokenSvc     *services.TokenService
	cookieName   string
	cookieSecure bool
}

func NewAuthHandler(u *services.UserService, t *services.TokenService, cookieName string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{userSvc: u, tokenSvc: t, cookieName: cookieName, cookieSecure: cookieSecure}
}

type userResponse struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.userSvc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.InfoContext(r.Context(), "auth handler - register success", logging.User(user.ID))
	writeJSON(w, http.StatusCreated, userResponse{UserID: user.ID, Username: user.Username, CreatedAt: user.CreatedAt})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.userSvc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, session, err := h.tokenSvc.GenerateToken(user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	log.InfoContext(r.Context(), "auth handler - login success", logging.User(user.ID))
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
		"token":    token,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
		return
	}
	if err := h.tokenSvc.RevokeToken(r.Context(), session); err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	logging.FromContext(r.Context()).InfoContext(r.Context(), "auth handler - logout success", logging.User(session.UserID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	user, err := h.userSvc.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user_id":       user.ID,
		"username":      user.Username,
	})
}

// ResetPassword answers 202 whether or not the address is registered.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.userSvc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "if the address is registered a reset token has been sent"})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResetToken  string `json:"reset_token"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.userSvc.ChangePassword(r.Context(), req.ResetToken, req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).InfoContext(r.Context(), "auth handler - password changed", logging.User(user.ID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}
