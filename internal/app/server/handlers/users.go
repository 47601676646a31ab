package handlers

import (
	"net/http"
	"time"

	"github.com/masterboy376/cphere/internal/core/services"
	"github.com/masterboy376/cphere/pkg/middleware"
)

type UserHandler struct {
	userSvc *services.UserService
}

func NewUserHandler(u *services.UserService) *UserHandler {
	return &UserHandler{userSvc: u}
}

type userMatch struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Search answers GET /users/search?q= with the id and username of each match.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	users, err := h.userSvc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]userMatch, 0, len(users))
	for _, u := range users {
		out = append(out, userMatch{ID: u.ID, Username: u.Username})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	user, err := h.userSvc.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		UserID    string    `json:"user_id"`
		Username  string    `json:"username"`
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"created_at"`
	}{user.ID, user.Username, user.Email, user.CreatedAt})
}
