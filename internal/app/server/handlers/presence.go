package handlers

import (
	"net/http"

	"github.com/masterboy376/cphere/internal/core/services"
)

type PresenceHandler struct {
	presence *services.PresenceService
}

func NewPresenceHandler(p *services.PresenceService) *PresenceHandler {
	return &PresenceHandler{presence: p}
}

func (h *PresenceHandler) IsOnline(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	online, err := h.presence.IsOnline(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "is_online": online})
}

func (h *PresenceHandler) BatchIsOnline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserIDs []string `json:"user_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"online_status": h.presence.BatchIsOnline(r.Context(), req.UserIDs)})
}
