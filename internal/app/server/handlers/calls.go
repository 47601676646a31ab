package handlers

import (
	"net/http"
	"time"

	"github.com/masterboy376/cphere/internal/core/domain"
	"github.com/masterboy376/cphere/internal/core/services"
	"github.com/masterboy376/cphere/pkg/middleware"
)

type CallHandler struct {
	calls *services.CallService
}

func NewCallHandler(c *services.CallService) *CallHandler {
	return &CallHandler{calls: c}
}

type notificationResponse struct {
	ID               string                  `json:"id"`
	NotificationType domain.NotificationType `json:"notification_type"`
	SenderUserID     string                  `json:"sender_user_id"`
	Message          string                  `json:"message"`
	IsHandled        bool                    `json:"is_handled"`
	Timestamp        time.Time               `json:"timestamp"`
}

func toNotificationResponse(n domain.Notification) notificationResponse {
	return notificationResponse{
		ID:               n.ID,
		NotificationType: n.Type,
		SenderUserID:     n.SenderID,
		Message:          n.Message,
		IsHandled:        n.IsHandled,
		Timestamp:        n.CreatedAt,
	}
}

func (h *CallHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var req struct {
		RecipientID string `json:"recipient_id"`
		ChatID      string `json:"chat_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.calls.Initiate(r.Context(), userID, req.RecipientID, req.ChatID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notification_id": n.ID})
}

func (h *CallHandler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var req struct {
		NotificationID string `json:"notification_id"`
		Accepted       bool   `json:"accepted"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, delivered, err := h.calls.Respond(r.Context(), userID, req.NotificationID, req.Accepted)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notification_id": n.ID, "caller_notified": delivered})
}

func (h *CallHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	list, err := h.calls.Notifications(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]notificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": out})
}
