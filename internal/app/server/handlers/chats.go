package handlers

import (
	"net/http"
	"time"

	"github.com/masterboy376/cphere/internal/core/services"
	"github.com/masterboy376/cphere/pkg/middleware"
)

type ChatHandler struct {
	chats *services.ChatService
}

func NewChatHandler(c *services.ChatService) *ChatHandler {
	return &ChatHandler{chats: c}
}

type messageResponse struct {
	ID        string    `json:"message_id"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *ChatHandler) Summaries(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	sums, err := h.chats.Summaries(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": sums})
}

func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	msgs, err := h.chats.Messages(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{ID: m.ID, ChatID: m.ChatID, SenderID: m.SenderID, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}
