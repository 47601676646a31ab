package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/masterboy376/cphere/internal/core/domain"
	"github.com/masterboy376/cphere/pkg/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Anything unrecognized is a 500
// and its detail stays in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidID), errors.Is(err, domain.ErrInvalidResetToken):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrNotParticipant):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrChatNotFound), errors.Is(err, domain.ErrNotificationNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrUserExists):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrRecipientOffline):
		status, msg = http.StatusConflict, err.Error()
	default:
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "handler - request failed", logging.Err(err))
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(domain.ErrInvalidInput, err)
	}
	return nil
}
