package postgres

import (
	"context"
	"strings"
)

// participantKey is the canonical text form of a participant set. Two chats
// with the same members have the same key.
func participantKey(normalized []string) string {
	return strings.Join(normalized, ",")
}

func splitParticipantKey(key string) []string {
	if key == "" {
		return []string{}
	}
	return strings.Split(key, ",")
}

func insertParticipants(ctx context.Context, exec execer, chatID string, userIDs []string) error {
	for _, id := range userIDs {
		if _, err := exec.ExecContext(ctx, `
			INSERT INTO chat_participants (chat_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, chatID, id); err != nil {
			return err
		}
	}
	return nil
}
