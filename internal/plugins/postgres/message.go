package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/masterboy376/cphere/internal/core/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepo {
	return &MessageRepo{
		db: db,
	}
}

func (r *MessageRepo) PersistMessage(ctx context.Context, msg *domain.Message) (string, error) {
	if !domain.ValidID(msg.ChatID) {
		return "", domain.ErrInvalidID
	}
	id := msg.ID
	if id == "" {
		id = domain.NewID()
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, msg.ChatID, msg.SenderID, msg.Content, msg.CreatedAt)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *MessageRepo) ListMessages(ctx context.Context, chatID string) ([]domain.Message, error) {
	if !domain.ValidID(chatID) {
		return nil, domain.ErrInvalidID
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, content, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC, id ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *MessageRepo) LastMessage(ctx context.Context, chatID string) (*domain.Message, error) {
	if !domain.ValidID(chatID) {
		return nil, domain.ErrInvalidID
	}
	var m domain.Message
	exec := GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx, `
		SELECT id, chat_id, sender_id, content, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, chatID).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
