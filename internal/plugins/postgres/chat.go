package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/masterboy376/cphere/internal/core/domain"
)

type ChatRepo struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// LoadOrCreateChat inserts with ON CONFLICT DO NOTHING inside a transaction, so
// concurrent creators of one chat id all read back the first writer's members.
func (r *ChatRepo) LoadOrCreateChat(ctx context.Context, chatID string, participants []string) (*domain.Chat, error) {
	if !domain.ValidID(chatID) {
		return nil, domain.ErrInvalidID
	}
	if len(participants) == 0 {
		return r.loadChat(ctx, GetExecutor(ctx, r.db), chatID)
	}
	members := domain.NormalizeParticipants(participants)
	for _, id := range members {
		if !domain.ValidID(id) {
			return nil, domain.ErrInvalidID
		}
	}

	var chat *domain.Chat
	err := RunInTx(ctx, r.db, func(ctx context.Context) error {
		exec := GetExecutor(ctx, r.db)
		res, err := exec.ExecContext(ctx, `
			INSERT INTO chats (id, participant_key, created_at)
			VALUES ($1, $2, now())
			ON CONFLICT (id) DO NOTHING
		`, chatID, participantKey(members))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 1 {
			if err := insertParticipants(ctx, exec, chatID, members); err != nil {
				return err
			}
		}
		chat, err = r.loadChat(ctx, exec, chatID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func (r *ChatRepo) FindChatByParticipants(ctx context.Context, participants []string) (*domain.Chat, error) {
	key := participantKey(domain.NormalizeParticipants(participants))
	exec := GetExecutor(ctx, r.db)
	c := domain.Chat{}
	err := exec.QueryRowContext(ctx, `
		SELECT id, created_at FROM chats
		WHERE participant_key = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, key).Scan(&c.ID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	c.ParticipantIDs = splitParticipantKey(key)
	return &c, nil
}

func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT c.id, c.participant_key, c.created_at
		FROM chats c
		JOIN chat_participants p ON p.chat_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chats []domain.Chat
	for rows.Next() {
		var (
			c   domain.Chat
			key string
		)
		if err := rows.Scan(&c.ID, &key, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ParticipantIDs = splitParticipantKey(key)
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (r *ChatRepo) loadChat(ctx context.Context, exec execer, chatID string) (*domain.Chat, error) {
	var (
		c   = domain.Chat{ID: chatID}
		key string
	)
	err := exec.QueryRowContext(ctx, `SELECT participant_key, created_at FROM chats WHERE id = $1`, chatID).
		Scan(&key, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	c.ParticipantIDs = splitParticipantKey(key)
	return &c, nil
}
