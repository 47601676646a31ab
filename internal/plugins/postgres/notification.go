package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/masterboy376/cphere/internal/core/domain"
)

type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, type, recipient_id, sender_id, message, is_handled, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(s scanner) (*domain.Notification, error) {
	var n domain.Notification
	if err := s.Scan(&n.ID, &n.Type, &n.RecipientID, &n.SenderID, &n.Message, &n.IsHandled, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepo) CreateNotification(ctx context.Context, n *domain.Notification) error {
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, string(n.Type), n.RecipientID, n.SenderID, n.Message, n.IsHandled, n.CreatedAt)
	return err
}

// MarkHandled only matches a pending notification addressed to recipientID;
// anything else is ErrNotificationNotFound.
func (r *NotificationRepo) MarkHandled(ctx context.Context, id, recipientID string) (*domain.Notification, error) {
	exec := GetExecutor(ctx, r.db)
	n, err := scanNotification(exec.QueryRowContext(ctx, `
		UPDATE notifications
		SET is_handled = true
		WHERE id = $1 AND recipient_id = $2 AND is_handled = false
		RETURNING `+notificationColumns, id, recipientID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotificationNotFound
	}
	return n, err
}

func (r *NotificationRepo) ListForUser(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
	`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}
