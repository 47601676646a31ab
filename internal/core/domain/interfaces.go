package domain

import (
	"context"
	"time"
)

type UserRepository interface {
	// CreateUser fails with ErrUserExists when the username or email is taken.
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// GetUserByEmail expects the lower-cased address.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// SearchUsers returns at most limit users whose username or email contains
	// query. Matching and ordering by username both ignore case.
	SearchUsers(ctx context.Context, query string, limit int) ([]User, error)
	// SetResetToken replaces any outstanding reset token of the user.
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// ResetPassword stores passwordHash on the user holding tokenHash if the token
	// has not expired at now, and clears the token. It fails with
	// ErrInvalidResetToken otherwise.
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*User, error)
}

type ChatRepository interface {
	// LoadOrCreateChat returns the chat stored under chatID. When it is missing and
	// participants is non-empty the chat is created with that set; with no
	// participants a missing chat yields ErrChatNotFound.
	LoadOrCreateChat(ctx context.Context, chatID string, participants []string) (*Chat, error)
	// FindChatByParticipants looks for a chat whose participant set equals participants.
	FindChatByParticipants(ctx context.Context, participants []string) (*Chat, error)
	ListChatsForUser(ctx context.Context, userID string) ([]Chat, error)
}

type MessageRepository interface {
	PersistMessage(ctx context.Context, msg *Message) (string, error)
	// ListMessages returns the chat history oldest first.
	ListMessages(ctx context.Context, chatID string) ([]Message, error)
	// LastMessage fails with ErrMessageNotFound for a chat without messages.
	LastMessage(ctx context.Context, chatID string) (*Message, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *Notification) error
	// MarkHandled flips is_handled for an unhandled notification addressed to recipientID.
	MarkHandled(ctx context.Context, id, recipientID string) (*Notification, error)
	ListForUser(ctx context.Context, recipientID string) ([]Notification, error)
}
