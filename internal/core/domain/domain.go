package domain

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewID returns a fresh document identifier in its hex form.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id is a well formed document identifier.
func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// User is a registered account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Chat is a direct-message room between a fixed set of users.
type Chat struct {
	ID             string
	ParticipantIDs []string
	CreatedAt      time.Time
}

func NewChat(id string, participants []string) *Chat {
	return &Chat{
		ID:             id,
		ParticipantIDs: NormalizeParticipants(participants),
		CreatedAt:      time.Now().UTC(),
	}
}

func (c *Chat) HasParticipant(userID string) bool {
	return slices.Contains(c.ParticipantIDs, userID)
}

// Message is immutable once persisted.
type Message struct {
	ID        string
	ChatID    string
	SenderID  string
	Content   string
	CreatedAt time.Time
}

type NotificationType string

const NotificationVideoCall NotificationType = "video_call"

// Notification records an out-of-band event addressed to one user, such as a call request.
type Notification struct {
	ID          string
	Type        NotificationType
	RecipientID string
	SenderID    string
	Message     string
	IsHandled   bool
	CreatedAt   time.Time
}

// ChatSummary is one row of a user's chat list.
type ChatSummary struct {
	ChatID               string    `json:"chat_id"`
	OtherParticipantID   string    `json:"other_participant_id"`
	OtherParticipantName string    `json:"other_participant_username"`
	LastMessage          string    `json:"last_message"`
	LastMessageAt        time.Time `json:"last_message_timestamp"`
}

// NormalizeParticipants returns a sorted copy of ids without duplicates or empty entries.
func NormalizeParticipants(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
