package contracts

import "context"

// StopReason tells a connection why it is being asked to terminate.
type StopReason int

const (
	StopSuperseded StopReason = iota + 1
	StopLogout
	StopShutdown
)

func (r StopReason) String() string {
	switch r {
	case StopSuperseded:
		return "session superseded"
	case StopLogout:
		return "logout"
	case StopShutdown:
		return "server shutting down"
	default:
		return "unknown"
	}
}

// Client is the handle through which the rest of the process reaches one live connection.
type Client interface {
	ID() string
	UserID() string
	// Push enqueues a text frame without blocking. It returns false when the
	// frame was dropped because the connection is closing or its queue is full.
	Push(data []byte) bool
	// Stop asks the connection to close itself. Safe to call more than once.
	Stop(reason StopReason)
}

// Registry maps each user to their single live connection.
type Registry interface {
	// Register installs c for its user and returns the handle it replaced, if
	// any. The replaced handle has already been told to stop.
	Register(c Client) Client
	// Deregister removes c if it is still the registered handle for its user.
	Deregister(c Client) bool
	Lookup(userID string) (Client, bool)
	IsOnline(userID string) bool
	BatchIsOnline(userIDs []string) map[string]bool
	PushToUser(userID string, data []byte) bool
}

// MembershipCache resolves chat participants, warming itself from the store on a miss.
type MembershipCache interface {
	// Resolve returns the participant set of chatID. declared lists recipients
	// named by the sender and is used only when the chat must be created.
	Resolve(ctx context.Context, chatID, senderID string, declared []string) ([]string, error)
}
