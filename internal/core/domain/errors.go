package domain

import "errors"

var (
	ErrInvalidID            = errors.New("invalid id")
	ErrChatNotFound         = errors.New("chat not found")
	ErrNotParticipant       = errors.New("user is not a participant of the chat")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("username or email already taken")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrInvalidInput         = errors.New("invalid input")
	ErrMalformedFrame       = errors.New("malformed frame")
	ErrMessageNotFound      = errors.New("message not found")
	ErrRecipientOffline     = errors.New("recipient is not online")
	ErrNotificationNotFound = errors.New("notification not found or already handled")
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenRevoked         = errors.New("token revoked")
	ErrInvalidResetToken    = errors.New("reset token is invalid or expired")
)
