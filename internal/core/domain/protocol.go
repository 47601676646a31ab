package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypeChatMessage       = "chat_message"
	TypeWebRTCOffer       = "webrtc_offer"
	TypeWebRTCAnswer      = "webrtc_answer"
	TypeWebRTCICE         = "webrtc_ice_candidate"
	TypeVideoCallEnded    = "video_call_ended"
	TypeVideoCallRequest  = "video_call_request"
	TypeVideoCallAccepted = "video_call_accepted"
	TypeVideoCallDeclined = "video_call_declined"
	TypeLogout            = "logout"
)

// InboundFrame is the closed set of frames a client may send over its connection.
type InboundFrame interface {
	FrameType() string
}

// ChatMessageFrame asks the router to deliver content to a chat. ChatID is empty
// for the first message of a conversation, in which case RecipientIDs names the peers.
type ChatMessageFrame struct {
	ChatID       string
	Content      string
	RecipientIDs []string
}

// SignalingFrame carries call-setup data for TargetUserID. Raw is the frame as
// received and is forwarded without inspection.
type SignalingFrame struct {
	Type         string
	TargetUserID string
	Raw          json.RawMessage
}

// CallResponseFrame answers a call request; it is relayed to CallerID.
type CallResponseFrame struct {
	Type     string
	CallerID string
	Raw      json.RawMessage
}

type LogoutFrame struct{}

// UnknownFrame is any well formed frame whose type is not recognized.
type UnknownFrame struct {
	Type string
}

func (ChatMessageFrame) FrameType() string    { return TypeChatMessage }
func (f SignalingFrame) FrameType() string    { return f.Type }
func (f CallResponseFrame) FrameType() string { return f.Type }
func (LogoutFrame) FrameType() string         { return TypeLogout }
func (f UnknownFrame) FrameType() string      { return f.Type }

type inboundEnvelope struct {
	Type         string   `json:"type"`
	ChatID       *string  `json:"chat_id"`
	Content      string   `json:"content"`
	RecipientIDs []string `json:"recipient_ids"`
	TargetUserID string   `json:"target_user_id"`
	CallerID     string   `json:"caller_id"`
}

// DecodeInbound parses one text frame. Errors wrap ErrMalformedFrame.
func DecodeInbound(raw []byte) (InboundFrame, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch env.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	case TypeChatMessage:
		f := ChatMessageFrame{Content: env.Content, RecipientIDs: validIDs(env.RecipientIDs)}
		if env.ChatID != nil {
			f.ChatID = *env.ChatID
		}
		if f.Content == "" {
			return nil, fmt.Errorf("%w: empty content", ErrMalformedFrame)
		}
		if f.ChatID != "" && !ValidID(f.ChatID) {
			return nil, fmt.Errorf("%w: chat_id %q", ErrMalformedFrame, f.ChatID)
		}
		if f.ChatID == "" && len(f.RecipientIDs) == 0 {
			return nil, fmt.Errorf("%w: chat_id or recipient_ids required", ErrMalformedFrame)
		}
		return f, nil
	case TypeWebRTCOffer, TypeWebRTCAnswer, TypeWebRTCICE, TypeVideoCallEnded:
		if env.TargetUserID == "" {
			return nil, fmt.Errorf("%w: %s without target_user_id", ErrMalformedFrame, env.Type)
		}
		return SignalingFrame{Type: env.Type, TargetUserID: env.TargetUserID, Raw: json.RawMessage(raw)}, nil
	case TypeVideoCallAccepted, TypeVideoCallDeclined:
		if env.CallerID == "" {
			return nil, fmt.Errorf("%w: %s without caller_id", ErrMalformedFrame, env.Type)
		}
		return CallResponseFrame{Type: env.Type, CallerID: env.CallerID, Raw: json.RawMessage(raw)}, nil
	case TypeLogout:
		return LogoutFrame{}, nil
	default:
		return UnknownFrame{Type: env.Type}, nil
	}
}

// OutboundChatMessage is pushed to every online participant except the sender.
type OutboundChatMessage struct {
	Type           string    `json:"type"` // "chat_message"
	MessageID      string    `json:"message_id"`
	ChatID         string    `json:"chat_id"`
	SenderID       string    `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type CallNotificationPayload struct {
	ID               string           `json:"id"`
	NotificationType NotificationType `json:"notification_type"`
	SenderUserID     string           `json:"sender_user_id"`
	SenderUsername   string           `json:"sender_username"`
	Message          string           `json:"message"`
	Timestamp        time.Time        `json:"timestamp"`
}

// CallRequestEvent is pushed to the callee when a call is initiated over REST.
type CallRequestEvent struct {
	Type         string                  `json:"type"` // "video_call_request"
	Notification CallNotificationPayload `json:"notification"`
}

// CallResponseEvent tells the caller how the callee answered.
type CallResponseEvent struct {
	Type           string `json:"type"` // "video_call_accepted" | "video_call_declined"
	From           string `json:"from"`
	NotificationID string `json:"notification_id"`
}

// validIDs drops entries that are not well formed ids. It returns nil when none remain.
func validIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if ValidID(id) {
			out = append(out, id)
		}
	}
	return out
}
