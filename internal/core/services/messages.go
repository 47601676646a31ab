package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/masterboy376/cphere/internal/core/contracts"
	"github.com/masterboy376/cphere/internal/core/domain"
	"github.com/masterboy376/cphere/pkg/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MessageService persists chat messages and fans them out to online participants.
//
// Messages for the same chat sent concurrently by different users are not
// serialized against each other, so two recipients may observe them in
// different orders.
type MessageService struct {
	registry   contracts.Registry
	membership contracts.MembershipCache
	chats      domain.ChatRepository
	messages   domain.MessageRepository
	users      domain.UserRepository
	now        func() time.Time
	log        *slog.Logger
}

func NewMessageService(
	log *slog.Logger,
	registry contracts.Registry,
	membership contracts.MembershipCache,
	chats domain.ChatRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
) *MessageService {
	return &MessageService{
		log:        log,
		registry:   registry,
		membership: membership,
		chats:      chats,
		messages:   messages,
		users:      users,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RouteChatMessage persists the message and only then pushes it to every
// participant other than the sender who is online. Offline participants get
// it from history later.
func (s *MessageService) RouteChatMessage(
	ctx context.Context,
	senderID, chatID, content string,
	recipientIDs []string,
) (*domain.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.RouteChatMessage", trace.WithAttributes(
		attribute.String("sender_id", senderID),
		attribute.String("chat_id", chatID),
	))
	defer span.End()

	if chatID == "" {
		id, err := s.chatIDFor(ctx, senderID, recipientIDs)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "chat id resolution failed")
			return nil, err
		}
		chatID = id
		span.SetAttributes(attribute.String("chat_id", chatID))
	}

	participants, err := s.membership.Resolve(ctx, chatID, senderID, recipientIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve participants failed")
		return nil, err
	}
	if !slices.Contains(participants, senderID) {
		span.SetStatus(codes.Error, "sender not a participant")
		return nil, fmt.Errorf("route to chat %s: %w", chatID, domain.ErrNotParticipant)
	}

	msg := &domain.Message{
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: s.now(),
	}
	id, err := s.messages.PersistMessage(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.log.ErrorContext(ctx, "messages - route chat message - persist failed, not delivered",
			logging.Chat(chatID), logging.User(senderID), logging.Err(err))
		return nil, fmt.Errorf("persist message: %w", err)
	}
	msg.ID = id

	var senderName string
	if u, err := s.users.GetUserByID(ctx, senderID); err != nil {
		s.log.WarnContext(ctx, "messages - route chat message - sender lookup failed",
			logging.User(senderID), logging.Err(err))
	} else {
		senderName = u.Username
	}

	payload, err := json.Marshal(domain.OutboundChatMessage{
		Type:           domain.TypeChatMessage,
		MessageID:      msg.ID,
		ChatID:         msg.ChatID,
		SenderID:       msg.SenderID,
		SenderUsername: senderName,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	})
	if err != nil {
		span.RecordError(err)
		return msg, fmt.Errorf("encode chat message: %w", err)
	}

	delivered := 0
	for _, p := range participants {
		if p == senderID {
			continue
		}
		if s.registry.PushToUser(p, payload) {
			delivered++
		}
	}
	span.SetAttributes(
		attribute.Int("recipients", len(participants)-1),
		attribute.Int("delivered", delivered),
	)
	s.log.InfoContext(ctx, "messages - route chat message - delivered",
		logging.Chat(chatID), logging.Message(msg.ID), logging.User(senderID),
		slog.Int("recipients", len(participants)-1), slog.Int("delivered", delivered))
	return msg, nil
}

// chatIDFor reuses the chat whose participants are exactly the sender plus
// recipients, or mints a new id.
func (s *MessageService) chatIDFor(ctx context.Context, senderID string, recipientIDs []string) (string, error) {
	participants := domain.NormalizeParticipants(append([]string{senderID}, recipientIDs...))
	if len(participants) < 2 {
		return "", fmt.Errorf("new chat needs at least one recipient: %w", domain.ErrInvalidInput)
	}
	chat, err := s.chats.FindChatByParticipants(ctx, participants)
	switch {
	case err == nil:
		return chat.ID, nil
	case errors.Is(err, domain.ErrChatNotFound):
		return domain.NewID(), nil
	default:
		return "", fmt.Errorf("find chat by participants: %w", err)
	}
}
