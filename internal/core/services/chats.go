package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/masterboy376/cphere/internal/core/contracts"
	"github.com/masterboy376/cphere/internal/core/domain"
	"github.com/masterboy376/cphere/pkg/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ChatService struct {
	membership contracts.MembershipCache
	chats      domain.ChatRepository
	messages   domain.MessageRepository
	users      domain.UserRepository
	log        *slog.Logger
}

func NewChatService(
	log *slog.Logger,
	membership contracts.MembershipCache,
	chats domain.ChatRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
) *ChatService {
	return &ChatService{
		log:        log,
		membership: membership,
		chats:      chats,
		messages:   messages,
		users:      users,
	}
}

// Summaries lists the user's chats that have at least one message, most recently active first.
func (s *ChatService) Summaries(ctx context.Context, userID string) ([]domain.ChatSummary, error) {
	ctx, span := tracer.Start(ctx, "ChatService.Summaries", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()
	chats, err := s.chats.ListChatsForUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list chats: %w", err)
	}
	out := make([]domain.ChatSummary, 0, len(chats))
	for _, c := range chats {
		last, err := s.messages.LastMessage(ctx, c.ID)
		if errors.Is(err, domain.ErrMessageNotFound) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("last message of %s: %w", c.ID, err)
		}
		sum := domain.ChatSummary{
			ChatID:        c.ID,
			LastMessage:   last.Content,
			LastMessageAt: last.CreatedAt,
		}
		for _, p := range c.ParticipantIDs {
			if p != userID {
				sum.OtherParticipantID = p
				break
			}
		}
		if sum.OtherParticipantID != "" {
			if u, err := s.users.GetUserByID(ctx, sum.OtherParticipantID); err == nil {
				sum.OtherParticipantName = u.Username
			} else {
				s.log.WarnContext(ctx, "chats - summaries - participant lookup failed", logging.Chat(c.ID), logging.Err(err))
			}
		}
		out = append(out, sum)
	}
	slices.SortStableFunc(out, func(a, b domain.ChatSummary) int {
		return b.LastMessageAt.Compare(a.LastMessageAt)
	})
	span.SetAttributes(attribute.Int("chat_count", len(out)))
	return out, nil
}

// Messages returns the chat history, oldest first, to a participant.
func (s *ChatService) Messages(ctx context.Context, userID, chatID string) ([]domain.Message, error) {
	ctx, span := tracer.Start(ctx, "ChatService.Messages", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("chat_id", chatID),
	))
	defer span.End()
	if !domain.ValidID(chatID) {
		return nil, domain.ErrInvalidID
	}
	participants, err := s.membership.Resolve(ctx, chatID, userID, nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !slices.Contains(participants, userID) {
		return nil, domain.ErrNotParticipant
	}
	msgs, err := s.messages.ListMessages(ctx, chatID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list messages: %w", err)
	}
	span.SetAttributes(attribute.Int("message_count", len(msgs)))
	return msgs, nil
}
