package services

import (
	"context"
	"encoding/json"
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

// CallService handles call requests made over REST. The media negotiation that
// follows goes through the signal relay.
type CallService struct {
	registry      contracts.Registry
	membership    contracts.MembershipCache
	users         domain.UserRepository
	notifications domain.NotificationRepository
	log           *slog.Logger
}

func NewCallService(
	log *slog.Logger,
	registry contracts.Registry,
	membership contracts.MembershipCache,
	users domain.UserRepository,
	notifications domain.NotificationRepository,
) *CallService {
	return &CallService{
		log:           log,
		registry:      registry,
		membership:    membership,
		users:         users,
		notifications: notifications,
	}
}

// Initiate records a call request and pushes it to the recipient, who must be
// online and share chatID with the caller.
func (s *CallService) Initiate(ctx context.Context, callerID, recipientID, chatID string) (*domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "CallService.Initiate", trace.WithAttributes(
		attribute.String("caller_id", callerID),
		attribute.String("recipient_id", recipientID),
		attribute.String("chat_id", chatID),
	))
	defer span.End()
	if !domain.ValidID(recipientID) || !domain.ValidID(chatID) {
		return nil, domain.ErrInvalidID
	}
	if recipientID == callerID {
		return nil, fmt.Errorf("%w: cannot call yourself", domain.ErrInvalidInput)
	}
	if !s.registry.IsOnline(recipientID) {
		return nil, domain.ErrRecipientOffline
	}
	participants, err := s.membership.Resolve(ctx, chatID, callerID, nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !slices.Contains(participants, callerID) || !slices.Contains(participants, recipientID) {
		return nil, domain.ErrNotParticipant
	}
	caller, err := s.users.GetUserByID(ctx, callerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load caller: %w", err)
	}

	n := &domain.Notification{
		ID:          domain.NewID(),
		Type:        domain.NotificationVideoCall,
		RecipientID: recipientID,
		SenderID:    callerID,
		Message:     caller.Username + " is calling you",
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store notification failed")
		return nil, fmt.Errorf("store notification: %w", err)
	}
	payload, err := json.Marshal(domain.CallRequestEvent{
		Type: domain.TypeVideoCallRequest,
		Notification: domain.CallNotificationPayload{
			ID:               n.ID,
			NotificationType: n.Type,
			SenderUserID:     callerID,
			SenderUsername:   caller.Username,
			Message:          n.Message,
			Timestamp:        n.CreatedAt,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode call request: %w", err)
	}
	if !s.registry.PushToUser(recipientID, payload) {
		s.log.InfoContext(ctx, "calls - initiate - recipient went away before delivery", logging.User(callerID), slog.String("recipient_id", recipientID))
		return n, domain.ErrRecipientOffline
	}
	s.log.InfoContext(ctx, "calls - initiate - call request delivered", logging.User(callerID), slog.String("recipient_id", recipientID), slog.String("notification_id", n.ID))
	return n, nil
}

// Respond settles a pending call request addressed to userID and tells the
// caller, when online, how it was answered.
func (s *CallService) Respond(ctx context.Context, userID, notificationID string, accepted bool) (*domain.Notification, bool, error) {
	ctx, span := tracer.Start(ctx, "CallService.Respond", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("notification_id", notificationID),
		attribute.Bool("accepted", accepted),
	))
	defer span.End()
	if !domain.ValidID(notificationID) {
		return nil, false, domain.ErrInvalidID
	}
	n, err := s.notifications.MarkHandled(ctx, notificationID, userID)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	typ := domain.TypeVideoCallDeclined
	if accepted {
		typ = domain.TypeVideoCallAccepted
	}
	payload, err := json.Marshal(domain.CallResponseEvent{Type: typ, From: userID, NotificationID: n.ID})
	if err != nil {
		return n, false, fmt.Errorf("encode call response: %w", err)
	}
	delivered := s.registry.PushToUser(n.SenderID, payload)
	s.log.InfoContext(ctx, "calls - respond - answered", logging.User(userID), slog.String("caller_id", n.SenderID), slog.Bool("accepted", accepted), slog.Bool("delivered", delivered))
	return n, delivered, nil
}

func (s *CallService) Notifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.notifications.ListForUser(ctx, userID)
}
