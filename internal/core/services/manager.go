package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/masterboy376/cphere/internal/core/contracts"
	"github.com/masterboy376/cphere/internal/core/domain"
	"github.com/masterboy376/cphere/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type IManagerService interface {
	// HandleConnect installs the connection as its user's only live one,
	// stopping any connection it replaces.
	HandleConnect(ctx context.Context, c contracts.Client) (superseded bool)
	// HandleMessage decodes one inbound frame and dispatches it. Failures are
	// logged and never end the connection.
	HandleMessage(ctx context.Context, c contracts.Client, raw []byte)
	// HandleDisconnect removes the connection from the registry if it is still the current one.
	HandleDisconnect(ctx context.Context, c contracts.Client)
}

var tracer = otel.Tracer("cphere-services")

type MessageRouter interface {
	RouteChatMessage(ctx context.Context, senderID, chatID, content string, recipientIDs []string) (*domain.Message, error)
}

type SignalRelay interface {
	Relay(ctx context.Context, fromUserID, targetUserID, kind string, payload []byte) bool
}

type ManagerService struct {
	registry contracts.Registry
	router   MessageRouter
	relay    SignalRelay
	log      *slog.Logger
}

func NewManagerService(
	log *slog.Logger,
	registry contracts.Registry,
	router MessageRouter,
	relay SignalRelay,
) *ManagerService {
	return &ManagerService{
		log:      log,
		registry: registry,
		router:   router,
		relay:    relay,
	}
}

func (m *ManagerService) HandleConnect(ctx context.Context, c contracts.Client) bool {
	_, span := tracer.Start(ctx, "ManagerService.HandleConnect", trace.WithAttributes(
		attribute.String("user_id", c.UserID()),
		attribute.String("conn_id", c.ID()),
	))
	defer span.End()
	old := m.registry.Register(c)
	if old != nil {
		span.SetAttributes(attribute.String("superseded_conn_id", old.ID()))
		m.log.InfoContext(ctx, "manager - handle connect - previous connection superseded",
			logging.User(c.UserID()), logging.Conn(c.ID()), slog.String("superseded_conn_id", old.ID()))
		return true
	}
	m.log.InfoContext(ctx, "manager - handle connect - registered", logging.User(c.UserID()), logging.Conn(c.ID()))
	return false
}

func (m *ManagerService) HandleDisconnect(ctx context.Context, c contracts.Client) {
	if m.registry.Deregister(c) {
		m.log.InfoContext(ctx, "manager - handle disconnect - deregistered", logging.User(c.UserID()), logging.Conn(c.ID()))
		return
	}
	m.log.DebugContext(ctx, "manager - handle disconnect - entry already replaced", logging.User(c.UserID()), logging.Conn(c.ID()))
}

func (m *ManagerService) HandleMessage(ctx context.Context, c contracts.Client, raw []byte) {
	userID := c.UserID()
	ctx, span := tracer.Start(ctx, "ManagerService.HandleMessage", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.Int("payload_size", len(raw)),
	))
	defer span.End()

	frame, err := domain.DecodeInbound(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed frame")
		m.log.WarnContext(ctx, "manager - handle message - malformed frame", logging.User(userID), logging.Err(err))
		return
	}
	span.SetAttributes(attribute.String("frame_type", frame.FrameType()))

	switch f := frame.(type) {
	case domain.ChatMessageFrame:
		if _, err := m.router.RouteChatMessage(ctx, userID, f.ChatID, f.Content, f.RecipientIDs); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "route chat message failed")
			level := slog.LevelError
			if errors.Is(err, domain.ErrNotParticipant) || errors.Is(err, domain.ErrInvalidInput) {
				level = slog.LevelWarn
			}
			m.log.Log(ctx, level, "manager - handle message - route chat message failed",
				logging.User(userID), logging.Chat(f.ChatID), logging.Err(err))
		}
	case domain.SignalingFrame:
		m.relay.Relay(ctx, userID, f.TargetUserID, f.Type, f.Raw)
	case domain.CallResponseFrame:
		m.relay.Relay(ctx, userID, f.CallerID, f.Type, f.Raw)
	case domain.LogoutFrame:
		m.log.InfoContext(ctx, "manager - handle message - logout requested", logging.User(userID), logging.Conn(c.ID()))
		c.Stop(contracts.StopLogout)
	case domain.UnknownFrame:
		m.log.WarnContext(ctx, "manager - handle message - unknown frame type ignored", logging.User(userID), slog.String("type", f.Type))
	}
}
