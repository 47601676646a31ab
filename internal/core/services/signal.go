package services

import (
	"context"
	"log/slog"

	"github.com/masterboy376/cphere/internal/core/contracts"
	"github.com/masterboy376/cphere/pkg/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SignalService forwards call-setup frames between two connected users. The
// payload is opaque here.
type SignalService struct {
	registry contracts.Registry
	log      *slog.Logger
}

func NewSignalService(log *slog.Logger, registry contracts.Registry) *SignalService {
	return &SignalService{log: log, registry: registry}
}

// Relay pushes payload unchanged to targetUserID. An offline target is not an error.
func (s *SignalService) Relay(ctx context.Context, fromUserID, targetUserID, kind string, payload []byte) bool {
	ctx, span := tracer.Start(ctx, "SignalService.Relay", trace.WithAttributes(
		attribute.String("from_user_id", fromUserID),
		attribute.String("target_user_id", targetUserID),
		attribute.String("kind", kind),
	))
	defer span.End()
	if s.registry.PushToUser(targetUserID, payload) {
		span.SetAttributes(attribute.Bool("delivered", true))
		s.log.DebugContext(ctx, "signal - relay - forwarded", logging.User(fromUserID), slog.String("target_user_id", targetUserID), slog.String("kind", kind))
		return true
	}
	span.SetAttributes(attribute.Bool("delivered", false))
	s.log.InfoContext(ctx, "signal - relay - target offline, dropped", logging.User(fromUserID), slog.String("target_user_id", targetUserID), slog.String("kind", kind))
	return false
}
