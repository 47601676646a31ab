package services

import (
	"context"

	"github.com/masterboy376/cphere/internal/core/contracts"
	"github.com/masterboy376/cphere/internal/core/domain"
)

// OnlineStatus serializes as a two element array: [user_id, online].
type OnlineStatus [2]any

type PresenceService struct {
	registry contracts.Registry
}

func NewPresenceService(registry contracts.Registry) *PresenceService {
	return &PresenceService{registry: registry}
}

func (p *PresenceService) IsOnline(_ context.Context, userID string) (bool, error) {
	if !domain.ValidID(userID) {
		return false, domain.ErrInvalidID
	}
	return p.registry.IsOnline(userID), nil
}

// BatchIsOnline answers in request order and skips malformed ids.
func (p *PresenceService) BatchIsOnline(_ context.Context, userIDs []string) []OnlineStatus {
	valid := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if domain.ValidID(id) {
			valid = append(valid, id)
		}
	}
	online := p.registry.BatchIsOnline(valid)
	out := make([]OnlineStatus, 0, len(valid))
	for _, id := range valid {
		out = append(out, OnlineStatus{id, online[id]})
	}
	return out
}
