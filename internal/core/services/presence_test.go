package services

import (
	"context"
	"testing"

	"github.com/masterboy376/cphere/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceService(t *testing.T) {
	f := newFixture()
	p := NewPresenceService(f.hub)
	online, offline := domain.NewID(), domain.NewID()
	f.connect(online)

	ok, err := p.IsOnline(context.Background(), online)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.IsOnline(context.Background(), offline)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.IsOnline(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	got := p.BatchIsOnline(context.Background(), []string{offline, "nope", online})
	assert.Equal(t, []OnlineStatus{{offline, false}, {online, true}}, got)
}
