package services

import (
	"context"
	"testing"

	"github.com/masterboy376/cphere/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) calls() *CallService {
	return NewCallService(discard, f.hub, f.members, f.store, f.store)
}

func TestCallService_InitiateAndAccept(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	chatID := f.chat(t, alice, bob)
	ca, cb := f.connect(alice), f.connect(bob)

	n, err := f.calls().Initiate(ctx, alice, bob, chatID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationVideoCall, n.Type)
	assert.Equal(t, "alice is calling you", n.Message)

	require.Len(t, cb.received(), 1)
	req := decode[domain.CallRequestEvent](t, cb.received()[0])
	assert.Equal(t, domain.TypeVideoCallRequest, req.Type)
	assert.Equal(t, n.ID, req.Notification.ID)
	assert.Equal(t, alice, req.Notification.SenderUserID)
	assert.Equal(t, "alice", req.Notification.SenderUsername)

	pending, err := f.calls().Notifications(ctx, bob)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.False(t, pending[0].IsHandled)

	handled, delivered, err := f.calls().Respond(ctx, bob, n.ID, true)
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.True(t, handled.IsHandled)

	require.Len(t, ca.received(), 1)
	resp := decode[domain.CallResponseEvent](t, ca.received()[0])
	assert.Equal(t, domain.TypeVideoCallAccepted, resp.Type)
	assert.Equal(t, bob, resp.From)
	assert.Equal(t, n.ID, resp.NotificationID)

	_, _, err = f.calls().Respond(ctx, bob, n.ID, false)
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
}

func TestCallService_DeclineWithCallerOffline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	chatID := f.chat(t, alice, bob)
	ca := f.connect(alice)
	f.connect(bob)

	n, err := f.calls().Initiate(ctx, alice, bob, chatID)
	require.NoError(t, err)
	f.hub.Deregister(ca)

	_, delivered, err := f.calls().Respond(ctx, bob, n.ID, false)
	require.NoError(t, err)
	assert.False(t, delivered)
}

func TestCallService_InitiateRejects(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice, bob, eve := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "eve")
	chatID := f.chat(t, alice, bob)
	f.connect(eve)

	_, err := f.calls().Initiate(ctx, alice, bob, chatID)
	assert.ErrorIs(t, err, domain.ErrRecipientOffline)

	_, err = f.calls().Initiate(ctx, alice, eve, chatID)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	_, err = f.calls().Initiate(ctx, alice, alice, chatID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.calls().Initiate(ctx, alice, "bob", chatID)
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	pending, err := f.calls().Notifications(ctx, eve)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCallService_RespondOnlyByRecipient(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	chatID := f.chat(t, alice, bob)
	f.connect(bob)

	n, err := f.calls().Initiate(ctx, alice, bob, chatID)
	require.NoError(t, err)

	_, _, err = f.calls().Respond(ctx, alice, n.ID, true)
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
}
