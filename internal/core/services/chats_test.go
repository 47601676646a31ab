package services

import (
	"context"
	"testing"
	"time"

	"github.com/masterboy376/cphere/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) chats() *ChatService {
	return NewChatService(discard, f.members, f.store, f.store, f.store)
}

func (f *fixture) say(t *testing.T, chatID, senderID, content string, at time.Time) {
	t.Helper()
	_, err := f.store.PersistMessage(context.Background(), &domain.Message{ChatID: chatID, SenderID: senderID, Content: content, CreatedAt: at})
	require.NoError(t, err)
}

func TestChatService_Summaries(t *testing.T) {
	f := newFixture()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	withBob := f.chat(t, alice, bob)
	withCarol := f.chat(t, alice, carol)
	f.chat(t, alice, f.user(t, "dave"))

	base := time.Now().UTC()
	f.say(t, withBob, alice, "old", base)
	f.say(t, withCarol, carol, "newer", base.Add(time.Minute))
	f.say(t, withBob, bob, "newest", base.Add(2*time.Minute))

	got, err := f.chats().Summaries(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, withBob, got[0].ChatID)
	assert.Equal(t, bob, got[0].OtherParticipantID)
	assert.Equal(t, "bob", got[0].OtherParticipantName)
	assert.Equal(t, "newest", got[0].LastMessage)
	assert.Equal(t, withCarol, got[1].ChatID)
	assert.Equal(t, "carol", got[1].OtherParticipantName)
}

func TestChatService_Messages(t *testing.T) {
	f := newFixture()
	alice, bob, eve := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "eve")
	chatID := f.chat(t, alice, bob)
	base := time.Now().UTC()
	f.say(t, chatID, bob, "second", base.Add(time.Second))
	f.say(t, chatID, alice, "first", base)

	msgs, err := f.chats().Messages(context.Background(), alice, chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)

	_, err = f.chats().Messages(context.Background(), eve, chatID)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	_, err = f.chats().Messages(context.Background(), alice, "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = f.chats().Messages(context.Background(), alice, domain.NewID())
	assert.ErrorIs(t, err, domain.ErrChatNotFound)
}
