package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/masterboy376/cphere/internal/core/domain"
)

// Membership caches chat participant sets for the life of the process.
// Changes made to a chat outside this cache are not observed.
type Membership struct {
	mu    sync.RWMutex
	chats map[string]map[string]struct{} // chat_id → participant set
	repo  domain.ChatRepository
}

func NewMembership(repo domain.ChatRepository) *Membership {
	return &Membership{
		chats: make(map[string]map[string]struct{}),
		repo:  repo,
	}
}

// Resolve returns a sorted copy of the participants of chatID. On a miss it
// loads the chat, creating it from senderID plus declared when it does not
// exist and declared is non-empty. The store is never called with the lock held.
func (m *Membership) Resolve(ctx context.Context, chatID, senderID string, declared []string) ([]string, error) {
	if chatID == "" {
		return nil, domain.ErrInvalidID
	}
	if members, ok := m.cached(chatID); ok {
		return members, nil
	}

	var initial []string
	if len(declared) > 0 {
		initial = domain.NormalizeParticipants(append([]string{senderID}, declared...))
	}
	chat, err := m.repo.LoadOrCreateChat(ctx, chatID, initial)
	if err != nil {
		return nil, fmt.Errorf("membership: load chat %s: %w", chatID, err)
	}

	set := make(map[string]struct{}, len(chat.ParticipantIDs))
	for _, id := range chat.ParticipantIDs {
		set[id] = struct{}{}
	}
	m.mu.Lock()
	// another resolver may have won the race; keep its entry
	if existing, ok := m.chats[chatID]; ok {
		set = existing
	} else {
		m.chats[chatID] = set
	}
	members := keys(set)
	m.mu.Unlock()
	return members, nil
}

func (m *Membership) cached(chatID string) ([]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.chats[chatID]
	if !ok {
		return nil, false
	}
	return keys(set), true
}

func (m *Membership) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chats)
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
