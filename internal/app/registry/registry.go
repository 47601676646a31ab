package registry

import (
	"sync"

	"github.com/masterboy376/cphere/internal/core/contracts"
)

// Registry holds at most one live connection per user.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]contracts.Client // user_id → client
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]contracts.Client),
	}
}

// Register installs c and stops the connection it replaces. The newest
// connection for a user always wins.
func (h *Registry) Register(c contracts.Client) contracts.Client {
	h.mu.Lock()
	old := h.clients[c.UserID()]
	h.clients[c.UserID()] = c
	h.mu.Unlock()
	if old != nil && old != c {
		old.Stop(contracts.StopSuperseded)
		return old
	}
	return nil
}

// Deregister is a no-op when c has already been replaced.
func (h *Registry) Deregister(c contracts.Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.UserID()]; ok && cur == c {
		delete(h.clients, c.UserID())
		return true
	}
	return false
}

func (h *Registry) Lookup(userID string) (contracts.Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[userID]
	return c, ok
}

func (h *Registry) IsOnline(userID string) bool {
	_, ok := h.Lookup(userID)
	return ok
}

func (h *Registry) BatchIsOnline(userIDs []string) map[string]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		_, out[id] = h.clients[id]
	}
	return out
}

func (h *Registry) PushToUser(userID string, data []byte) bool {
	c, ok := h.Lookup(userID)
	if !ok {
		return false
	}
	return c.Push(data)
}

func (h *Registry) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll stops every registered connection. Entries are removed by each
// connection's own teardown.
func (h *Registry) CloseAll(reason contracts.StopReason) int {
	h.mu.RLock()
	snapshot := make([]contracts.Client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()
	for _, c := range snapshot {
		c.Stop(reason)
	}
	return len(snapshot)
}
