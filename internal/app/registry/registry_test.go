package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/masterboy376/cphere/internal/core/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	id     string
	userID string

	mu      sync.Mutex
	pushed  [][]byte
	stopped []contracts.StopReason
	full    bool
}

func newFakeClient(id, userID string) *fakeClient {
	return &fakeClient{id: id, userID: userID}
}

func (f *fakeClient) ID() string     { return f.id }
func (f *fakeClient) UserID() string { return f.userID }

func (f *fakeClient) Push(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full || len(f.stopped) > 0 {
		return false
	}
	f.pushed = append(f.pushed, data)
	return true
}

func (f *fakeClient) Stop(reason contracts.StopReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, reason)
}

func (f *fakeClient) stopReasons() []contracts.StopReason {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]contracts.StopReason(nil), f.stopped...)
}

func TestRegistry_RegisterLookupDeregister(t *testing.T) {
	reg := NewRegistry()
	a := newFakeClient("c1", "alice")

	assert.Nil(t, reg.Register(a))
	got, ok := reg.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.True(t, reg.IsOnline("alice"))
	assert.False(t, reg.IsOnline("bob"))

	assert.True(t, reg.Deregister(a))
	assert.False(t, reg.IsOnline("alice"))
	assert.False(t, reg.Deregister(a), "second deregister is a no-op")
	assert.Equal(t, 0, reg.Count())
}

func TestRegistry_TakeoverStopsPreviousConnection(t *testing.T) {
	reg := NewRegistry()
	first := newFakeClient("c1", "alice")
	second := newFakeClient("c2", "alice")

	reg.Register(first)
	old := reg.Register(second)

	assert.Same(t, first, old)
	assert.Equal(t, []contracts.StopReason{contracts.StopSuperseded}, first.stopReasons())
	assert.Empty(t, second.stopReasons())

	got, _ := reg.Lookup("alice")
	assert.Same(t, second, got)
	assert.Equal(t, 1, reg.Count())
}

func TestRegistry_SupersededTeardownKeepsSuccessor(t *testing.T) {
	reg := NewRegistry()
	first := newFakeClient("c1", "alice")
	second := newFakeClient("c2", "alice")
	reg.Register(first)
	reg.Register(second)

	assert.False(t, reg.Deregister(first))

	got, ok := reg.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestRegistry_ReRegisterSameHandle(t *testing.T) {
	reg := NewRegistry()
	a := newFakeClient("c1", "alice")
	reg.Register(a)

	assert.Nil(t, reg.Register(a))
	assert.Empty(t, a.stopReasons())
}

func TestRegistry_PushToUser(t *testing.T) {
	reg := NewRegistry()
	b := newFakeClient("c1", "bob")
	reg.Register(b)

	assert.True(t, reg.PushToUser("bob", []byte("x")))
	assert.False(t, reg.PushToUser("carol", []byte("x")))

	b.full = true
	assert.False(t, reg.PushToUser("bob", []byte("y")))
	assert.Len(t, b.pushed, 1)
}

func TestRegistry_BatchIsOnline(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newFakeClient("c1", "alice"))

	got := reg.BatchIsOnline([]string{"alice", "bob"})
	assert.Equal(t, map[string]bool{"alice": true, "bob": false}, got)
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := NewRegistry()
	a := newFakeClient("c1", "alice")
	b := newFakeClient("c2", "bob")
	reg.Register(a)
	reg.Register(b)

	assert.Equal(t, 2, reg.CloseAll(contracts.StopShutdown))
	assert.Equal(t, []contracts.StopReason{contracts.StopShutdown}, a.stopReasons())
	assert.Equal(t, []contracts.StopReason{contracts.StopShutdown}, b.stopReasons())
}

// Many connections for the same users register and tear down concurrently.
// Afterwards each user has exactly one entry, it is the last handle that was
// not torn down, and every other handle was stopped.
func TestRegistry_ConcurrentTakeoverStress(t *testing.T) {
	reg := NewRegistry()
	const users, perUser = 8, 200

	var (
		wg         sync.WaitGroup
		all        sync.Map
		registered atomic.Int64
	)
	for u := 0; u < users; u++ {
		for i := 0; i < perUser; i++ {
			wg.Add(1)
			go func(u, i int) {
				defer wg.Done()
				c := newFakeClient(fmt.Sprintf("c-%d-%d", u, i), fmt.Sprintf("user-%d", u))
				all.Store(c.id, c)
				reg.Register(c)
				registered.Add(1)
				if i%3 == 0 {
					reg.Deregister(c)
				}
			}(u, i)
		}
	}
	wg.Wait()
	require.EqualValues(t, users*perUser, registered.Load())

	live := 0
	all.Range(func(_, v any) bool {
		c := v.(*fakeClient)
		cur, ok := reg.Lookup(c.userID)
		if ok && cur == contracts.Client(c) {
			live++
			assert.Empty(t, c.stopReasons(), "registered handle must not be stopped")
		}
		return true
	})
	assert.Equal(t, reg.Count(), live)
	assert.LessOrEqual(t, reg.Count(), users)
}
