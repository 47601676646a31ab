package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/masterboy376/cphere/internal/app/registry"
	"github.com/masterboy376/cphere/internal/core/contracts"
	"github.com/masterboy376/cphere/internal/core/domain"
	"github.com/masterboy376/cphere/internal/plugins/memory"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// eventLog records the order in which persistence and delivery happen.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeClient struct {
	id     string
	userID string
	log    *eventLog

	mu      sync.Mutex
	frames  [][]byte
	stopped []contracts.StopReason
}

func (f *fakeClient) ID() string     { return f.id }
func (f *fakeClient) UserID() string { return f.userID }

func (f *fakeClient) Push(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.stopped) > 0 {
		return false
	}
	if f.log != nil {
		f.log.add("push:" + f.userID)
	}
	f.frames = append(f.frames, data)
	return true
}

func (f *fakeClient) Stop(reason contracts.StopReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, reason)
}

func (f *fakeClient) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

func (f *fakeClient) stopReasons() []contracts.StopReason {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]contracts.StopReason(nil), f.stopped...)
}

// recordingMessages wraps a message store, logging each persist and
// optionally failing it.
type recordingMessages struct {
	domain.MessageRepository
	log *eventLog
	err error
}

func (r *recordingMessages) PersistMessage(ctx context.Context, msg *domain.Message) (string, error) {
	r.log.add("persist")
	if r.err != nil {
		return "", r.err
	}
	return r.MessageRepository.PersistMessage(ctx, msg)
}

type fixture struct {
	store    *memory.Store
	hub      *registry.Registry
	members  *registry.Membership
	events   *eventLog
	messages *recordingMessages
}

func newFixture() *fixture {
	store := memory.NewStore()
	events := &eventLog{}
	return &fixture{
		store:    store,
		hub:      registry.NewRegistry(),
		members:  registry.NewMembership(store),
		events:   events,
		messages: &recordingMessages{MessageRepository: store, log: events},
	}
}

func (f *fixture) router() *MessageService {
	return NewMessageService(discard, f.hub, f.members, f.store, f.messages, f.store)
}

func (f *fixture) user(t *testing.T, name string) string {
	t.Helper()
	u := &domain.User{ID: domain.NewID(), Username: name, Email: name + "@example.com", CreatedAt: time.Now().UTC()}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u.ID
}

func (f *fixture) connect(userID string) *fakeClient {
	c := &fakeClient{id: domain.NewID(), userID: userID, log: f.events}
	f.hub.Register(c)
	return c
}

func (f *fixture) chat(t *testing.T, participants ...string) string {
	t.Helper()
	id := domain.NewID()
	_, err := f.store.LoadOrCreateChat(context.Background(), id, participants)
	require.NoError(t, err)
	return id
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}
