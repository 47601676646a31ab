package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/masterboy376/cphere/internal/app/registry"
	"github.com/masterboy376/cphere/internal/app/server/ws"
	"github.com/masterboy376/cphere/internal/config"
	"github.com/masterboy376/cphere/internal/core/contracts"
	"github.com/masterboy376/cphere/internal/core/domain"
	"github.com/masterboy376/cphere/internal/core/services"
	"github.com/masterboy376/cphere/internal/plugins/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	srv    *httptest.Server
	server *Server
	hub    *registry.Registry
	outbox *outbox
}

// outbox keeps the last reset token sent to each address.
type outbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (o *outbox) SendPasswordReset(_ context.Context, email, token string, _ time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tokens[email] = token
	return nil
}

func (o *outbox) token(email string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	tok, ok := o.tokens[email]
	return tok, ok
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Service: &config.ServiceConfig{Name: "cphere-test", Env: "development"},
		Auth:    &config.AuthConfig{JWTSecret: "test-secret", Issuer: "cphere-test", TokenTTL: time.Hour, CookieName: "session_id"},
		WebSocket: &config.WebSocketConfig{
			SendBuffer:     16,
			WriteWait:      time.Second,
			PongWait:       time.Minute,
			PingPeriod:     30 * time.Second,
			MaxMessageSize: 64 * 1024,
		},
	}
	store := memory.NewStore()
	sender := &outbox{tokens: make(map[string]string)}
	hub := registry.NewRegistry()
	members := registry.NewMembership(store)
	router := services.NewMessageService(log, hub, members, store, store, store)
	relay := services.NewSignalService(log, hub)
	svc := Services{
		Users:    services.NewUserService(log, store, sender, time.Minute, bcrypt.MinCost),
		Tokens:   services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, memory.NewRevoker()),
		Manager:  services.NewManagerService(log, hub, router, relay),
		Presence: services.NewPresenceService(hub),
		Chats:    services.NewChatService(log, members, store, store, store),
		Calls:    services.NewCallService(log, hub, members, store, store),
	}
	s := NewServer(log, cfg, svc, hub, memory.NewLimiter(1000, time.Minute))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		hub.CloseAll(contracts.StopShutdown)
		ts.Close()
	})
	return &testEnv{srv: ts, server: s, hub: hub, outbox: sender}
}

type account struct {
	ID    string
	Token string
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (e *testEnv) signup(t *testing.T, name string) account {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": name, "email": name + "@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	resp, body = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": name, "password": "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	return account{ID: body["user_id"].(string), Token: body["token"].(string)}
}

func (e *testEnv) dial(t *testing.T, a account) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + a.Token}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (e *testEnv) waitOnline(t *testing.T, userID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		c, ok := e.hub.Lookup(userID)
		return ok && c != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestServer_ChatBetweenTwoUsers(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := env.signup(t, "alice"), env.signup(t, "bob")
	ca, cb := env.dial(t, alice), env.dial(t, bob)
	env.waitOnline(t, alice.ID)
	env.waitOnline(t, bob.ID)

	require.NoError(t, ca.WriteJSON(map[string]any{
		"type": "chat_message", "chat_id": nil, "content": "hi bob", "recipient_ids": []string{bob.ID},
	}))

	var got domain.OutboundChatMessage
	readJSON(t, cb, &got)
	assert.Equal(t, domain.TypeChatMessage, got.Type)
	assert.Equal(t, alice.ID, got.SenderID)
	assert.Equal(t, "alice", got.SenderUsername)
	assert.Equal(t, "hi bob", got.Content)
	assert.True(t, domain.ValidID(got.ChatID))
	assert.True(t, domain.ValidID(got.MessageID))

	require.NoError(t, cb.WriteJSON(map[string]any{"type": "chat_message", "chat_id": got.ChatID, "content": "hey alice"}))
	var reply domain.OutboundChatMessage
	readJSON(t, ca, &reply)
	assert.Equal(t, got.ChatID, reply.ChatID)
	assert.Equal(t, "hey alice", reply.Content)

	resp, body := env.do(t, http.MethodGet, "/chats/"+got.ChatID+"/messages", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["messages"], 2)

	resp, body = env.do(t, http.MethodGet, "/chats", bob.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	chats := body["chats"].([]any)
	require.Len(t, chats, 1)
	assert.Equal(t, "alice", chats[0].(map[string]any)["other_participant_username"])
}

func TestServer_SecondConnectionSupersedesFirst(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	first := env.dial(t, alice)
	env.waitOnline(t, alice.ID)
	old, _ := env.hub.Lookup(alice.ID)
	oldClient, ok := old.(*ws.RuntimeClient)
	require.True(t, ok)

	env.dial(t, alice)
	require.Eventually(t, func() bool {
		c, ok := env.hub.Lookup(alice.ID)
		return ok && c != old
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	assert.Equal(t, "session superseded", closeErr.Text)
	require.Eventually(t, func() bool { return oldClient.State() == ws.StateClosed }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, env.hub.Count())
	assert.True(t, env.hub.IsOnline(alice.ID))
}

func TestServer_SignalingRelay(t *testing.T) {
	env := newTestEnv(t)
	alice, bob, carol := env.signup(t, "alice"), env.signup(t, "bob"), env.signup(t, "carol")
	ca, cb := env.dial(t, alice), env.dial(t, bob)
	env.waitOnline(t, alice.ID)
	env.waitOnline(t, bob.ID)

	require.NoError(t, ca.WriteJSON(map[string]any{"type": "webrtc_offer", "target_user_id": carol.ID, "sdp": "lost"}))
	offer := map[string]any{"type": "webrtc_offer", "target_user_id": bob.ID, "sdp": "v=0"}
	require.NoError(t, ca.WriteJSON(offer))

	var got map[string]any
	readJSON(t, cb, &got)
	assert.Equal(t, "webrtc_offer", got["type"])
	assert.Equal(t, "v=0", got["sdp"])
	assert.Equal(t, bob.ID, got["target_user_id"])
}

func TestServer_LogoutFrameClosesConnection(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	conn := env.dial(t, alice)
	env.waitOnline(t, alice.ID)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "logout"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, "logout", closeErr.Text)
	require.Eventually(t, func() bool { return !env.hub.IsOnline(alice.ID) }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_AuthAndPresence(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/auth/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	alice, bob := env.signup(t, "alice"), env.signup(t, "bob")
	resp, body := env.do(t, http.MethodGet, "/auth/status", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["username"])

	resp, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/auth/register", "", map[string]string{"username": "alice", "email": "x@example.com", "password": "password123"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	env.dial(t, bob)
	env.waitOnline(t, bob.ID)

	resp, body = env.do(t, http.MethodGet, "/users/"+bob.ID+"/online", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["is_online"])

	resp, body = env.do(t, http.MethodPost, "/users/online", alice.Token, map[string][]string{"user_ids": {alice.ID, bob.ID}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{[]any{alice.ID, false}, []any{bob.ID, true}}, body["online_status"])

	resp, _ = env.do(t, http.MethodPost, "/auth/logout", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/auth/status", alice.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_UserSearchAndMe(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	env.signup(t, "alicia")
	env.signup(t, "bob")

	resp, _ := env.do(t, http.MethodGet, "/users/search?q=ali", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/users/search?q=ALI", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	users := body["users"].([]any)
	require.Len(t, users, 2)
	first := users[0].(map[string]any)
	assert.Equal(t, alice.ID, first["id"])
	assert.Equal(t, "alice", first["username"])
	assert.NotContains(t, first, "email")

	resp, body = env.do(t, http.MethodGet, "/users/search?q=bob%40example", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["users"], 1)

	resp, _ = env.do(t, http.MethodGet, "/users/search?q=", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/users/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, alice.ID, body["user_id"])
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "alice@example.com", body["email"])
}

func TestServer_PasswordReset(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice")

	resp, _ := env.do(t, http.MethodPost, "/auth/reset_password", "", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/auth/reset_password", "", map[string]string{"email": "alice@example.com"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	token, ok := env.outbox.token("alice@example.com")
	require.True(t, ok)

	resp, _ = env.do(t, http.MethodPost, "/auth/change_password", "", map[string]string{"reset_token": "bogus", "new_password": "new-password"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/auth/change_password", "", map[string]string{"reset_token": token, "new_password": "new-password"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	resp, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "new-password"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/auth/change_password", "", map[string]string{"reset_token": token, "new_password": "third-password"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_ShutdownClosesConnections(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	conn := env.dial(t, alice)
	env.waitOnline(t, alice.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, env.server.Shutdown(ctx))
	assert.Zero(t, env.hub.Count())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, "server shutting down", closeErr.Text)
}

// stuckClient ignores Stop, so it never leaves the registry.
type stuckClient struct{ id string }

func (c stuckClient) ID() string { return c.id }
func (c stuckClient) UserID() string { return c.id }
func (stuckClient) Push([]byte) bool { return true }
func (stuckClient) Stop(contracts.StopReason) {}

func TestServer_ShutdownGivesUpWhenContextEnds(t *testing.T) {
	env := newTestEnv(t)
	stuck := stuckClient{id: domain.NewID()}
	env.hub.Register(stuck)
	t.Cleanup(func() { env.hub.Deregister(stuck) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := env.server.Shutdown(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, env.hub.Count())
}
