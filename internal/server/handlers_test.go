package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/logging"
	"github.com/Tyrowin/roomchat/internal/messages"
	"github.com/Tyrowin/roomchat/internal/storage"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testOrigin = "http://localhost:8080"

type testEnv struct {
	srv   *Server
	mgr   storage.Manager
	ts    *httptest.Server
	wsURL string
}

func newTestEnv(t *testing.T, opts ...func(*Config)) *testEnv {
	t.Helper()

	cfg := DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	for _, opt := range opts {
		opt(&cfg)
	}
	mgr := storage.NewInMemoryManager()

	srv := New(cfg, mgr, logging.Discard())
	srv.Start()

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = srv.Shutdown(2 * time.Second) })

	return &testEnv{
		srv:   srv,
		mgr:   mgr,
		ts:    ts,
		wsURL: "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

func (e *testEnv) dial(t *testing.T, username, room string) *websocket.Conn {
	t.Helper()

	q := url.Values{"username": {username}}
	if room != "" {
		q.Set("room", room)
	}
	header := http.Header{}
	header.Set("Origin", testOrigin)

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(e.wsURL+"?"+q.Encode(), header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// join dials and consumes the history and users frames every new
// connection starts with.
func (e *testEnv) join(t *testing.T, username, room string) *websocket.Conn {
	t.Helper()
	conn := e.dial(t, username, room)
	require.Equal(t, frameHistory, readFrame(t, conn)["type"])
	require.Equal(t, frameUsers, readFrame(t, conn)["type"])
	return conn
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(raw, &frame), string(raw))
	return frame
}

// assertSilent expects no frame within a short window. The connection is not
// usable for reading afterwards.
func assertSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, raw, err := conn.ReadMessage()
	assert.Error(t, err, "unexpected frame: %s", raw)
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func seedMessages(t *testing.T, store messages.Store, room string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := store.Save(context.Background(), &messages.Message{
			Username:  "seed",
			Text:      fmt.Sprintf("m%d", i+1),
			Timestamp: time.Now(),
			Room:      room,
		})
		require.NoError(t, err)
	}
}

func TestWebSocket_ChatAckAndRoomIsolation(t *testing.T) {
	env := newTestEnv(t)

	alice := env.join(t, "alice", "general")
	bob := env.join(t, "bob", "general")
	carol := env.join(t, "carol", "other")

	// alice learns about bob
	users := readFrame(t, alice)
	assert.Equal(t, frameUsers, users["type"])
	assert.Equal(t, []any{"alice", "bob"}, users["users"])

	sendJSON(t, alice, map[string]any{"text": "hi", "clientId": 1001})

	ack := readFrame(t, alice)
	assert.Equal(t, map[string]any{"type": "ack", "clientId": float64(1001), "id": float64(1)}, ack)

	msg := readFrame(t, bob)
	assert.NotContains(t, msg, "type")
	assert.Equal(t, float64(1), msg["id"])
	assert.Equal(t, "alice", msg["username"])
	assert.Equal(t, "hi", msg["text"])
	assert.Equal(t, "general", msg["room"])

	assertSilent(t, carol)
	assertSilent(t, alice)
}

func TestWebSocket_NoAckWithoutClientID(t *testing.T) {
	env := newTestEnv(t)

	alice := env.join(t, "alice", "general")
	bob := env.join(t, "bob", "general")
	readFrame(t, alice)

	sendJSON(t, alice, map[string]any{"text": "plain"})

	assert.Equal(t, "plain", readFrame(t, bob)["text"])
	assertSilent(t, alice)
}

func TestWebSocket_HistoryIsMostRecentInAscendingOrder(t *testing.T) {
	env := newTestEnv(t)
	seedMessages(t, env.mgr.Messages(), "general", 250)
	seedMessages(t, env.mgr.Messages(), "other", 3)

	conn := env.dial(t, "alice", "")

	history := readFrame(t, conn)
	require.Equal(t, frameHistory, history["type"])
	msgs := history["messages"].([]any)
	require.Len(t, msgs, 200)
	assert.Equal(t, float64(51), msgs[0].(map[string]any)["id"])
	assert.Equal(t, float64(250), msgs[199].(map[string]any)["id"])

	users := readFrame(t, conn)
	assert.Equal(t, frameUsers, users["type"])
	assert.Equal(t, "general", users["room"])
}

func TestWebSocket_EmptyRoomHistory(t *testing.T) {
	env := newTestEnv(t)

	conn := env.dial(t, "alice", "quiet")
	history := readFrame(t, conn)
	assert.Equal(t, map[string]any{"type": "history", "messages": []any{}}, history)
}

func TestWebSocket_TypingGoesToOthersOnly(t *testing.T) {
	env := newTestEnv(t)

	alice := env.join(t, "alice", "general")
	bob := env.join(t, "bob", "general")
	readFrame(t, alice)

	sendJSON(t, alice, map[string]any{"type": "typing", "isTyping": true})

	assert.Equal(t, map[string]any{"type": "typing", "username": "alice", "isTyping": true}, readFrame(t, bob))
	assertSilent(t, alice)
}

func TestWebSocket_ReactionReachesWholeRoom(t *testing.T) {
	env := newTestEnv(t)
	seedMessages(t, env.mgr.Messages(), "general", 1)

	alice := env.join(t, "alice", "general")
	bob := env.join(t, "bob", "general")
	carol := env.join(t, "carol", "other")
	readFrame(t, alice)

	sendJSON(t, bob, map[string]any{"type": "reaction", "messageId": 1, "emoji": "👍"})

	want := map[string]any{"type": "reaction", "messageId": float64(1), "emoji": "👍", "username": "bob"}
	assert.Equal(t, want, readFrame(t, alice))
	assert.Equal(t, want, readFrame(t, bob))
	assertSilent(t, carol)

	// toggled off again
	sendJSON(t, bob, map[string]any{"type": "reaction", "messageId": 1, "emoji": "👍"})
	assert.Equal(t, want, readFrame(t, bob))

	history, err := env.mgr.Messages().ListRecent(context.Background(), "general", 10)
	require.NoError(t, err)
	assert.Empty(t, history[0].Reactions)
}

func TestWebSocket_MalformedFrameKeepsConnection(t *testing.T) {
	env := newTestEnv(t)

	alice := env.join(t, "alice", "general")
	bob := env.join(t, "bob", "general")
	readFrame(t, alice)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("{not json")))
	sendJSON(t, alice, map[string]any{"type": "reaction", "messageId": 99, "emoji": "👍"})
	sendJSON(t, alice, map[string]any{"text": "still here"})

	assert.Equal(t, "still here", readFrame(t, bob)["text"])
}

func TestWebSocket_DisconnectAnnouncesUsers(t *testing.T) {
	env := newTestEnv(t)

	alice := env.join(t, "alice", "general")
	bob := env.join(t, "bob", "general")
	readFrame(t, alice)

	require.NoError(t, bob.Close())

	users := readFrame(t, alice)
	assert.Equal(t, []any{"alice"}, users["users"])
}

func TestWebSocket_OversizedFrameClosesConnection(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) { cfg.MaxMessageSize = 256 })

	alice := env.join(t, "alice", "general")
	bob := env.join(t, "bob", "general")
	readFrame(t, alice)

	sendJSON(t, bob, map[string]any{"text": strings.Repeat("x", 1024)})

	// bob is dropped for exceeding the read limit, alice sees him leave
	users := readFrame(t, alice)
	assert.Equal(t, []any{"alice"}, users["users"])

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := bob.ReadMessage()
	assert.Error(t, err)
}

func TestWebSocket_RateLimitedFramesAreDropped(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.RateLimit = RateLimitConfig{Burst: 2, RefillInterval: time.Hour}
	})

	alice := env.join(t, "alice", "general")
	bob := env.join(t, "bob", "general")
	readFrame(t, alice)

	for i := 0; i < 4; i++ {
		sendJSON(t, alice, map[string]any{"text": fmt.Sprintf("m%d", i)})
	}

	assert.Equal(t, "m0", readFrame(t, bob)["text"])
	assert.Equal(t, "m1", readFrame(t, bob)["text"])
	assertSilent(t, bob)
}

func TestWebSocket_Rejections(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/ws", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	conn, resp, err := websocket.DefaultDialer.Dial(env.wsURL+"?username=mallory", header)
	require.Error(t, err)
	if conn != nil {
		_ = conn.Close()
	}
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestREST_EditAndDeleteBroadcastToOwningRoom(t *testing.T) {
	env := newTestEnv(t)
	seedMessages(t, env.mgr.Messages(), "general", 1)

	alice := env.join(t, "alice", "general")
	carol := env.join(t, "carol", "other")

	resp := env.do(t, http.MethodPut, "/message", map[string]any{"id": 1, "text": "edited"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"type": "edit", "id": float64(1), "text": "edited"}, readFrame(t, alice))

	resp = env.do(t, http.MethodDelete, "/message?id=1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, map[string]any{"type": "delete", "id": float64(1)}, readFrame(t, alice))

	assertSilent(t, carol)

	resp = env.do(t, http.MethodDelete, "/message?id=1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/message", map[string]any{"id": 42, "text": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/message?id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestREST_Accounts(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/register", credentials{Username: "alice", Password: "s3cret"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/register", credentials{Username: "alice", Password: "other"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/register", credentials{Username: "", Password: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/login", credentials{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/login", credentials{Username: "nobody", Password: "s3cret"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/login", credentials{Username: "alice", Password: "s3cret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	assert.Equal(t, map[string]any{"username": "alice", "darkMode": false}, login)

	resp = env.do(t, http.MethodPost, "/set_dark_mode", map[string]any{"username": "alice", "darkMode": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/get_dark_mode?username=alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dark map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dark))
	assert.True(t, dark["darkMode"])

	resp = env.do(t, http.MethodGet, "/get_dark_mode?username=nobody", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/get_dark_mode", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestREST_Rooms(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/rooms", map[string]any{"name": "vault", "isPrivate": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/rooms", map[string]any{"name": "vault", "creator": "alice", "isPrivate": true, "password": "open sesame"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "vault", created["name"])
	assert.NotContains(t, created, "passwordHash")
	assert.NotContains(t, created, "PasswordHash")

	resp = env.do(t, http.MethodPost, "/rooms", map[string]any{"name": "vault"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/rooms", map[string]any{"name": "lobby", "description": "everyone"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/rooms/vault/join", map[string]any{"password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/rooms/vault/join", map[string]any{"password": "open sesame"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/rooms/lobby/join", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/rooms/missing/join", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/rooms", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 2)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.join(t, "alice", "general")

	resp := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))

	resp = env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, map[string]any{"status": "ok", "clients": float64(1), "durable": false}, health)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodOptions, env.ts.URL+"/message", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServerShutdownClosesSockets(t *testing.T) {
	env := newTestEnv(t)
	conn := env.join(t, "alice", "general")

	require.NoError(t, env.srv.Shutdown(2*time.Second))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, 0, env.srv.Hub().ClientCount())
}
