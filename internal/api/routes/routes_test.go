package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"chat-relay/internal/auth"
	"chat-relay/internal/database"
	"chat-relay/internal/models"
	"chat-relay/internal/repositories/postgres"
	"chat-relay/internal/services"
	"chat-relay/internal/websocket"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// localBroker fans out in process, standing in for Redis.
type localBroker struct {
	mu   sync.Mutex
	subs map[uint]map[*localSubscription]struct{}
}

func (b *localBroker) Publish(_ context.Context, roomID uint, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[roomID] {
		select {
		case sub.events <- payload:
		default:
		}
	}
	return nil
}

func (b *localBroker) Subscribe(_ context.Context, roomID uint) (websocket.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[uint]map[*localSubscription]struct{})
	}
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[*localSubscription]struct{})
	}
	sub := &localSubscription{broker: b, roomID: roomID, events: make(chan []byte, 16), closed: make(chan struct{})}
	b.subs[roomID][sub] = struct{}{}
	return sub, nil
}

type localSubscription struct {
	broker *localBroker
	roomID uint
	events chan []byte
	closed chan struct{}
	once   sync.Once
}

func (s *localSubscription) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	select {
	case payload := <-s.events:
		return payload, nil
	case <-s.closed:
		return nil, websocket.ErrSubscriptionClosed
	case <-time.After(timeout):
		return nil, websocket.ErrNoEvent
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *localSubscription) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.broker.mu.Lock()
		delete(s.broker.subs[s.roomID], s)
		s.broker.mu.Unlock()
	})
	return nil
}

type stubLimiter struct {
	mu    sync.Mutex
	deny  bool
	err   error
	calls int
}

func (l *stubLimiter) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return !l.deny, l.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testApp struct {
	server  *httptest.Server
	relay   *websocket.Relay
	queue   *services.MessageQueue
	limiter *stubLimiter
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// The drain goroutine writes while handlers read.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func newTestApp(t *testing.T, health error) *testApp {
	t.Helper()
	db := newTestDB(t)

	users := postgres.NewUserRepository(db)
	rooms := postgres.NewRoomRepository(db)
	messages := postgres.NewMessageRepository(db)

	tokens := auth.NewTokenManager("test-secret", time.Hour, users)
	queue := services.NewMessageQueue(messages, services.MessageQueueConfig{}, nil)
	relay := websocket.NewRelay(tokens, rooms, &localBroker{}, queue, websocket.NewRegistry(), websocket.RelayConfig{
		Client: websocket.ClientConfig{PollTimeout: 20 * time.Millisecond},
	}, nil)
	limiter := &stubLimiter{}

	router := NewRouter(Dependencies{
		AuthService:    auth.NewAuthService(users, tokens),
		Tokens:         tokens,
		RoomService:    services.NewRoomService(rooms, messages),
		Relay:          relay,
		Queue:          queue,
		RateLimiter:    limiter,
		Health:         stubPinger{err: health},
		AllowedOrigins: []string{"http://localhost:5173"},
	})
	router.SetupRoutes()

	app := &testApp{
		server:  httptest.NewServer(router.GetEngine()),
		relay:   relay,
		queue:   queue,
		limiter: limiter,
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		relay.Shutdown(ctx)
		queue.Shutdown(ctx)
		app.server.Close()
	})
	return app
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (a *testApp) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	resp, _ := a.do(t, http.MethodPost, "/register", "", models.RegisterRequest{Username: username, Password: "secret123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := a.do(t, http.MethodPost, "/login", "", models.LoginRequest{Username: username, Password: "secret123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var token models.TokenResponse
	require.NoError(t, json.Unmarshal(body, &token))
	assert.Equal(t, "bearer", token.TokenType)
	return token.AccessToken
}

func TestAuthRoutes(t *testing.T) {
	app := newTestApp(t, nil)

	resp, body := app.do(t, http.MethodPost, "/register", "", models.RegisterRequest{Username: "alice", Password: "secret123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var user models.UserResponse
	require.NoError(t, json.Unmarshal(body, &user))
	assert.Equal(t, "alice", user.Username)
	assert.NotZero(t, user.ID)
	assert.NotContains(t, string(body), "password")

	resp, _ = app.do(t, http.MethodPost, "/register", "", models.RegisterRequest{Username: "alice", Password: "another1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = app.do(t, http.MethodPost, "/register", "", models.RegisterRequest{Username: "bob", Password: "123"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = app.do(t, http.MethodPost, "/login", "", models.LoginRequest{Username: "alice", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))

	resp, _ = app.do(t, http.MethodPost, "/login", "", models.LoginRequest{Username: "nobody", Password: "secret123"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	form := url.Values{"username": {"alice"}, "password": {"secret123"}}
	formResp, err := http.PostForm(app.server.URL+"/login", form)
	require.NoError(t, err)
	formResp.Body.Close()
	assert.Equal(t, http.StatusOK, formResp.StatusCode)
}

func TestDeleteCurrentUser(t *testing.T) {
	app := newTestApp(t, nil)
	token := app.registerAndLogin(t, "alice")

	resp, _ := app.do(t, http.MethodDelete, "/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = app.do(t, http.MethodDelete, "/users/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = app.do(t, http.MethodDelete, "/users/me", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The token outlives the account but no longer resolves.
	resp, _ = app.do(t, http.MethodGet, "/rooms", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoomRoutes(t *testing.T) {
	app := newTestApp(t, nil)
	token := app.registerAndLogin(t, "alice")

	resp, body := app.do(t, http.MethodPost, "/rooms", token, models.CreateRoomRequest{Name: "general"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var room models.RoomResponse
	require.NoError(t, json.Unmarshal(body, &room))
	assert.Equal(t, "general", room.Name)

	resp, _ = app.do(t, http.MethodPost, "/rooms", token, models.CreateRoomRequest{Name: "general"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = app.do(t, http.MethodPost, "/rooms", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = app.do(t, http.MethodGet, "/rooms", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rooms []models.RoomResponse
	require.NoError(t, json.Unmarshal(body, &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, room.ID, rooms[0].ID)

	resp, body = app.do(t, http.MethodGet, fmt.Sprintf("/rooms/%d/messages", room.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	tests := []struct {
		path string
		code int
	}{
		{path: "/rooms/999/messages", code: http.StatusNotFound},
		{path: "/rooms/abc/messages", code: http.StatusBadRequest},
		{path: fmt.Sprintf("/rooms/%d/messages?limit=0", room.ID), code: http.StatusBadRequest},
		{path: fmt.Sprintf("/rooms/%d/messages?skip=-1", room.ID), code: http.StatusBadRequest},
		{path: fmt.Sprintf("/rooms/%d/messages?skip=x", room.ID), code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, _ := app.do(t, http.MethodGet, tt.path, token, nil)
		assert.Equal(t, tt.code, resp.StatusCode, tt.path)
	}

	resp, _ = app.do(t, http.MethodGet, "/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func wsURL(app *testApp, roomID uint, token string) string {
	return "ws" + strings.TrimPrefix(app.server.URL, "http") + fmt.Sprintf("/ws/chat/%d?token=%s", roomID, url.QueryEscape(token))
}

func TestChatIsDeliveredAndPersisted(t *testing.T) {
	app := newTestApp(t, nil)
	aliceToken := app.registerAndLogin(t, "alice")
	bobToken := app.registerAndLogin(t, "bob")

	resp, body := app.do(t, http.MethodPost, "/rooms", aliceToken, models.CreateRoomRequest{Name: "general"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var room models.RoomResponse
	require.NoError(t, json.Unmarshal(body, &room))

	a, _, err := gorillaws.DefaultDialer.Dial(wsURL(app, room.ID, aliceToken), nil)
	require.NoError(t, err)
	defer a.Close()
	b, _, err := gorillaws.DefaultDialer.Dial(wsURL(app, room.ID, bobToken), nil)
	require.NoError(t, err)
	defer b.Close()

	require.Eventually(t, func() bool { return app.relay.Registry().Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.WriteMessage(gorillaws.TextMessage, []byte(`{"message":"hello room"}`)))

	for _, conn := range []*gorillaws.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"username":"alice","message":"hello room"}`, string(data))
	}

	var history []models.MessageResponse
	require.Eventually(t, func() bool {
		resp, body := app.do(t, http.MethodGet, fmt.Sprintf("/rooms/%d/messages", room.ID), bobToken, nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		history = nil
		return json.Unmarshal(body, &history) == nil && len(history) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "hello room", history[0].Content)
	assert.Equal(t, "alice", history[0].SenderUsername)

	resp, body = app.do(t, http.MethodGet, "/ws/stats", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.EqualValues(t, 2, stats["connections"])
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	app := newTestApp(t, nil)
	token := app.registerAndLogin(t, "alice")
	_, body := app.do(t, http.MethodPost, "/rooms", token, models.CreateRoomRequest{Name: "general"})
	var room models.RoomResponse
	require.NoError(t, json.Unmarshal(body, &room))

	tests := []struct {
		name  string
		room  uint
		token string
		code  int
	}{
		{name: "forged token", room: room.ID, token: "forged", code: gorillaws.ClosePolicyViolation},
		{name: "unknown room", room: room.ID + 100, token: token, code: gorillaws.CloseUnsupportedData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, _, err := gorillaws.DefaultDialer.Dial(wsURL(app, tt.room, tt.token), nil)
			require.NoError(t, err)
			defer conn.Close()

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err = conn.ReadMessage()
			var closeErr *gorillaws.CloseError
			require.ErrorAs(t, err, &closeErr)
			assert.Equal(t, tt.code, closeErr.Code)
			assert.Equal(t, 0, app.relay.Registry().Count())
		})
	}
}

func TestHealthz(t *testing.T) {
	resp, body := newTestApp(t, nil).do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","redis":"ok"}`, string(body))

	resp, _ = newTestApp(t, errors.New("connection refused")).do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRateLimitedRoutes(t *testing.T) {
	app := newTestApp(t, nil)
	token := app.registerAndLogin(t, "alice")

	app.limiter.mu.Lock()
	app.limiter.deny = true
	app.limiter.mu.Unlock()

	resp, _ := app.do(t, http.MethodPost, "/login", "", models.LoginRequest{Username: "alice", Password: "secret123"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, _ = app.do(t, http.MethodGet, "/rooms", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Health and the relay are not rate limited.
	resp, _ = app.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t, nil)

	req, err := http.NewRequest(http.MethodOptions, app.server.URL+"/rooms", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
