package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"chat-relay/internal/auth"

	"github.com/gorilla/websocket"
)

// IdentityVerifier resolves an access token to the user behind it.
type IdentityVerifier interface {
	Resolve(ctx context.Context, token string) (auth.Identity, error)
}

// Directory answers whether a room exists.
type Directory interface {
	RoomExists(ctx context.Context, roomID uint) (bool, error)
}

type RelayConfig struct {
	Client         ClientConfig
	AllowedOrigins []string
	// HandshakeTimeout bounds authentication, room lookup and subscribe.
	HandshakeTimeout time.Duration
}

// Relay accepts chat WebSocket connections and drives each one through
// authentication and room validation to an active Client.
type Relay struct {
	verifier  IdentityVerifier
	directory Directory
	broker    Broker
	queue     Enqueuer
	registry  *Registry
	upgrader  websocket.Upgrader
	cfg       RelayConfig
	logger    *slog.Logger

	// mu orders closing against wg.Add so Shutdown never waits on a
	// counter that is still growing.
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

func NewRelay(verifier IdentityVerifier, directory Directory, broker Broker, queue Enqueuer, registry *Registry, cfg RelayConfig, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	cfg.Client = cfg.Client.withDefaults()

	return &Relay{
		verifier:  verifier,
		directory: directory,
		broker:    broker,
		queue:     queue,
		registry:  registry,
		upgrader:  NewUpgrader(cfg.AllowedOrigins),
		cfg:       cfg,
		logger:    logger.With("component", "relay"),
	}
}

func (r *Relay) Registry() *Registry {
	return r.registry
}

// rejection is a close frame sent to a connection that never became active.
type rejection struct {
	code   int
	reason string
}

func (e *rejection) Error() string {
	return strconv.Itoa(e.code) + " " + e.reason
}

func reject(code int, reason string) *rejection {
	return &rejection{code: code, reason: reason}
}

var errShuttingDown = reject(websocket.CloseGoingAway, "server shutting down")

// Serve upgrades the request and runs the handshake for rawRoomID. Rejections
// are reported to the peer as a close frame after the upgrade. On success the
// connection's pumps keep running after Serve returns.
func (r *Relay) Serve(w http.ResponseWriter, req *http.Request, rawRoomID string) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), r.cfg.HandshakeTimeout)
	defer cancel()

	if _, err := r.handshake(ctx, conn, tokenFromRequest(req), rawRoomID); err != nil {
		r.rejectConn(conn, err)
	}
}

// handshake authenticates, validates the room and activates the connection.
// Every error it returns is a *rejection.
func (r *Relay) handshake(ctx context.Context, conn Conn, token, rawRoomID string) (*Client, error) {
	logger := r.logger.With("room", rawRoomID)
	state := StateConnecting
	logger.Debug("Connection state", "state", state)

	if r.isClosing() {
		return nil, errShuttingDown
	}

	state = StateAuthenticating
	logger.Debug("Connection state", "state", state)
	if token == "" {
		return nil, reject(websocket.ClosePolicyViolation, "missing token")
	}
	identity, err := r.verifier.Resolve(ctx, token)
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUserNotFound):
		logger.Info("Rejected WebSocket connection", "reason", "authentication", "error", err)
		return nil, reject(websocket.ClosePolicyViolation, "invalid token")
	case err != nil:
		logger.Error("Identity lookup failed", "error", err)
		return nil, reject(websocket.CloseInternalServerErr, "identity lookup failed")
	}
	logger = logger.With("userID", identity.UserID)

	state = StateValidating
	logger.Debug("Connection state", "state", state)
	roomID, err := strconv.ParseUint(rawRoomID, 10, 64)
	if err != nil || roomID == 0 {
		return nil, reject(websocket.CloseUnsupportedData, "room not found")
	}
	exists, err := r.directory.RoomExists(ctx, uint(roomID))
	if err != nil {
		logger.Error("Room lookup failed", "error", err)
		return nil, reject(websocket.CloseInternalServerErr, "room lookup failed")
	}
	if !exists {
		logger.Info("Rejected WebSocket connection", "reason", "room not found")
		return nil, reject(websocket.CloseUnsupportedData, "room not found")
	}

	client, err := r.activate(ctx, conn, uint(roomID), identity)
	if errors.Is(err, errShuttingDown) {
		return nil, err
	}
	if err != nil {
		logger.Error("Failed to subscribe to room", "error", err)
		return nil, reject(websocket.CloseInternalServerErr, "subscription failed")
	}
	return client, nil
}

// activate subscribes a fresh bridge and registers the client as one unit:
// a failed subscribe leaves nothing registered.
func (r *Relay) activate(ctx context.Context, conn Conn, roomID uint, identity auth.Identity) (*Client, error) {
	bridge := NewBridge(r.broker)
	if err := bridge.Subscribe(ctx, roomID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closing {
		bridge.Unsubscribe()
		return nil, errShuttingDown
	}

	client := newClient(clientParams{
		roomID:   roomID,
		identity: identity,
		conn:     conn,
		bridge:   bridge,
		broker:   r.broker,
		queue:    r.queue,
		registry: r.registry,
		cfg:      r.cfg.Client,
		logger:   r.logger,
	})
	r.registry.Add(roomID, client)

	r.wg.Add(1)
	client.start()
	go func() {
		defer r.wg.Done()
		client.Wait()
	}()

	client.logger.Info("WebSocket connection established", "username", identity.Username)
	return client, nil
}

func (r *Relay) isClosing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closing
}

func (r *Relay) rejectConn(conn Conn, err error) {
	code, reason := websocket.CloseInternalServerErr, "internal error"
	var rej *rejection
	if errors.As(err, &rej) {
		code, reason = rej.code, rej.reason
	}

	deadline := time.Now().Add(r.cfg.Client.WriteWait)
	if err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline); err != nil {
		r.logger.Debug("Failed to send close frame", "error", err)
	}
	conn.Close()
	r.logger.Debug("Connection state", "state", StateRejected, "code", code)
}

// Shutdown closes every live connection and waits for their pumps to exit.
// New connections are refused from the moment it is called.
func (r *Relay) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()

	closed := r.registry.CloseAll()
	r.logger.Info("Closing live WebSocket connections", "count", closed)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tokenFromRequest takes the token query parameter, falling back to the
// Authorization header. A "Bearer " prefix is stripped later by the verifier.
func tokenFromRequest(req *http.Request) string {
	if token := strings.TrimSpace(req.URL.Query().Get("token")); token != "" {
		return token
	}
	return strings.TrimSpace(req.Header.Get("Authorization"))
}
