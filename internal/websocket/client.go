package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chat-relay/internal/auth"
	"chat-relay/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn a Client uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Enqueuer accepts messages for asynchronous persistence.
type Enqueuer interface {
	Enqueue(services.QueuedMessage) error
}

type ClientConfig struct {
	// PollTimeout bounds each wait on the bridge, and so teardown latency.
	PollTimeout    time.Duration
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	return c
}

// pingPeriod must stay below PongWait.
func (c ClientConfig) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// Client is one active connection: a socket bound to a room, an identity and
// a bridge subscription. Its two pumps run until the first terminating event,
// after which Close tears everything down exactly once.
type Client struct {
	id       string
	roomID   uint
	identity auth.Identity
	conn     Conn
	bridge   *Bridge
	broker   Broker
	queue    Enqueuer
	registry *Registry
	cfg      ClientConfig
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed int32 // atomic; set by the first teardown
	done   chan struct{}

	wg sync.WaitGroup
}

type clientParams struct {
	roomID   uint
	identity auth.Identity
	conn     Conn
	bridge   *Bridge
	broker   Broker
	queue    Enqueuer
	registry *Registry
	cfg      ClientConfig
	logger   *slog.Logger
}

func newClient(p clientParams) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()

	logger := p.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		id:       id,
		roomID:   p.roomID,
		identity: p.identity,
		conn:     p.conn,
		bridge:   p.bridge,
		broker:   p.broker,
		queue:    p.queue,
		registry: p.registry,
		cfg:      p.cfg.withDefaults(),
		logger:   logger.With("connID", id, "roomID", p.roomID, "userID", p.identity.UserID),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) RoomID() uint {
	return c.roomID
}

func (c *Client) Identity() auth.Identity {
	return c.identity
}

func (c *Client) State() State {
	if c.isClosed() {
		return StateClosed
	}
	return StateActive
}

// Done is closed once teardown has completed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// start launches the ingress and egress pumps.
func (c *Client) start() {
	c.wg.Add(2)
	go c.readPump()
	go c.writePump()
}

// Wait blocks until both pumps have returned.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Close tears the connection down: unregister, unsubscribe, close the socket.
// Only the first call does the work; later calls wait for it to finish.
func (c *Client) Close() {
	c.teardown(nil)
}

// Shutdown is Close preceded by a going-away close frame to the peer.
func (c *Client) Shutdown() {
	c.teardown(websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
}

func (c *Client) teardown(closeFrame []byte) {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		<-c.done
		return
	}
	defer close(c.done)

	c.cancel()
	c.registry.Remove(c.roomID, c)

	if err := c.bridge.Unsubscribe(); err != nil {
		c.logger.Warn("Failed to unsubscribe bridge", "error", err)
	}

	if closeFrame != nil {
		deadline := time.Now().Add(c.cfg.WriteWait)
		if err := c.conn.WriteControl(websocket.CloseMessage, closeFrame, deadline); err != nil {
			c.logger.Debug("Failed to send close frame", "error", err)
		}
	}

	if err := c.conn.Close(); err != nil {
		c.logger.Debug("Error closing connection", "error", err)
	}

	c.logger.Info("WebSocket connection closed")
}

func (c *Client) readPump() {
	defer func() {
		c.wg.Done()
		c.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		if c.isClosed() {
			return websocket.ErrCloseSent
		}
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case c.isClosed():
			case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				c.logger.Warn("WebSocket read failed", "error", err)
			default:
				c.logger.Debug("WebSocket peer disconnected", "error", err)
			}
			return
		}

		content, ok, err := decodeChatFrame(data)
		if err != nil {
			c.logger.Warn("Closing connection on malformed frame", "error", err)
			return
		}
		if !ok {
			continue
		}

		c.handleChat(content)
	}
}

// handleChat publishes and enqueues one message. The two are independent and
// neither failure ends the connection.
func (c *Client) handleChat(content string) {
	payload, err := encodeEvent(c.identity.Username, content)
	if err != nil {
		c.logger.Error("Failed to encode chat event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.WriteWait)
	err = c.broker.Publish(ctx, c.roomID, payload)
	cancel()
	if err != nil {
		c.logger.Error("Failed to publish chat message", "error", err)
	}

	err = c.queue.Enqueue(services.QueuedMessage{
		RoomID:     c.roomID,
		SenderID:   c.identity.UserID,
		Content:    content,
		EnqueuedAt: time.Now(),
	})
	if err != nil {
		c.logger.Error("Failed to enqueue chat message", "error", err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		c.wg.Done()
		c.Close()
	}()

	for {
		if c.ctx.Err() != nil {
			return
		}

		// Checked every iteration so a busy room still gets keepalives.
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Debug("Failed to send ping", "error", err)
				return
			}
		default:
		}

		payload, err := c.bridge.NextEvent(c.ctx, c.cfg.PollTimeout)
		switch {
		case err == nil:
		case errors.Is(err, ErrNoEvent):
			continue
		case errors.Is(err, ErrSubscriptionClosed), errors.Is(err, context.Canceled):
			return
		default:
			c.logger.Error("Room subscription failed", "error", err)
			return
		}

		c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			c.logger.Debug("Failed to write event", "error", err)
			return
		}
	}
}
