package websocket

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chat-relay/internal/auth"
	"chat-relay/internal/services"

	"github.com/gorilla/websocket"
)

var errClosedConnection = errors.New("use of closed connection")

// fakeBroker is an in-process pub/sub with the same fan-out semantics as the
// Redis channel: every subscription of a room sees every publish, the
// publisher's own included.
type fakeBroker struct {
	mu           sync.Mutex
	subs         map[uint]map[*fakeSubscription]struct{}
	published    [][]byte
	subscribeErr error
	publishErr   error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subs: make(map[uint]map[*fakeSubscription]struct{})}
}

func (b *fakeBroker) Publish(_ context.Context, roomID uint, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, payload)
	for sub := range b.subs[roomID] {
		sub.deliver(payload)
	}
	return nil
}

func (b *fakeBroker) Subscribe(_ context.Context, roomID uint) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	sub := &fakeSubscription{
		broker: b,
		roomID: roomID,
		events: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[*fakeSubscription]struct{})
	}
	b.subs[roomID][sub] = struct{}{}
	return sub, nil
}

func (b *fakeBroker) setSubscribeErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribeErr = err
}

func (b *fakeBroker) setPublishErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishErr = err
}

func (b *fakeBroker) subscriberCount(roomID uint) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[roomID])
}

func (b *fakeBroker) publishedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func (b *fakeBroker) remove(sub *fakeSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[sub.roomID], sub)
	if len(b.subs[sub.roomID]) == 0 {
		delete(b.subs, sub.roomID)
	}
}

type fakeSubscription struct {
	broker     *fakeBroker
	roomID     uint
	events     chan []byte
	closed     chan struct{}
	closeOnce  sync.Once
	closeCalls atomic.Int32
}

func (s *fakeSubscription) deliver(payload []byte) {
	select {
	case s.events <- payload:
	default:
	}
}

func (s *fakeSubscription) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.closed:
		return nil, ErrSubscriptionClosed
	default:
	}

	select {
	case payload := <-s.events:
		return payload, nil
	case <-s.closed:
		return nil, ErrSubscriptionClosed
	case <-timer.C:
		return nil, ErrNoEvent
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSubscription) Close() error {
	s.closeCalls.Add(1)
	s.closeOnce.Do(func() {
		close(s.closed)
		s.broker.remove(s)
	})
	return nil
}

// mockConn is a scripted socket: frames pushed with send are returned by
// ReadMessage, and writes are recorded.
type mockConn struct {
	incoming chan []byte
	closed   chan struct{}
	peerGone chan struct{}

	mu         sync.Mutex
	writes     [][]byte
	controls   []int
	closeCalls int
	closeOnce  sync.Once
	peerOnce   sync.Once
	writeErr   error
}

func newMockConn() *mockConn {
	return &mockConn{
		incoming: make(chan []byte, 16),
		closed:   make(chan struct{}),
		peerGone: make(chan struct{}),
	}
}

func (m *mockConn) send(frame string) {
	m.incoming <- []byte(frame)
}

// hangUp simulates the peer closing the socket.
func (m *mockConn) hangUp() {
	m.peerOnce.Do(func() { close(m.peerGone) })
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-m.incoming:
		return websocket.TextMessage, data, nil
	case <-m.peerGone:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	case <-m.closed:
		return 0, nil, errClosedConnection
	}
}

func (m *mockConn) WriteMessage(_ int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.closed:
		return errClosedConnection
	default:
	}
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, data)
	return nil
}

func (m *mockConn) WriteControl(messageType int, _ []byte, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controls = append(m.controls, messageType)
	return nil
}

func (m *mockConn) SetReadLimit(int64)                {}
func (m *mockConn) SetReadDeadline(time.Time) error   { return nil }
func (m *mockConn) SetWriteDeadline(time.Time) error  { return nil }
func (m *mockConn) SetPongHandler(func(string) error) {}

func (m *mockConn) Close() error {
	m.mu.Lock()
	m.closeCalls++
	m.mu.Unlock()
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *mockConn) getWrites() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.writes))
	for i, w := range m.writes {
		out[i] = string(w)
	}
	return out
}

func (m *mockConn) getControls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.controls...)
}

func (m *mockConn) getCloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

type recordingQueue struct {
	mu       sync.Mutex
	messages []services.QueuedMessage
	err      error
}

func (q *recordingQueue) Enqueue(msg services.QueuedMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.messages = append(q.messages, msg)
	return nil
}

func (q *recordingQueue) snapshot() []services.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]services.QueuedMessage(nil), q.messages...)
}

type fakeVerifier struct {
	identities map[string]auth.Identity

	mu  sync.Mutex
	err error
}

func (v *fakeVerifier) setErr(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.err = err
}

func (v *fakeVerifier) Resolve(_ context.Context, token string) (auth.Identity, error) {
	v.mu.Lock()
	err := v.err
	v.mu.Unlock()
	if err != nil {
		return auth.Identity{}, err
	}
	identity, ok := v.identities[strings.TrimPrefix(token, "Bearer ")]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return identity, nil
}

type fakeDirectory struct {
	mu    sync.Mutex
	rooms map[uint]bool
	err   error
}

func (d *fakeDirectory) RoomExists(_ context.Context, roomID uint) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	return d.rooms[roomID], nil
}

var (
	alice = auth.Identity{UserID: 1, Username: "alice"}
	bob   = auth.Identity{UserID: 2, Username: "bob"}
)

func testClientConfig() ClientConfig {
	return ClientConfig{
		PollTimeout: 20 * time.Millisecond,
		WriteWait:   time.Second,
		PongWait:    time.Minute,
	}
}

// newActiveClient builds a subscribed, registered client the way the relay
// activates one, without starting its pumps.
func newActiveClient(broker *fakeBroker, registry *Registry, queue Enqueuer, roomID uint, identity auth.Identity) (*Client, *mockConn, error) {
	conn := newMockConn()
	bridge := NewBridge(broker)
	if err := bridge.Subscribe(context.Background(), roomID); err != nil {
		return nil, nil, err
	}
	c := newClient(clientParams{
		roomID:   roomID,
		identity: identity,
		conn:     conn,
		bridge:   bridge,
		broker:   broker,
		queue:    queue,
		registry: registry,
		cfg:      testClientConfig(),
	})
	registry.Add(roomID, c)
	return c, conn, nil
}
