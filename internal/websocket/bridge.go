package websocket

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNoEvent means nothing arrived within the poll window.
	ErrNoEvent = errors.New("no event before timeout")
	// ErrSubscriptionClosed means the bridge has been unsubscribed.
	ErrSubscriptionClosed = errors.New("subscription closed")
	// ErrNotSubscribed is returned by NextEvent before Subscribe succeeded.
	ErrNotSubscribed = errors.New("bridge is not subscribed")
	// ErrAlreadySubscribed is returned by a second Subscribe on one bridge.
	ErrAlreadySubscribed = errors.New("bridge is already subscribed")
)

// Subscription is a live broker subscription to one room channel. Receive
// reports ErrNoEvent on timeout and ErrSubscriptionClosed after Close.
type Subscription interface {
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
	Close() error
}

// Broker is the shared pub/sub connection used by every bridge.
type Broker interface {
	Publish(ctx context.Context, roomID uint, payload []byte) error
	Subscribe(ctx context.Context, roomID uint) (Subscription, error)
}

// Bridge adapts one connection to its room's broker channel.
type Bridge struct {
	broker Broker

	mu     sync.Mutex
	sub    Subscription
	roomID uint
	closed bool
}

func NewBridge(broker Broker) *Bridge {
	return &Bridge{broker: broker}
}

// Subscribe joins the room channel. On failure the bridge holds no
// subscription and may be discarded.
func (b *Bridge) Subscribe(ctx context.Context, roomID uint) error {
	b.mu.Lock()
	switch {
	case b.closed:
		b.mu.Unlock()
		return ErrSubscriptionClosed
	case b.sub != nil:
		b.mu.Unlock()
		return ErrAlreadySubscribed
	}
	b.mu.Unlock()

	sub, err := b.broker.Subscribe(ctx, roomID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// Unsubscribed while the broker call was in flight.
	if b.closed {
		sub.Close()
		return ErrSubscriptionClosed
	}
	b.sub = sub
	b.roomID = roomID
	return nil
}

// NextEvent waits up to timeout for the next payload on the room channel.
func (b *Bridge) NextEvent(ctx context.Context, timeout time.Duration) ([]byte, error) {
	b.mu.Lock()
	sub, closed := b.sub, b.closed
	b.mu.Unlock()

	if closed {
		return nil, ErrSubscriptionClosed
	}
	if sub == nil {
		return nil, ErrNotSubscribed
	}

	payload, err := sub.Receive(ctx, timeout)
	if err == nil {
		return payload, nil
	}
	if b.isClosed() {
		return nil, ErrSubscriptionClosed
	}
	return nil, err
}

// Unsubscribe releases the broker subscription. Safe to call more than once
// and concurrently with NextEvent.
func (b *Bridge) Unsubscribe() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	sub := b.sub
	b.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Close()
}

func (b *Bridge) RoomID() uint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.roomID
}

func (b *Bridge) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
