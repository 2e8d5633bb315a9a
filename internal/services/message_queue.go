package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eapache/queue"
)

// ErrQueueClosed is returned by Enqueue once Shutdown has been called.
var ErrQueueClosed = errors.New("message queue is shut down")

// MessageSink durably stores one chat message.
type MessageSink interface {
	Commit(ctx context.Context, roomID, senderID uint, content string) error
}

// QueuedMessage is plain message data; it never references a connection.
type QueuedMessage struct {
	RoomID     uint
	SenderID   uint
	Content    string
	EnqueuedAt time.Time
}

type MessageQueueConfig struct {
	// CommitInterval is a pause between consecutive commits.
	CommitInterval time.Duration
	// CommitTimeout bounds a single sink call.
	CommitTimeout time.Duration
}

// MessageQueue persists accepted messages off the delivery path. Messages are
// committed one at a time in enqueue order by a single drain goroutine that is
// started on demand and exits when the queue is empty. A failed commit is
// logged and the message dropped.
type MessageQueue struct {
	sink   MessageSink
	cfg    MessageQueueConfig
	logger *slog.Logger

	mu         sync.Mutex
	pending    *queue.Queue
	processing bool
	closed     bool
	drained    chan struct{} // closed when the current drain goroutine exits
}

func NewMessageQueue(sink MessageSink, cfg MessageQueueConfig, logger *slog.Logger) *MessageQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = 5 * time.Second
	}
	return &MessageQueue{
		sink:    sink,
		cfg:     cfg,
		logger:  logger.With("component", "message_queue"),
		pending: queue.New(),
	}
}

// Enqueue appends msg and starts a drain if none is running. It never waits on
// the sink.
func (q *MessageQueue) Enqueue(msg QueuedMessage) error {
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.pending.Add(msg)
	if !q.processing {
		q.processing = true
		q.drained = make(chan struct{})
		go q.drain(q.drained)
	}
	return nil
}

// Len is the number of messages waiting to be committed.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Length()
}

// Processing reports whether a drain goroutine is running.
func (q *MessageQueue) Processing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

// Shutdown stops accepting messages and waits until everything already queued
// has been handed to the sink, or ctx is done.
func (q *MessageQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	drained := q.drained
	processing := q.processing
	remaining := q.pending.Length()
	q.mu.Unlock()

	if !processing {
		return nil
	}

	q.logger.Info("Waiting for message queue to drain", "pending", remaining)
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("message queue not drained (%d pending): %w", q.Len(), ctx.Err())
	}
}

func (q *MessageQueue) drain(done chan struct{}) {
	defer close(done)

	for {
		// The empty check and the flag reset share the lock with Enqueue, so a
		// concurrent Enqueue either lands before the check or starts a new drain.
		q.mu.Lock()
		if q.pending.Length() == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		msg := q.pending.Remove().(QueuedMessage)
		q.mu.Unlock()

		q.commit(msg)

		if q.cfg.CommitInterval > 0 {
			time.Sleep(q.cfg.CommitInterval)
		}
	}
}

func (q *MessageQueue) commit(msg QueuedMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.CommitTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Message sink panicked, message dropped",
				"roomID", msg.RoomID, "senderID", msg.SenderID, "panic", r)
		}
	}()

	if err := q.sink.Commit(ctx, msg.RoomID, msg.SenderID, msg.Content); err != nil {
		q.logger.Error("Failed to save message, message dropped",
			"roomID", msg.RoomID, "senderID", msg.SenderID, "error", err)
		return
	}

	q.logger.Debug("Message saved", "roomID", msg.RoomID, "senderID", msg.SenderID,
		"queuedFor", time.Since(msg.EnqueuedAt))
}
