package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"chat-relay/internal/database"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrReceiveTimeout reports that no message arrived within the poll window.
	ErrReceiveTimeout = errors.New("no message before timeout")
	// ErrSubscriptionClosed reports a subscription that has been torn down.
	ErrSubscriptionClosed = errors.New("subscription closed")
)

type RedisService struct {
	client *database.RedisClient
}

func NewRedisService(client *database.RedisClient) *RedisService {
	return &RedisService{
		client: client,
	}
}

// RoomChannel is the broker channel name for a room.
func RoomChannel(roomID uint) string {
	return fmt.Sprintf("chat_%d", roomID)
}

func (r *RedisService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

// =============================================================================
// PubSub Operations
// =============================================================================

func (r *RedisService) PublishRoomMessage(ctx context.Context, roomID uint, payload []byte) error {
	channel := RoomChannel(roomID)
	if err := r.client.GetClient().Publish(ctx, channel, payload).Err(); err != nil {
		slog.Error("Failed to publish room message", "channel", channel, "error", err)
		return err
	}

	slog.Debug("Published room message", "channel", channel)
	return nil
}

// SubscribeRoom subscribes to a room channel and waits for the broker to
// confirm it, so a failure surfaces here rather than on the first receive.
func (r *RedisService) SubscribeRoom(ctx context.Context, roomID uint) (*RoomSubscription, error) {
	channel := RoomChannel(roomID)
	pubsub := r.client.GetClient().Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	slog.Debug("Subscribed to channel", "channel", channel)
	return &RoomSubscription{pubsub: pubsub, channel: channel}, nil
}

// RoomSubscription is one connection's subscription to one room channel.
type RoomSubscription struct {
	pubsub  *redis.PubSub
	channel string
	closed  atomic.Bool
}

// Receive waits up to timeout for the next published payload. Subscribe
// confirmations and pongs count as "nothing yet".
func (s *RoomSubscription) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrSubscriptionClosed
	}

	msg, err := s.pubsub.ReceiveTimeout(ctx, timeout)
	if err != nil {
		if s.closed.Load() || errors.Is(err, redis.ErrClosed) {
			return nil, ErrSubscriptionClosed
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrReceiveTimeout
		}
		return nil, err
	}

	switch m := msg.(type) {
	case *redis.Message:
		return []byte(m.Payload), nil
	default:
		return nil, ErrReceiveTimeout
	}
}

func (s *RoomSubscription) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	slog.Debug("Unsubscribed from channel", "channel", s.channel)
	return s.pubsub.Close()
}

// =============================================================================
// Rate Limiting
// =============================================================================

// CheckRateLimit records one hit on key and reports whether the caller is still
// under limit hits within the sliding window.
func (r *RedisService) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window).UnixMicro()

	pipe := r.client.GetClient().Pipeline()

	// Remove old entries
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))

	// Count current entries
	count := pipe.ZCard(ctx, key)

	// Add current request
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: now.UnixNano()})

	// Set expiration
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return count.Val() < int64(limit), nil
}

// =============================================================================
// Migration State Management
// =============================================================================

func (r *RedisService) SetMigrationState(ctx context.Context, version string, status string) error {
	return r.client.GetClient().HSet(ctx, "db:migration:status", map[string]interface{}{
		"version":    version,
		"status":     status,
		"updated_at": time.Now().Unix(),
	}).Err()
}

func (r *RedisService) GetMigrationState(ctx context.Context) (map[string]string, error) {
	return r.client.GetClient().HGetAll(ctx, "db:migration:status").Result()
}
