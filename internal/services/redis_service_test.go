package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"chat-relay/internal/database"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedisService connects to a local Redis or skips the test.
func newTestRedisService(t *testing.T) *RedisService {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping integration test")
	}

	t.Cleanup(func() { client.Close() })
	return NewRedisService(database.NewRedisClient(client))
}

func TestRoomChannel(t *testing.T) {
	assert.Equal(t, "chat_7", RoomChannel(7))
}

func TestRedisPublishSubscribe(t *testing.T) {
	svc := newTestRedisService(t)
	ctx := context.Background()
	roomID := uint(time.Now().UnixNano() % 1_000_000_000)

	first, err := svc.SubscribeRoom(ctx, roomID)
	require.NoError(t, err)
	defer first.Close()
	second, err := svc.SubscribeRoom(ctx, roomID)
	require.NoError(t, err)
	defer second.Close()

	payload := []byte(`{"username":"A","message":"hi"}`)
	require.NoError(t, svc.PublishRoomMessage(ctx, roomID, payload))

	for _, sub := range []*RoomSubscription{first, second} {
		got, err := sub.Receive(ctx, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}

	_, err = first.Receive(ctx, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrReceiveTimeout)
}

func TestRedisSubscriptionClose(t *testing.T) {
	svc := newTestRedisService(t)
	sub, err := svc.SubscribeRoom(context.Background(), 424242)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		for {
			if _, err := sub.Receive(context.Background(), 100*time.Millisecond); err != ErrReceiveTimeout {
				errCh <- err
				return
			}
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSubscriptionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not observe close")
	}
}

func TestRedisSubscribeFailure(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	svc := NewRedisService(database.NewRedisClient(client))

	sub, err := svc.SubscribeRoom(context.Background(), 1)
	assert.Error(t, err)
	assert.Nil(t, sub)
}

func TestRedisCheckRateLimit(t *testing.T) {
	svc := newTestRedisService(t)
	ctx := context.Background()
	key := fmt.Sprintf("rate_limit:test:%s", uuid.NewString())
	defer svc.client.GetClient().Del(ctx, key)

	for i := 0; i < 3; i++ {
		allowed, err := svc.CheckRateLimit(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i)
	}

	allowed, err := svc.CheckRateLimit(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}
