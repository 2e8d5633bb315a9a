package websocket

import (
	"context"
	"errors"
	"time"

	"chat-relay/internal/services"
)

// RedisBroker is the Broker backed by the shared Redis client.
type RedisBroker struct {
	redis *services.RedisService
}

func NewRedisBroker(redis *services.RedisService) *RedisBroker {
	return &RedisBroker{redis: redis}
}

func (b *RedisBroker) Publish(ctx context.Context, roomID uint, payload []byte) error {
	return b.redis.PublishRoomMessage(ctx, roomID, payload)
}

func (b *RedisBroker) Subscribe(ctx context.Context, roomID uint) (Subscription, error) {
	sub, err := b.redis.SubscribeRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &redisSubscription{sub: sub}, nil
}

type redisSubscription struct {
	sub *services.RoomSubscription
}

func (s *redisSubscription) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	payload, err := s.sub.Receive(ctx, timeout)
	switch {
	case errors.Is(err, services.ErrReceiveTimeout):
		return nil, ErrNoEvent
	case errors.Is(err, services.ErrSubscriptionClosed):
		return nil, ErrSubscriptionClosed
	}
	return payload, err
}

func (s *redisSubscription) Close() error {
	return s.sub.Close()
}
