package kafka

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageEvent is the record written for every persisted chat message.
type MessageEvent struct {
	RoomID    uint      `json:"room_id"`
	SenderID  uint      `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageStream appends chat messages to a Kafka topic. Records are keyed by
// room so one room's messages keep their order within a partition.
type MessageStream struct {
	writer messageWriter
	now    func() time.Time
}

func NewMessageStream(brokers []string, topic string) *MessageStream {
	return newMessageStream(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		// One message per write from the drain; flush it promptly.
		BatchTimeout: 10 * time.Millisecond,
	})
}

func newMessageStream(w messageWriter) *MessageStream {
	return &MessageStream{writer: w, now: time.Now}
}

func (s *MessageStream) Commit(ctx context.Context, roomID, senderID uint, content string) error {
	value, err := json.Marshal(MessageEvent{
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode message event: %w", err)
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(roomID))

	if err := s.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value}); err != nil {
		return fmt.Errorf("failed to write message event: %w", err)
	}
	return nil
}

func (s *MessageStream) Close() error {
	return s.writer.Close()
}
