package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/segmentio/kafka-go"
)

type syncProducer interface {
	SendMessages(msgs []*sarama.ProducerMessage) error
	Close() error
}

// saramaWriter sends kafka-go messages through a sarama SyncProducer.
type saramaWriter struct {
	producer syncProducer
	topic    string
}

func newSaramaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.MaxMessageBytes = 1000000
	config.Version = sarama.V2_0_0_0
	config.ClientID = "chat-relay"
	return config
}

// NewSaramaMessageStream builds a MessageStream backed by a sarama producer.
func NewSaramaMessageStream(brokers []string, topic string) (*MessageStream, error) {
	producer, err := sarama.NewSyncProducer(brokers, newSaramaConfig())
	if err != nil {
		return nil, err
	}
	return newMessageStream(&saramaWriter{producer: producer, topic: topic}), nil
}

func (w *saramaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := make([]*sarama.ProducerMessage, 0, len(msgs))
	for _, m := range msgs {
		batch = append(batch, &sarama.ProducerMessage{
			Topic: w.topic,
			Key:   sarama.ByteEncoder(m.Key),
			Value: sarama.ByteEncoder(m.Value),
		})
	}
	return w.producer.SendMessages(batch)
}

func (w *saramaWriter) Close() error {
	return w.producer.Close()
}
