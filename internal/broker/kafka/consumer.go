package kafka

import (
	"context"
	"time"

	"github.com/BearBump/FlightBox/internal/logger"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// ErrMalformed marks a message that can never be handled. Handlers wrap it to have the
// message committed and skipped instead of blocking the partition.
var ErrMalformed = errors.New("malformed message")

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r   messageReader
	log logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log logger.Logger) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return newConsumerWithReader(kafka.NewReader(cfg), log)
}

func newConsumerWithReader(r messageReader, log logger.Logger) *Consumer {
	if log == nil {
		log = logger.Nop()
	}
	return &Consumer{r: r, log: log}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume hands every message to handler and commits it only after success.
// It returns on the first fetch, handler or commit error.
func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		if err := handler(msg.Key, msg.Value); err != nil {
			if !errors.Is(err, ErrMalformed) {
				return err
			}
			c.log.Warn("skipping malformed message",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err.Error())
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}
