package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KinKeep/pkg/errors"
)

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	Brokers      []string
	GroupID      string
	Topic        string
	FromLatest   bool
	MaxWait      time.Duration
	ErrorBackoff time.Duration
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EnvelopeHandler receives decoded events.
type EnvelopeHandler func(ctx context.Context, env *EventEnvelope) error

// Consumer reads event envelopes from one topic within a consumer group.
type Consumer struct {
	reader ReaderInterface
	config ConsumerConfig
	logger logging.Logger
}

func NewConsumer(cfg ConsumerConfig, logger logging.Logger) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = time.Second
	}
	start := kafka.FirstOffset
	if cfg.FromLatest {
		start = kafka.LastOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MaxWait:     cfg.MaxWait,
		StartOffset: start,
	})
	return newConsumerWithReader(reader, cfg, logger), nil
}

func newConsumerWithReader(r ReaderInterface, cfg ConsumerConfig, logger logging.Logger) *Consumer {
	if cfg.ErrorBackoff == 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Consumer{reader: r, config: cfg, logger: logger}
}

// Run fetches until ctx is cancelled. Every message is committed once the
// handler has seen it, whether or not the handler succeeded; malformed
// messages are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handle EnvelopeHandler) error {
	c.logger.Info("Kafka consumer started", logging.String("group", c.config.GroupID), logging.String("topic", c.config.Topic))
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("FetchMessage error", logging.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.config.ErrorBackoff):
			}
			continue
		}

		var env EventEnvelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			c.logger.Warn("Skipping malformed event",
				logging.Int64("offset", m.Offset), logging.Err(err))
		} else if err := handle(ctx, &env); err != nil {
			c.logger.Error("Event handler failed",
				logging.String("event_id", env.EventID), logging.Err(err))
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("CommitMessages failed", logging.Err(err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "brokers required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeValidation, "group id required")
	}
	if cfg.Topic == "" {
		return errors.New(errors.ErrCodeValidation, "topic required")
	}
	return nil
}
