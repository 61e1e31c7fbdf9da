// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. Extraction events and knowledge base reload requests
// travel as JSON through these clients.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/resilience"
)

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// reader is the subset of *kafka.Reader the consume loop needs.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerStats counts messages seen by a Consumer since it started.
type ConsumerStats struct {
	Processed   int64 `json:"processed"`
	Failed      int64 `json:"failed"`
	FetchErrors int64 `json:"fetch_errors"`
}

// Consumer reads messages from a Kafka topic and hands each one to a
// MessageHandler. Every fetched message is committed, whether or not the
// handler succeeded, so a message that can never be processed does not stall
// its partition.
type Consumer struct {
	reader  reader
	handler MessageHandler
	backoff resilience.RetryConfig
	logger  *slog.Logger

	processed   atomic.Int64
	failed      atomic.Int64
	fetchErrors atomic.Int64
}

// ConsumerOption customizes the reader configuration.
type ConsumerOption func(*kafka.ReaderConfig)

// FromBeginning makes a new consumer group start at the oldest offset.
func FromBeginning() ConsumerOption {
	return func(rc *kafka.ReaderConfig) {
		rc.StartOffset = kafka.FirstOffset
	}
}

// WithGroup overrides the consumer group. Each extractor replica uses its own
// group so every replica sees every reload request.
func WithGroup(group string) ConsumerOption {
	return func(rc *kafka.ReaderConfig) {
		rc.GroupID = group
	}
}

// NewConsumer creates a Consumer for topic. Offsets start at the newest
// message unless FromBeginning is given.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	rc := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	}
	for _, opt := range opts {
		opt(&rc)
	}
	return newConsumer(kafka.NewReader(rc), handler,
		slog.Default().With("component", "kafka-consumer", "topic", topic, "group", rc.GroupID))
}

func newConsumer(r reader, handler MessageHandler, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		backoff: resilience.RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second},
		logger:  logger,
	}
}

// Start runs the consume loop until ctx is cancelled, then closes the reader.
// Consecutive fetch failures back off exponentially.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	failures := 0
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", context.Cause(ctx))
				return c.reader.Close()
			}
			c.fetchErrors.Add(1)
			failures++
			delay := c.backoff.Delay(failures)
			c.logger.Error("failed to fetch message", "error", err, "retry_in", delay)
			select {
			case <-ctx.Done():
				c.logger.Info("consumer stopping", "reason", context.Cause(ctx))
				return c.reader.Close()
			case <-time.After(delay):
			}
			continue
		}
		failures = 0
		c.dispatch(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message) {
	defer func() {
		if p := recover(); p != nil {
			c.failed.Add(1)
			c.logger.Error("message handler panicked",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"panic", p,
			)
		}
	}()
	c.logger.Debug("message received",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
		"value_size", len(msg.Value),
	)
	if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
		c.failed.Add(1)
		c.logger.Warn("failed to process message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}
	c.processed.Add(1)
}

// Stats returns message counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Processed:   c.processed.Load(),
		Failed:      c.failed.Load(),
		FetchErrors: c.fetchErrors.Load(),
	}
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
