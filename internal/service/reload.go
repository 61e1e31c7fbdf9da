package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/resilience"
)

// ReloadRequest asks every extractor replica to rebuild its knowledge base.
type ReloadRequest struct {
	Origin      string    `json:"origin"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// EventPublisher is the part of kafka.Producer used for broadcasts.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Broadcaster fans a reload out to the other replicas.
type Broadcaster struct {
	publisher EventPublisher
	origin    string
	retry     resilience.RetryConfig
	logger    *slog.Logger
}

// NewBroadcaster tags requests with origin so the sender can skip its own
// message.
func NewBroadcaster(publisher EventPublisher, origin string) *Broadcaster {
	return &Broadcaster{
		publisher: publisher,
		origin:    origin,
		retry:     resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 50 * time.Millisecond},
		logger:    slog.Default().With("component", "kb-broadcaster"),
	}
}

// Origin identifies this replica.
func (b *Broadcaster) Origin() string {
	return b.origin
}

// Broadcast publishes a reload request, retrying transient broker errors.
func (b *Broadcaster) Broadcast(ctx context.Context, reason string) error {
	req := ReloadRequest{Origin: b.origin, Reason: reason, RequestedAt: time.Now().UTC()}
	err := resilience.Retry(ctx, "kb-reload-broadcast", b.retry, func() error {
		return b.publisher.Publish(ctx, kafka.Event{Key: "kb-reload", Value: req})
	})
	if err != nil {
		return err
	}
	b.logger.Info("reload broadcast", "reason", reason)
	return nil
}

// HandleReload consumes reload requests. Requests from self are skipped
// since the sender already reloaded.
func HandleReload(x *Extractor, self string) kafka.MessageHandler {
	logger := slog.Default().With("component", "kb-reload-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		req, err := kafka.DecodeJSON[ReloadRequest](value)
		if err != nil {
			logger.Error("undecodable reload request", "error", err)
			return nil
		}
		if req.Origin == self {
			return nil
		}
		info, err := x.Reload(ctx)
		if err != nil {
			return err
		}
		logger.Info("reloaded on request", "origin", req.Origin, "reason", req.Reason, "version", info.Version)
		return nil
	}
}
