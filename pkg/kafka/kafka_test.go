package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/config"
)

type reloadRequest struct {
	Reason string `json:"reason"`
}

func TestEncode(t *testing.T) {
	msgs, err := encode([]Event{{Key: "kb", Value: reloadRequest{Reason: "seed updated"}}})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "kb", string(msgs[0].Key))
	assert.JSONEq(t, `{"reason":"seed updated"}`, string(msgs[0].Value))

	_, err = encode([]Event{{Key: "bad", Value: make(chan int)}})
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[reloadRequest]([]byte(`{"reason":"manual"}`))
	require.NoError(t, err)
	assert.Equal(t, "manual", got.Reason)

	_, err = DecodeJSON[reloadRequest]([]byte(`{`))
	assert.Error(t, err)
}

func TestProducerOptions(t *testing.T) {
	var called bool
	p := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, "extraction-events",
		WithAsync(func(int, error) { called = true }),
		WithBatchTimeout(time.Second),
	)
	defer p.Close()
	assert.True(t, p.writer.Async)
	assert.Equal(t, time.Second, p.writer.BatchTimeout)
	p.writer.Completion(nil, nil)
	assert.True(t, called)
}

func TestConsumerOptions(t *testing.T) {
	rc := kafka.ReaderConfig{GroupID: "reltime-group", StartOffset: kafka.LastOffset}
	FromBeginning()(&rc)
	WithGroup("extractor-host-1")(&rc)
	assert.Equal(t, kafka.FirstOffset, rc.StartOffset)
	assert.Equal(t, "extractor-host-1", rc.GroupID)
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	fetchErrs int
	committed []int64
	closed    bool
	drained   chan struct{}
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if f.fetchErrs > 0 {
		f.fetchErrs--
		f.mu.Unlock()
		return kafka.Message{}, errors.New("broker unavailable")
	}
	if len(f.msgs) > 0 {
		msg := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	close(f.drained)
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestConsumerCommitsEveryMessage(t *testing.T) {
	r := &fakeReader{
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte(`{"reason":"ok"}`)},
			{Offset: 2, Value: []byte(`{`)},
			{Offset: 3, Value: []byte(`"panic"`)},
			{Offset: 4, Value: []byte(`{"reason":"ok"}`)},
		},
		fetchErrs: 1,
		drained:   make(chan struct{}),
	}
	handler := func(_ context.Context, _ []byte, value []byte) error {
		if string(value) == `"panic"` {
			panic("handler bug")
		}
		_, err := DecodeJSON[reloadRequest](value)
		return err
	}
	c := newConsumer(r, handler, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.backoff.InitialDelay = time.Millisecond
	c.backoff.MaxDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	select {
	case <-r.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain messages")
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3, 4}, r.committed)
	assert.True(t, r.closed)
	assert.Equal(t, ConsumerStats{Processed: 2, Failed: 2, FetchErrors: 1}, c.Stats())
}

type fakeWriter struct {
	written []kafka.Message
	err     error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishBatch(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, "kb-reload")
	fw := &fakeWriter{}
	p.out = fw
	ctx := context.Background()

	require.NoError(t, p.PublishBatch(ctx, nil))
	assert.Empty(t, fw.written)

	require.NoError(t, p.Publish(ctx, Event{Key: "replica-a", Value: reloadRequest{Reason: "manual"}}))
	require.Len(t, fw.written, 1)
	assert.Equal(t, "replica-a", string(fw.written[0].Key))

	err := p.PublishBatch(ctx, []Event{{Key: "ok", Value: 1}, {Key: "bad", Value: make(chan int)}})
	require.Error(t, err)
	assert.Len(t, fw.written, 1)

	fw.err = errors.New("leader not available")
	assert.ErrorContains(t, p.Publish(ctx, Event{Key: "k", Value: 1}), "leader not available")
}
