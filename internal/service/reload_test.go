package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb/kbtest"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/kafka"
)

type flakyPublisher struct {
	failures int
	calls    int
	events   []kafka.Event
}

func (p *flakyPublisher) Publish(_ context.Context, e kafka.Event) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("broker not available")
	}
	p.events = append(p.events, e)
	return nil
}

func TestBroadcastRetriesTransientErrors(t *testing.T) {
	pub := &flakyPublisher{failures: 1}
	b := NewBroadcaster(pub, "replica-a")

	require.NoError(t, b.Broadcast(context.Background(), "seed updated"))
	assert.Equal(t, 2, pub.calls)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "kb-reload", pub.events[0].Key)

	req, ok := pub.events[0].Value.(ReloadRequest)
	require.True(t, ok)
	assert.Equal(t, "replica-a", req.Origin)
	assert.Equal(t, "seed updated", req.Reason)
}

func TestBroadcastGivesUp(t *testing.T) {
	pub := &flakyPublisher{failures: 10}
	b := NewBroadcaster(pub, "replica-a")

	err := b.Broadcast(context.Background(), "seed updated")
	assert.ErrorContains(t, err, "broker not available")
	assert.Equal(t, 3, pub.calls)
}

func TestHandleReload(t *testing.T) {
	handle := kb.NewHandle(kbtest.New(t))
	x := New(Config{Handle: handle, Loader: func(context.Context) (*kb.KnowledgeBase, error) {
		return kbtest.New(t), nil
	}})
	handler := HandleReload(x, "replica-a")

	encode := func(origin string) []byte {
		b, err := json.Marshal(ReloadRequest{Origin: origin})
		require.NoError(t, err)
		return b
	}

	require.NoError(t, handler(context.Background(), nil, encode("replica-a")))
	assert.Equal(t, int64(1), handle.Version(), "own request is skipped")

	require.NoError(t, handler(context.Background(), nil, encode("replica-b")))
	assert.Equal(t, int64(2), handle.Version())

	assert.NoError(t, handler(context.Background(), nil, []byte("not json")))
	assert.Equal(t, int64(2), handle.Version())
}
