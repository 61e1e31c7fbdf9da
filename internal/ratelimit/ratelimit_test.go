package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowBurst(t *testing.T) {
	l := New(1, 3)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("client-a"), "request %d", i)
	}
	assert.False(t, l.Allow("client-a"))
	assert.True(t, l.Allow("client-b"), "keys have independent buckets")
}

func TestReset(t *testing.T) {
	l := New(1, 1)
	require.True(t, l.Allow("k"))
	require.False(t, l.Allow("k"))
	l.Reset("k")
	assert.True(t, l.Allow("k"))
}

func TestCleanup(t *testing.T) {
	l := New(10, 10)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.Allow("old")
	now = now.Add(time.Hour)
	l.Allow("fresh")

	assert.Equal(t, 1, l.Cleanup())
	assert.Equal(t, 1, l.Len())
}

func TestWaitCancelled(t *testing.T) {
	l := New(0.001, 1)
	require.True(t, l.Allow("k"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.Wait(ctx, "k"))
}
