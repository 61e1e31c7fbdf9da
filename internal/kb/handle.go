package kb

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Source yields the knowledge base to use for one operation.
type Source interface {
	Snapshot() *KnowledgeBase
}

// Snapshot lets a bare KnowledgeBase act as a Source.
func (kb *KnowledgeBase) Snapshot() *KnowledgeBase {
	return kb
}

// Loader produces a fresh knowledge base.
type Loader func(ctx context.Context) (*KnowledgeBase, error)

// Handle publishes a knowledge base that can be replaced while readers are
// active. Readers always see a complete snapshot.
type Handle struct {
	current  atomic.Pointer[KnowledgeBase]
	version  atomic.Int64
	loadedAt atomic.Int64
	logger   *slog.Logger
}

// NewHandle creates a Handle serving kb.
func NewHandle(kb *KnowledgeBase) *Handle {
	h := &Handle{logger: slog.Default().With("component", "kb")}
	h.Swap(kb)
	return h
}

// Snapshot returns the current knowledge base.
func (h *Handle) Snapshot() *KnowledgeBase {
	return h.current.Load()
}

// Swap replaces the current knowledge base and returns the new version.
func (h *Handle) Swap(kb *KnowledgeBase) int64 {
	h.current.Store(kb)
	h.loadedAt.Store(time.Now().UnixNano())
	return h.version.Add(1)
}

// Version increments on every swap.
func (h *Handle) Version() int64 {
	return h.version.Load()
}

// LoadedAt returns when the current snapshot was installed.
func (h *Handle) LoadedAt() time.Time {
	return time.Unix(0, h.loadedAt.Load())
}

// Reload builds a new knowledge base with load and swaps it in. On error the
// current snapshot stays in place.
func (h *Handle) Reload(ctx context.Context, load Loader) (Stats, error) {
	start := time.Now()
	next, err := load(ctx)
	if err != nil {
		h.logger.Error("knowledge base reload failed", "error", err)
		return Stats{}, fmt.Errorf("reloading knowledge base: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Stats{}, fmt.Errorf("reloading knowledge base: %w", err)
	}
	version := h.Swap(next)
	stats := next.Stats()
	h.logger.Info("knowledge base reloaded",
		"version", version,
		"phrases", stats.Phrases,
		"keyterms", stats.Keyterms,
		"duration", time.Since(start),
	)
	return stats, nil
}
