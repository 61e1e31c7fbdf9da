// Package cache stores extraction results in Redis. Entries are keyed by a
// hash of the input text and the knowledge base version, so a reload never
// serves results computed against the previous phrase set.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/explicit"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/reltime"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/resilience"
)

// Entry is the reference-independent part of an extraction.
type Entry struct {
	ExplicitDates map[string]explicit.Tag `json:"explicit_dates"`
	RelativeTimes []reltime.RelativeTime  `json:"relative_times"`
	UsedCompound  bool                    `json:"used_compound"`
}

// Store is the subset of pkg/redis.Client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
	CountByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats summarizes cache effectiveness.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"`
	Circuit string  `json:"circuit"`
	Keys    *int64  `json:"keys,omitempty"`

	Breaker resilience.Counts `json:"breaker"`
}

// ResultCache is a read-through cache with request coalescing. Redis
// failures trip a circuit breaker; while it is open every lookup is a miss
// and results are computed directly.
type ResultCache struct {
	store   Store
	ttl     time.Duration
	prefix  string
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	errors  atomic.Int64
}

// New creates a ResultCache. m may be nil.
func New(store Store, cfg config.RedisConfig, m *metrics.Metrics) *ResultCache {
	c := &ResultCache{
		store:   store,
		ttl:     cfg.CacheTTL,
		prefix:  cfg.KeyPrefix + "extract:",
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     10 * time.Second,
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// Get returns the cached entry for text under kbVersion.
func (c *ResultCache) Get(ctx context.Context, text string, kbVersion int64) (*Entry, bool) {
	key := c.key(text, kbVersion)
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.Debug("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if data == nil {
		c.miss()
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return &entry, true
}

// Set stores entry for text under kbVersion. Failures are logged only.
func (c *ResultCache) Set(ctx context.Context, text string, kbVersion int64, entry *Entry) {
	key := c.key(text, kbVersion)
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.Debug("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached entry or computes, stores and returns it.
// Concurrent misses for the same key share one computation.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	text string,
	kbVersion int64,
	compute func() (*Entry, error),
) (*Entry, bool, error) {
	if entry, ok := c.Get(ctx, text, kbVersion); ok {
		return entry, true, nil
	}
	val, err, _ := c.group.Do(c.key(text, kbVersion), func() (any, error) {
		entry, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, text, kbVersion, entry)
		return entry, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Entry), false, nil
}

// Invalidate removes every cached extraction.
func (c *ResultCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, c.prefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats reports counters and, when Redis answers, the number of stored keys.
func (c *ResultCache) Stats(ctx context.Context) Stats {
	counts := c.breaker.Counts()
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
		Circuit: counts.State.String(),
		Breaker: counts,
	}
	s.Total = s.Hits + s.Misses
	if s.Total > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Total)
	}
	if c.breaker.Allow() {
		if n, err := c.store.CountByPattern(ctx, c.prefix+"*"); err == nil {
			s.Keys = &n
		}
	}
	return s
}

func (c *ResultCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *ResultCache) key(text string, kbVersion int64) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(kbVersion, 10)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return c.prefix + hex.EncodeToString(h.Sum(nil)[:16])
}
