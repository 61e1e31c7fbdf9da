// Package service ties the extraction engine, the explicit-date classifier,
// the result cache and the analytics collector into the operations the
// HTTP handlers expose.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/explicit"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/service/cache"
	apperrors "github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/reltime"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/resilience"
)

// Tracker receives one event per served extraction.
type Tracker interface {
	Track(event analytics.ExtractionEvent)
}

// Resolved is a relative time placed on the timeline.
type Resolved struct {
	reltime.RelativeTime
	Text          string    `json:"text"`
	OffsetSeconds int64     `json:"offset_seconds"`
	Time          time.Time `json:"time"`
}

// Span is the interval covered by all resolved times.
type Span struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Response is the extraction result served to clients.
type Response struct {
	Query         string                  `json:"query"`
	Reference     time.Time               `json:"reference"`
	ExplicitDates map[string]explicit.Tag `json:"explicit_dates"`
	RelativeTimes []Resolved              `json:"relative_times"`
	HasDates      bool                    `json:"has_dates"`
	Range         *Span                   `json:"range,omitempty"`
	UsedCompound  bool                    `json:"used_compound"`
	CacheHit      bool                    `json:"cache_hit"`
	KBVersion     int64                   `json:"kb_version"`
}

// KBInfo describes the active knowledge base.
type KBInfo struct {
	kb.Stats
	Version  int64     `json:"version"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Config holds Extractor dependencies. Cache, Tracker and Metrics are
// optional.
type Config struct {
	Handle        *kb.Handle
	Loader        kb.Loader
	Cache         *cache.ResultCache
	Tracker       Tracker
	Metrics       *metrics.Metrics
	MaxInputBytes int
	ReloadTimeout time.Duration
	EngineOptions []engine.Option
}

// Extractor serves extraction and knowledge base administration.
type Extractor struct {
	handle        *kb.Handle
	loader        kb.Loader
	engine        *engine.Engine
	cache         *cache.ResultCache
	tracker       Tracker
	metrics       *metrics.Metrics
	maxInputBytes int
	reloadTimeout time.Duration
	reloadMu      sync.Mutex
	logger        *slog.Logger
}

func New(cfg Config) *Extractor {
	if cfg.MaxInputBytes <= 0 {
		cfg.MaxInputBytes = engine.DefaultMaxInputBytes
	}
	opts := append([]engine.Option{engine.WithMaxInputBytes(cfg.MaxInputBytes)}, cfg.EngineOptions...)
	if cfg.Metrics != nil {
		opts = append(opts, engine.WithObserver(ObserveMetrics(cfg.Metrics)))
	}
	x := &Extractor{
		handle:        cfg.Handle,
		loader:        cfg.Loader,
		engine:        engine.New(cfg.Handle, opts...),
		cache:         cfg.Cache,
		tracker:       cfg.Tracker,
		metrics:       cfg.Metrics,
		maxInputBytes: cfg.MaxInputBytes,
		reloadTimeout: cfg.ReloadTimeout,
		logger:        slog.Default().With("component", "extractor"),
	}
	if x.metrics != nil {
		if k := cfg.Handle.Snapshot(); k != nil {
			x.metrics.KBPhrases.Set(float64(k.Len()))
		}
	}
	return x
}

// ObserveMetrics records per-extraction engine outcomes.
func ObserveMetrics(m *metrics.Metrics) func(engine.Analysis) {
	return func(a engine.Analysis) {
		for _, t := range a.Times {
			m.RelativeTimesTotal.WithLabelValues(t.Frame.String(), t.Tense.String()).Inc()
		}
		if a.UsedCompound {
			m.CompoundSelectedTotal.Inc()
		}
	}
}

// Extract finds explicit dates and relative times in text and places the
// relative times on the timeline around ref. A zero ref means now.
func (x *Extractor) Extract(ctx context.Context, text string, ref time.Time) (*Response, error) {
	start := time.Now()
	if len(text) > x.maxInputBytes {
		x.count("error")
		return nil, apperrors.Newf(apperrors.ErrInputTooLarge, http.StatusRequestEntityTooLarge, "text exceeds %d bytes", x.maxInputBytes)
	}
	if ref.IsZero() {
		ref = start
	}
	ref = ref.UTC()
	if x.handle.Snapshot() == nil {
		x.count("error")
		return nil, apperrors.ErrKnowledgeBaseUnavailable
	}
	version := x.handle.Version()

	compute := func() (*cache.Entry, error) {
		a := x.engine.Analyze(ctx, text)
		return &cache.Entry{
			ExplicitDates: explicit.Extract(text),
			RelativeTimes: a.Times,
			UsedCompound:  a.UsedCompound,
		}, nil
	}
	var (
		entry *cache.Entry
		hit   bool
		err   error
	)
	if x.cache != nil {
		entry, hit, err = x.cache.GetOrCompute(ctx, text, version, compute)
	} else {
		entry, err = compute()
	}
	if err != nil {
		x.count("error")
		return nil, fmt.Errorf("extracting: %w", err)
	}

	resp := &Response{
		Query:         text,
		Reference:     ref,
		ExplicitDates: entry.ExplicitDates,
		RelativeTimes: make([]Resolved, 0, len(entry.RelativeTimes)),
		UsedCompound:  entry.UsedCompound,
		CacheHit:      hit,
		KBVersion:     version,
	}
	if resp.ExplicitDates == nil {
		resp.ExplicitDates = map[string]explicit.Tag{}
	}
	for _, rt := range entry.RelativeTimes {
		resp.RelativeTimes = append(resp.RelativeTimes, Resolved{
			RelativeTime:  rt,
			Text:          rt.String(),
			OffsetSeconds: rt.Seconds(),
			Time:          rt.Time(ref),
		})
	}
	if s, e, ok := reltime.Range(entry.RelativeTimes, ref); ok {
		resp.Range = &Span{Start: s, End: e}
	}
	resp.HasDates = len(resp.ExplicitDates) > 0 || len(resp.RelativeTimes) > 0

	elapsed := time.Since(start)
	if resp.HasDates {
		x.count("resolved")
	} else {
		x.count("empty")
	}
	if x.metrics != nil {
		status := "miss"
		if hit {
			status = "hit"
		}
		x.metrics.ExtractionLatency.WithLabelValues(status).Observe(elapsed.Seconds())
	}
	if x.tracker != nil {
		frames := make([]string, 0, len(entry.RelativeTimes))
		for _, rt := range entry.RelativeTimes {
			frames = append(frames, rt.Frame.String())
		}
		x.tracker.Track(analytics.ExtractionEvent{
			Type:          analytics.EventExtraction,
			Text:          text,
			RelativeTimes: len(entry.RelativeTimes),
			ExplicitDates: len(resp.ExplicitDates),
			Frames:        frames,
			UsedCompound:  entry.UsedCompound,
			CacheHit:      hit,
			LatencyUs:     elapsed.Microseconds(),
			KBVersion:     version,
			Timestamp:     time.Now().UTC(),
			RequestID:     logger.RequestID(ctx),
		})
	}
	return resp, nil
}

// KBInfo reports the active knowledge base.
func (x *Extractor) KBInfo() (KBInfo, error) {
	k := x.handle.Snapshot()
	if k == nil {
		return KBInfo{}, apperrors.ErrKnowledgeBaseUnavailable
	}
	return KBInfo{
		Stats:    k.Stats(),
		Version:  x.handle.Version(),
		LoadedAt: x.handle.LoadedAt().UTC(),
	}, nil
}

// Reload rebuilds the knowledge base from the configured loader and swaps
// it in. Concurrent reloads are rejected rather than queued.
func (x *Extractor) Reload(ctx context.Context) (KBInfo, error) {
	if x.loader == nil {
		return KBInfo{}, apperrors.New(apperrors.ErrKnowledgeBaseUnavailable, http.StatusServiceUnavailable, "no knowledge base loader configured")
	}
	if !x.reloadMu.TryLock() {
		return KBInfo{}, apperrors.ErrReloadInProgress
	}
	defer x.reloadMu.Unlock()

	stats, err := resilience.Bounded(ctx, x.reloadTimeout, "kb-reload", func(ctx context.Context) (kb.Stats, error) {
		return x.handle.Reload(ctx, x.loader)
	})
	if err != nil {
		x.reloaded("error")
		if errors.Is(err, context.DeadlineExceeded) {
			return KBInfo{}, apperrors.Newf(apperrors.ErrTimeout, http.StatusGatewayTimeout, "knowledge base reload exceeded %v", x.reloadTimeout)
		}
		return KBInfo{}, fmt.Errorf("%w: %w", apperrors.ErrKnowledgeBaseUnavailable, err)
	}
	x.reloaded("success")
	if x.metrics != nil {
		x.metrics.KBPhrases.Set(float64(stats.Phrases))
	}
	info := KBInfo{
		Stats:    stats,
		Version:  x.handle.Version(),
		LoadedAt: x.handle.LoadedAt().UTC(),
	}
	if x.cache != nil {
		if _, err := x.cache.Invalidate(ctx); err != nil {
			x.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	return info, nil
}

// Cache returns the result cache, or nil when caching is disabled.
func (x *Extractor) Cache() *cache.ResultCache {
	return x.cache
}

func (x *Extractor) count(result string) {
	if x.metrics != nil {
		x.metrics.ExtractionsTotal.WithLabelValues(result).Inc()
	}
}

func (x *Extractor) reloaded(status string) {
	if x.metrics != nil {
		x.metrics.KBReloadsTotal.WithLabelValues(status).Inc()
	}
}
