package analytics

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/kafka"
)

const (
	// latencyWindow is how many recent latency samples feed the percentiles.
	latencyWindow = 10000
	// maxTrackedTexts bounds the distinct texts counted for the top lists.
	maxTrackedTexts = 50000
	maxTextLen      = 200
)

// AggregatedStats is the analytics view served over HTTP and snapshotted to
// PostgreSQL.
type AggregatedStats struct {
	TotalExtractions     int64            `json:"total_extractions"`
	EmptyResults         int64            `json:"empty_results"`
	EmptyRate            float64          `json:"empty_rate"`
	CompoundSelected     int64            `json:"compound_selected"`
	CompoundRate         float64          `json:"compound_rate"`
	CacheHits            int64            `json:"cache_hits"`
	CacheMisses          int64            `json:"cache_misses"`
	RelativeTimes        int64            `json:"relative_times"`
	ExplicitDates        int64            `json:"explicit_dates"`
	Frames               map[string]int64 `json:"frames"`
	AvgLatencyUs         float64          `json:"avg_latency_us"`
	P50LatencyUs         int64            `json:"p50_latency_us"`
	P95LatencyUs         int64            `json:"p95_latency_us"`
	P99LatencyUs         int64            `json:"p99_latency_us"`
	TopTexts             []TextCount      `json:"top_texts"`
	TopUnresolved        []TextCount      `json:"top_unresolved"`
	ExtractionsPerMinute float64          `json:"extractions_per_minute"`
	LastKBVersion        int64            `json:"last_kb_version"`
}

type TextCount struct {
	Text  string `json:"text"`
	Count int64  `json:"count"`
}

// Aggregator folds extraction events into running totals.
type Aggregator struct {
	mu         sync.Mutex
	stats      AggregatedStats
	latencies  []int64
	next       int
	texts      map[string]int64
	unresolved map[string]int64
	topN       int
	startTime  time.Time
	now        func() time.Time
	logger     *slog.Logger
}

func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		stats:      AggregatedStats{Frames: make(map[string]int64)},
		latencies:  make([]int64, 0, 1024),
		texts:      make(map[string]int64),
		unresolved: make(map[string]int64),
		topN:       topN,
		startTime:  time.Now(),
		now:        time.Now,
		logger:     slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes Kafka messages into the aggregator. Undecodable
// messages are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ExtractionEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		if event.Type != EventExtraction {
			agg.logger.Debug("ignoring event", "type", event.Type)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Record adds one event.
func (a *Aggregator) Record(event ExtractionEvent) {
	text := canonicalText(event.Text)

	a.mu.Lock()
	defer a.mu.Unlock()
	s := &a.stats
	s.TotalExtractions++
	if event.Empty() {
		s.EmptyResults++
	}
	if event.UsedCompound {
		s.CompoundSelected++
	}
	if event.CacheHit {
		s.CacheHits++
	} else {
		s.CacheMisses++
	}
	s.RelativeTimes += int64(event.RelativeTimes)
	s.ExplicitDates += int64(event.ExplicitDates)
	for _, f := range event.Frames {
		s.Frames[f]++
	}
	if event.KBVersion > s.LastKBVersion {
		s.LastKBVersion = event.KBVersion
	}

	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyUs)
	} else {
		a.latencies[a.next] = event.LatencyUs
		a.next = (a.next + 1) % latencyWindow
	}

	if text == "" {
		return
	}
	countText(a.texts, text)
	if event.RelativeTimes == 0 {
		countText(a.unresolved, text)
	}
}

// Restore seeds the running totals from a persisted snapshot so a restarted
// analytics service does not start from zero. Latencies and top lists are
// not restored.
func (a *Aggregator) Restore(prev AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	frames := make(map[string]int64, len(prev.Frames))
	for k, v := range prev.Frames {
		frames[k] = v
	}
	a.stats = AggregatedStats{
		TotalExtractions: prev.TotalExtractions,
		EmptyResults:     prev.EmptyResults,
		CompoundSelected: prev.CompoundSelected,
		CacheHits:        prev.CacheHits,
		CacheMisses:      prev.CacheMisses,
		RelativeTimes:    prev.RelativeTimes,
		ExplicitDates:    prev.ExplicitDates,
		Frames:           frames,
		LastKBVersion:    prev.LastKBVersion,
	}
}

// Stats returns a consistent copy of the current aggregates.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := a.stats
	stats.Frames = make(map[string]int64, len(a.stats.Frames))
	for k, v := range a.stats.Frames {
		stats.Frames[k] = v
	}
	if stats.TotalExtractions > 0 {
		total := float64(stats.TotalExtractions)
		stats.EmptyRate = float64(stats.EmptyResults) / total
		stats.CompoundRate = float64(stats.CompoundSelected) / total
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	stats.TopTexts = topN(a.texts, a.topN)
	stats.TopUnresolved = topN(a.unresolved, a.topN)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.ExtractionsPerMinute = float64(stats.TotalExtractions) / elapsed
	}
	return stats
}

func canonicalText(text string) string {
	text = strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if len(text) > maxTextLen {
		text = strings.ToValidUTF8(text[:maxTextLen], "")
	}
	return text
}

func countText(counts map[string]int64, text string) {
	if _, ok := counts[text]; !ok && len(counts) >= maxTrackedTexts {
		return
	}
	counts[text]++
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then text, so ties are stable across calls.
func topN(counts map[string]int64, n int) []TextCount {
	result := make([]TextCount, 0, len(counts))
	for text, count := range counts {
		result = append(result, TextCount{Text: text, Count: count})
	}
	slices.SortFunc(result, func(a, b TextCount) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Text, b.Text)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
