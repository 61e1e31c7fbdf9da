// Package analytics collects extraction events on the extractor side and
// aggregates them on the analytics side. Events travel over Kafka as JSON.
package analytics

import "time"

type EventType string

const (
	EventExtraction EventType = "extraction"
)

// ExtractionEvent describes one served extraction request.
type ExtractionEvent struct {
	Type          EventType `json:"type"`
	Text          string    `json:"text"`
	RelativeTimes int       `json:"relative_times"`
	ExplicitDates int       `json:"explicit_dates"`
	Frames        []string  `json:"frames,omitempty"`
	UsedCompound  bool      `json:"used_compound"`
	CacheHit      bool      `json:"cache_hit"`
	LatencyUs     int64     `json:"latency_us"`
	KBVersion     int64     `json:"kb_version"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
}

// Empty reports whether the request produced no dates of either kind.
func (e ExtractionEvent) Empty() bool {
	return e.RelativeTimes == 0 && e.ExplicitDates == 0
}
