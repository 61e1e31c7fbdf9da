// Package timeref is the public entry point for extracting time references
// from English text.
//
//	times := timeref.Parse("the deploy was 3 days ago")
//	// [{Cardinality:3 Frame:day Tense:past}]
//
//	res := timeref.ParseDates("invoices from January 2024 and 2 weeks ago")
//	// res.ExplicitDates: {"January 2024": MONTH_YEAR}
//	// res.RelativeTimes: [{2 week past}]
//
// The package-level functions share one engine built from the embedded
// knowledge base on first use. Use New for an engine over a custom source.
package timeref

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/explicit"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/reltime"
)

// Tag names the shape of an explicit date, such as "FULL_EXPLICIT_DATE".
type Tag = explicit.Tag

// Option configures the engine behind a Parser.
type Option = engine.Option

// Result combines explicit calendar dates and relative expressions found in
// one text.
type Result struct {
	ExplicitDates map[string]Tag         `json:"explicit_dates"`
	RelativeTimes []reltime.RelativeTime `json:"relative_times"`
	HasDates      bool                   `json:"has_dates"`
}

// Parser extracts relative and explicit time references.
type Parser struct {
	engine *engine.Engine
}

// New returns a Parser backed by src.
func New(src kb.Source, opts ...Option) *Parser {
	return &Parser{engine: engine.New(src, opts...)}
}

// Engine exposes the underlying extraction engine.
func (p *Parser) Engine() *engine.Engine {
	return p.engine
}

// Parse returns the relative time expressions in text.
func (p *Parser) Parse(text string) []reltime.RelativeTime {
	return p.engine.Parse(text)
}

// ParseDates returns both explicit dates and relative times in text.
func (p *Parser) ParseDates(ctx context.Context, text string) Result {
	dates := explicit.Extract(text)
	times := p.engine.ParseContext(ctx, text)
	return Result{
		ExplicitDates: dates,
		RelativeTimes: times,
		HasDates:      len(dates) > 0 || len(times) > 0,
	}
}

var defaultParser = sync.OnceValue(func() *Parser {
	k, err := kb.Default()
	if err != nil {
		// The embedded seed is covered by tests; this only fires on a broken build.
		slog.Error("building default knowledge base", "error", err)
		k = kb.NewBuilder().Build()
	}
	return New(k)
})

// Default returns the shared Parser over the embedded knowledge base.
func Default() *Parser {
	return defaultParser()
}

// Parse returns the relative time expressions in text using the default
// Parser.
func Parse(text string) []reltime.RelativeTime {
	return Default().Parse(text)
}

// ParseDates returns explicit dates and relative times in text using the
// default Parser.
func ParseDates(text string) Result {
	return Default().ParseDates(context.Background(), text)
}
