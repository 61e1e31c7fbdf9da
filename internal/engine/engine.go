// Package engine runs the relative-time extraction pipeline: normalization,
// tokenization, number-word conversion, keyterm sequence extraction and
// filtering, posting-list resolution, and compound decomposition.
//
// An Engine never returns an error and never panics for string input: text
// without a recognisable expression yields an empty result. It holds no
// per-call state and is safe for concurrent use.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/compound"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/numwords"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/sequence"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/solver"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/textnorm"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/reltime"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/tracing"
)

// DefaultMaxInputBytes bounds the text a single call will process.
const DefaultMaxInputBytes = textnorm.MaxInputBytes

// Analysis is the full outcome of one extraction.
type Analysis struct {
	Times        []reltime.RelativeTime `json:"relative_times"`
	Tokens       int                    `json:"tokens"`
	Simple       int                    `json:"simple"`
	Compound     int                    `json:"compound"`
	UsedCompound bool                   `json:"used_compound"`
	Duration     time.Duration          `json:"duration"`
}

// Engine extracts relative time expressions from text.
type Engine struct {
	source        kb.Source
	solver        *solver.Solver
	maxInputBytes int
	observer      func(Analysis)
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxInputBytes overrides DefaultMaxInputBytes.
func WithMaxInputBytes(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxInputBytes = n
		}
	}
}

// WithSolver replaces the default solver.
func WithSolver(s *solver.Solver) Option {
	return func(e *Engine) { e.solver = s }
}

// WithObserver registers a callback invoked after every extraction.
func WithObserver(fn func(Analysis)) Option {
	return func(e *Engine) { e.observer = fn }
}

// New creates an Engine reading its knowledge base from src on every call,
// so a kb.Handle swap is picked up by the next extraction.
func New(src kb.Source, opts ...Option) *Engine {
	e := &Engine{
		source:        src,
		maxInputBytes: DefaultMaxInputBytes,
		logger:        slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.solver == nil {
		e.solver = solver.New()
	}
	return e
}

// Parse returns the relative time expressions found in text, in order of
// detection.
func (e *Engine) Parse(text string) []reltime.RelativeTime {
	return e.Analyze(context.Background(), text).Times
}

// ParseContext is Parse with tracing spans recorded under the span in ctx.
func (e *Engine) ParseContext(ctx context.Context, text string) []reltime.RelativeTime {
	return e.Analyze(ctx, text).Times
}

// Analyze runs the pipeline and reports how the result was reached.
func (e *Engine) Analyze(ctx context.Context, text string) (a Analysis) {
	start := time.Now()
	a.Times = []reltime.RelativeTime{}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extraction panicked", "panic", r, "input_bytes", len(text))
			a = Analysis{Times: []reltime.RelativeTime{}}
		}
		a.Duration = time.Since(start)
		if e.observer != nil {
			e.observer(a)
		}
	}()

	if len(text) > e.maxInputBytes {
		e.logger.Debug("input too large", "input_bytes", len(text), "max_bytes", e.maxInputBytes)
		return a
	}
	if strings.TrimSpace(text) == "" {
		return a
	}
	k := e.source.Snapshot()
	if k == nil {
		e.logger.Warn("no knowledge base loaded")
		return a
	}

	_, span := tracing.StartChildSpan(ctx, "normalize")
	normalized := textnorm.ExpandCompactTokens(textnorm.Normalize(text))
	terms := numwords.Convert(tokenizer.Terms(normalized))
	span.SetAttr("tokens", len(terms))
	span.End()
	a.Tokens = len(terms)

	_, span = tracing.StartChildSpan(ctx, "resolve")
	simple := e.resolve(sequence.Filter(sequence.Extract(terms, k), k), k)
	span.SetAttr("results", len(simple))
	span.End()

	_, span = tracing.StartChildSpan(ctx, "compound")
	compounds := compound.Expand(terms, k, e.solver)
	span.SetAttr("results", len(compounds))
	span.End()

	a.Simple, a.Compound = len(simple), len(compounds)
	slots := simple
	if len(compounds) > len(simple) {
		slots = append(subtract(simple, compounds), compounds...)
		a.UsedCompound = true
	}
	for _, slot := range slots {
		a.Times = append(a.Times, slot.RelativeTime())
	}
	return a
}

func (e *Engine) resolve(seqs [][]string, k *kb.KnowledgeBase) []kb.Slot {
	var slots []kb.Slot
	for _, seq := range seqs {
		if slot, outcome := e.solver.Find(seq, k); outcome == solver.Resolved {
			slots = append(slots, slot)
		}
	}
	return slots
}

// subtract returns the slots of a that are not accounted for in b, counting
// duplicates, in their original order.
func subtract(a, b []kb.Slot) []kb.Slot {
	pending := make(map[kb.Slot]int, len(b))
	for _, s := range b {
		pending[s]++
	}
	out := make([]kb.Slot, 0, len(a))
	for _, s := range a {
		if pending[s] > 0 {
			pending[s]--
			continue
		}
		out = append(out, s)
	}
	return out
}
