package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansAttachToRoot(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "extract", "trace-1")
	ctx2, child := StartChildSpan(ctx, "tokenize")
	require.NotNil(t, child)
	child.SetAttr("tokens", 4)
	child.End()

	_, grandchild := StartChildSpan(ctx2, "inner")
	grandchild.End()
	root.End()

	require.Len(t, root.Children, 1)
	assert.Equal(t, "trace-1", child.TraceID)
	assert.Equal(t, 4, child.Attrs["tokens"])
	assert.Len(t, child.Children, 1)
	assert.Same(t, root, SpanFromContext(ctx))
}

func TestNoParentIsNoop(t *testing.T) {
	ctx := context.Background()
	got, span := StartChildSpan(ctx, "orphan")
	assert.Nil(t, span)
	assert.Equal(t, ctx, got)
	// Methods on a nil span must not panic.
	span.SetAttr("k", "v")
	span.End()
}

func TestTracerSampling(t *testing.T) {
	_, span := NewTracer(false, 1).StartSpan(context.Background(), "x", "id")
	assert.Nil(t, span)

	_, span = NewTracer(true, 0).StartSpan(context.Background(), "x", "id")
	assert.Nil(t, span)

	tracer := NewTracer(true, 1)
	ctx, span := tracer.StartSpan(context.Background(), "x", "id")
	require.NotNil(t, span)
	_, child := StartChildSpan(ctx, "y")
	child.End()
	tracer.Finish(span)

	var nilTracer *Tracer
	_, span = nilTracer.StartSpan(context.Background(), "x", "id")
	assert.Nil(t, span)
	nilTracer.Finish(nil)
}
