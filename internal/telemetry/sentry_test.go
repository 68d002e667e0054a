package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NoDSN(t *testing.T) {
	shutdown, err := Init(Config{}, nil)
	require.NoError(t, err)
	assert.NotPanics(t, shutdown)
}

func TestStartSpan_ChildSharesTrace(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "search.batch", SpanAttributes{BatchID: "b-1", ItemCount: 3})
	defer parent.End()

	_, child := StartSpan(ctx, "search.item", SpanAttributes{ItemIndex: 2, Mode: "hybrid"})
	defer child.End()

	assert.Len(t, parent.TraceID(), 32)
	assert.Equal(t, parent.TraceID(), child.TraceID())
	assert.Equal(t, "b-1", parent.inner.Tags["batch_id"])
	assert.Equal(t, "2", child.inner.Tags["item_index"])
	assert.Equal(t, "hybrid", child.inner.Tags["search_mode"])
}

func TestSpan_SetError(t *testing.T) {
	_, span := StartSpan(context.Background(), "search.item", SpanAttributes{})
	span.SetError(errors.New("boom"))
	assert.Equal(t, sentry.SpanStatusInternalError, span.inner.Status)
	span.End()
}

func TestSpan_NilInnerIsSafe(t *testing.T) {
	span := &Span{}
	assert.NotPanics(t, func() {
		span.SetTag("k", "v")
		span.SetStatus(sentry.SpanStatusOK)
		span.SetError(errors.New("boom"))
		span.End()
	})
	assert.Empty(t, span.TraceID())
}
