package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer creates a test tracer with an in-memory exporter.
func setupTestTracer(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
	)

	oldProvider := otel.GetTracerProvider()

	otel.SetTracerProvider(tp)

	cleanup := func() {
		otel.SetTracerProvider(oldProvider)
	}

	return exporter, cleanup
}

func spanAttr(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}

	return attribute.Value{}, false
}

func spanEventNames(span tracetest.SpanStub) []string {
	names := make([]string, 0, len(span.Events))
	for _, event := range span.Events {
		names = append(names, event.Name)
	}

	return names
}

// TestTransitionSpans verifies one span per transition attempt, pauses included.
// Subtests share the exporter and reset it, so they run sequentially.
// Note: Cannot use t.Parallel() because setupTestTracer modifies global OTEL tracer provider.
//
//nolint:paralleltest // Test modifies global OTEL tracer provider
//nolint:tparallel // Subtests share exporter, must run sequentially
func TestTransitionSpans(t *testing.T) {
	exporter, cleanup := setupTestTracer(t)
	t.Cleanup(cleanup)

	ctx := context.Background()

	t.Run("completed", func(t *testing.T) {
		exporter.Reset()

		a := newIgnition(t, WithName("otel"))
		require.NoError(t, a.DoTransition(ctx, "ignite"))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		span := spans[0]
		assert.Equal(t, "statemachine.transition", span.Name)
		assert.Equal(t, codes.Ok, span.Status.Code)

		outcome, ok := spanAttr(span, "outcome")
		require.True(t, ok)
		assert.Equal(t, OutcomeCompleted, outcome.AsString())

		from, ok := spanAttr(span, "from")
		require.True(t, ok)
		assert.Equal(t, "off", from.AsString())

		assert.Equal(t, []string{"exited", "exited", "entered", "entered", "changed"}, spanEventNames(span))
	})

	t.Run("paused", func(t *testing.T) {
		exporter.Reset()

		a := newIgnition(t)
		a.GetState("on").AddListener(EventEntered, pauseHandler)

		require.NoError(t, a.DoTransition(ctx, "ignite"))
		assert.Empty(t, exporter.GetSpans(), "span stays open while paused")

		require.NoError(t, a.Proceed(ctx))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Contains(t, spanEventNames(spans[0]), "paused")
	})

	t.Run("denied", func(t *testing.T) {
		exporter.Reset()

		a := newIgnition(t)
		a.GetState("off").AddGuard(PhaseExit, neverGuard)

		require.NoError(t, a.DoTransition(ctx, "ignite"))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		outcome, ok := spanAttr(spans[0], "outcome")
		require.True(t, ok)
		assert.Equal(t, OutcomeExitDenied, outcome.AsString())

		denied, ok := spanAttr(spans[0], "denied")
		require.True(t, ok)
		assert.True(t, denied.AsBool())
	})

	t.Run("destroyed while paused", func(t *testing.T) {
		exporter.Reset()

		a := newIgnition(t)
		a.GetState("on").AddListener(EventEntered, pauseHandler)

		require.NoError(t, a.DoTransition(ctx, "ignite"))
		a.Destroy()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
	})

	t.Run("handlers see the span", func(t *testing.T) {
		exporter.Reset()

		a := newIgnition(t)

		var traceID string

		a.AddListener(EventChanged, func(ctx context.Context, _ StateEvent, _ Payload) {
			traceID, _ = extractTraceContext(ctx)
		})

		require.NoError(t, a.DoTransition(ctx, "ignite"))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, spans[0].SpanContext.TraceID().String(), traceID)
	})
}

func TestExtractTraceContextWithoutSpan(t *testing.T) {
	t.Parallel()

	traceID, spanID := extractTraceContext(context.Background())
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)
}
