package statemachine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/amp-labs/amp-hfsm/statemachine"

// startTransitionSpan creates the span covering one transition attempt, pauses included.
// Uses the global tracer initialized by the telemetry package.
// The caller is responsible for ending the span through endTransitionSpan.
//
//nolint:spancheck // Span lifecycle managed by the automaton across Proceed calls
func startTransitionSpan(ctx context.Context, automaton string, event StateEvent) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "statemachine.transition")
	span.SetAttributes(
		attribute.String("automaton", sanitizeAutomaton(automaton)),
		attribute.String("transition", event.Transition),
		attribute.String("from", event.From),
	)

	return ctx, span
}

// recordDispatch adds a span event for a queue entry.
func recordDispatch(span trace.Span, entry queueEntry) {
	if span == nil || !span.IsRecording() {
		return
	}

	target := RootStateName
	if entry.state != nil {
		target = entry.state.Name()
	} else if entry.event.Type != EventChanged {
		target = "automaton"
	}

	span.AddEvent(entry.event.Type.String(), trace.WithAttributes(
		attribute.String("state", target),
		attribute.Bool("commit", entry.commit),
	))
}

func recordPause(span trace.Span, pauses int) {
	if span == nil || !span.IsRecording() {
		return
	}

	span.AddEvent("paused", trace.WithAttributes(attribute.Int("pause", pauses)))
}

func endTransitionSpan(span trace.Span, outcome string) {
	if span == nil {
		return
	}

	span.SetAttributes(attribute.String("outcome", outcome))

	switch outcome {
	case OutcomeCompleted:
		span.SetStatus(codes.Ok, outcome)
	case OutcomeDestroyed:
		span.SetStatus(codes.Error, "automaton destroyed during transition")
	default:
		span.SetAttributes(attribute.Bool("denied", true))
	}

	span.End()
}

// extractTraceContext extracts trace ID and span ID from context for logging.
func extractTraceContext(ctx context.Context) (traceID, spanID string) {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()

		return spanCtx.TraceID().String(), spanCtx.SpanID().String()
	}

	return "", ""
}
