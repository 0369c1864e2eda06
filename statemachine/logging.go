package statemachine

import (
	"context"
	"log/slog"

	"github.com/amp-labs/amp-hfsm/logger"
)

// Logger provides logging hooks for automaton execution.
type Logger interface {
	TransitionStarted(ctx context.Context, automaton string, event StateEvent)
	TransitionDenied(ctx context.Context, automaton string, event StateEvent)
	StateExited(ctx context.Context, automaton, state string)
	StateEntered(ctx context.Context, automaton, state string)
	TransitionPaused(ctx context.Context, automaton string, event StateEvent)
	TransitionCompleted(ctx context.Context, automaton string, record TransitionRecord)
}

// DefaultLogger implements Logger using slog. Lifecycle details are logged at debug
// level, outcomes at info.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a logger that resolves the slog logger from the context
// through the logger package on every call.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{}
}

// NewSlogLogger creates a logger writing to a fixed slog logger.
func NewSlogLogger(l *slog.Logger) *DefaultLogger {
	return &DefaultLogger{logger: l}
}

func (l *DefaultLogger) get(ctx context.Context, automaton string) *slog.Logger {
	base := l.logger
	if base == nil {
		base = logger.Get(ctx)
	}

	if automaton != "" {
		base = base.With("automaton", automaton)
	}

	if traceID, spanID := extractTraceContext(ctx); traceID != "" {
		base = base.With("trace_id", traceID, "span_id", spanID)
	}

	return base
}

func (l *DefaultLogger) TransitionStarted(ctx context.Context, automaton string, event StateEvent) {
	l.get(ctx, automaton).DebugContext(ctx, "Transition started",
		"transition", event.Transition,
		"from", event.From,
	)
}

func (l *DefaultLogger) TransitionDenied(ctx context.Context, automaton string, event StateEvent) {
	l.get(ctx, automaton).InfoContext(ctx, "Transition denied",
		"transition", event.Transition,
		"from", event.From,
		"to", event.To,
		"reason", event.Type.String(),
	)
}

func (l *DefaultLogger) StateExited(ctx context.Context, automaton, state string) {
	l.get(ctx, automaton).DebugContext(ctx, "State exited", "state", state)
}

func (l *DefaultLogger) StateEntered(ctx context.Context, automaton, state string) {
	l.get(ctx, automaton).DebugContext(ctx, "State entered", "state", state)
}

func (l *DefaultLogger) TransitionPaused(ctx context.Context, automaton string, event StateEvent) {
	l.get(ctx, automaton).DebugContext(ctx, "Transition paused",
		"transition", event.Transition,
		"from", event.From,
		"to", event.To,
	)
}

func (l *DefaultLogger) TransitionCompleted(ctx context.Context, automaton string, record TransitionRecord) {
	l.get(ctx, automaton).InfoContext(ctx, "Transition completed",
		"transition", record.Transition,
		"from", record.From,
		"to", record.To,
		"branch", record.Branch,
		"pauses", record.Pauses,
		"duration_ms", record.Duration.Milliseconds(),
	)
}

// nopLogger is the default: automata are silent unless a Logger is installed.
type nopLogger struct{}

func (nopLogger) TransitionStarted(context.Context, string, StateEvent)         {}
func (nopLogger) TransitionDenied(context.Context, string, StateEvent)          {}
func (nopLogger) StateExited(context.Context, string, string)                   {}
func (nopLogger) StateEntered(context.Context, string, string)                  {}
func (nopLogger) TransitionPaused(context.Context, string, StateEvent)          {}
func (nopLogger) TransitionCompleted(context.Context, string, TransitionRecord) {}

var (
	_ Logger = (*DefaultLogger)(nil)
	_ Logger = nopLogger{}
)
