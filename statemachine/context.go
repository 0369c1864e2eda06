package statemachine

import (
	"context"
	"time"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// automatonContextKey is the key under which handlers find the automaton that invoked them.
const automatonContextKey contextKey = "statemachine_automaton"

const defaultHistoryLimit = 100

func withAutomaton(ctx context.Context, a *Automaton) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	if existing, ok := ctx.Value(automatonContextKey).(*Automaton); ok && existing == a {
		return ctx
	}

	return context.WithValue(ctx, automatonContextKey, a)
}

// FromContext returns the automaton running the guard, resolver or handler that received ctx.
func FromContext(ctx context.Context) (*Automaton, bool) {
	if ctx == nil {
		return nil, false
	}

	a, ok := ctx.Value(automatonContextKey).(*Automaton)

	return a, ok && a != nil
}

// PauseFromContext pauses the transition running in ctx. It reports whether an automaton was found.
func PauseFromContext(ctx context.Context) bool {
	a, ok := FromContext(ctx)
	if !ok {
		return false
	}

	a.Pause()

	return true
}

// TransitionRecord records one transition attempt in the automaton history.
type TransitionRecord struct {
	Transition string
	From       string
	To         string
	Outcome    string
	Branch     []string
	StartedAt  time.Time
	Duration   time.Duration
	Pauses     int
}

// Completed reports whether the transition reached its target.
func (r TransitionRecord) Completed() bool {
	return r.Outcome == OutcomeCompleted
}

// History is a bounded log of transition records. The oldest records are dropped first.
type History struct {
	limit   int
	records []TransitionRecord
}

// NewHistory creates a history keeping at most limit records.
func NewHistory(limit int) *History {
	if limit < 0 {
		limit = 0
	}

	return &History{limit: limit}
}

// Append adds a record, evicting the oldest one when full.
func (h *History) Append(record TransitionRecord) {
	if h == nil || h.limit == 0 {
		return
	}

	if len(h.records) >= h.limit {
		h.records = append(h.records[:0], h.records[len(h.records)-h.limit+1:]...)
	}

	h.records = append(h.records, record)
}

// Records returns a copy of the stored records, oldest first.
func (h *History) Records() []TransitionRecord {
	if h == nil {
		return nil
	}

	out := make([]TransitionRecord, len(h.records))
	copy(out, h.records)

	return out
}

// Len returns the number of stored records.
func (h *History) Len() int {
	if h == nil {
		return 0
	}

	return len(h.records)
}

// Last returns the most recent record.
func (h *History) Last() (TransitionRecord, bool) {
	if h == nil || len(h.records) == 0 {
		return TransitionRecord{}, false
	}

	return h.records[len(h.records)-1], true
}
