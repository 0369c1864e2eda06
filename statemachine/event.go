package statemachine

import (
	"context"
	"fmt"
)

// EventKind identifies a lifecycle notification emitted by a State or an Automaton.
type EventKind string

const (
	// EventExit is the guard phase evaluated on every state being left.
	EventExit EventKind = "exit"
	// EventEntry is the guard phase evaluated on every state being entered.
	EventEntry EventKind = "entry"
	// EventExited is dispatched once a state (or the automaton) has been left.
	EventExited EventKind = "exited"
	// EventEntered is dispatched once a state (or the automaton) has been entered.
	EventEntered EventKind = "entered"
	// EventExitDenied is dispatched when an exit guard refused the transition.
	EventExitDenied EventKind = "exitDenied"
	// EventEntryDenied is dispatched when an entry guard refused the transition.
	EventEntryDenied EventKind = "entryDenied"
	// EventTransitionDenied is dispatched when no transition or no target could be found.
	EventTransitionDenied EventKind = "transitionDenied"
	// EventChanged is dispatched by the automaton after the new branch has been installed.
	EventChanged EventKind = "changed"
)

// Guard phases.
const (
	PhaseEntry = EventEntry
	PhaseExit  = EventExit
)

var allEventKinds = []EventKind{
	EventExit,
	EventEntry,
	EventExited,
	EventEntered,
	EventExitDenied,
	EventEntryDenied,
	EventTransitionDenied,
	EventChanged,
}

// EventKinds returns every known event kind.
func EventKinds() []EventKind {
	out := make([]EventKind, len(allEventKinds))
	copy(out, allEventKinds)

	return out
}

// ParseEventKind converts a string into an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	for _, kind := range allEventKinds {
		if string(kind) == s {
			return kind, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownEventKind, s)
}

// IsPhase reports whether the kind can be used to register guards.
func (k EventKind) IsPhase() bool {
	return k == PhaseEntry || k == PhaseExit
}

// Denied maps a guard phase to the matching denial event.
func (k EventKind) Denied() EventKind {
	switch k { //nolint:exhaustive // only phases have a denial counterpart
	case PhaseEntry:
		return EventEntryDenied
	case PhaseExit:
		return EventExitDenied
	default:
		return EventTransitionDenied
	}
}

func (k EventKind) String() string {
	return string(k)
}

// StateEvent describes one transition attempt as seen by guards and listeners.
type StateEvent struct {
	Type       EventKind
	From       string
	To         string
	Transition string
}

// WithType returns a copy of the event carrying another kind.
func (e StateEvent) WithType(kind EventKind) StateEvent {
	e.Type = kind

	return e
}

func (e StateEvent) String() string {
	return fmt.Sprintf("%s(%s: %s -> %s)", e.Type, e.Transition, e.From, e.To)
}

// Payload holds the caller supplied values of a transition, in call order.
// The same slice is handed to every guard, resolver and listener of a transition.
type Payload []any

// At returns the i-th payload value.
func (p Payload) At(i int) (any, bool) {
	if i < 0 || i >= len(p) {
		return nil, false
	}

	return p[i], true
}

// GetString returns the i-th payload value as a string.
func (p Payload) GetString(i int) (string, bool) {
	val, ok := p.At(i)
	if !ok {
		return "", false
	}

	str, ok := val.(string)

	return str, ok
}

// GetInt returns the i-th payload value as an int.
func (p Payload) GetInt(i int) (int, bool) {
	val, ok := p.At(i)
	if !ok {
		return 0, false
	}

	n, ok := val.(int)

	return n, ok
}

// GetBool returns the i-th payload value as a bool.
func (p Payload) GetBool(i int) (bool, bool) {
	val, ok := p.At(i)
	if !ok {
		return false, false
	}

	b, ok := val.(bool)

	return b, ok
}

// Handler observes lifecycle events.
type Handler func(ctx context.Context, event StateEvent, payload Payload)

// Guard gates the entry or exit of a state. Guards must be free of side effects:
// they may run even when the transition is later refused.
type Guard func(ctx context.Context, event StateEvent, payload Payload) bool

// Resolver computes a transition target at transition time. An empty result denies the transition.
type Resolver func(ctx context.Context, event StateEvent, payload Payload) string
