// Package testing provides testing utilities for hierarchical state machines.
//
//nolint:err113,varnamelen // Test automaton uses dynamic errors; short names idiomatic
package testing

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/amp-labs/amp-hfsm/statemachine"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

// TestAutomaton wraps Automaton with a recorded trace and testing utilities.
// The trace starts once the automaton is built, so the initial descent is not in it.
type TestAutomaton struct {
	*statemachine.Automaton

	t          *testing.T
	trace      []TraceEntry
	assertions []Assertion
	leaf       string
}

// TraceEntry records a single event dispatched during a transition.
type TraceEntry struct {
	Timestamp  time.Time
	Kind       statemachine.EventKind
	State      string // State the event was dispatched on, empty for automaton level events
	Transition string
	From       string   // Leaf before the transition
	To         string   // Leaf after the transition, set on changed events
	Branch     []string // Branch after the transition, set on changed events
}

func (e TraceEntry) String() string {
	target := e.State
	if target == "" {
		target = "automaton"
	}

	return target + ":" + e.Kind.String()
}

// Assertion represents a test assertion.
type Assertion struct {
	Name   string
	Passed bool
	Error  error
}

// NewTestAutomaton builds an automaton from a config with the built-in registry.
func NewTestAutomaton(t *testing.T, config *statemachine.Config) *TestAutomaton {
	t.Helper()

	return NewTestAutomatonWithRegistry(t, config, nil)
}

// NewTestAutomatonWithRegistry builds an automaton from a config with a custom
// registry. Engine logs go to the test log.
func NewTestAutomatonWithRegistry(
	t *testing.T, config *statemachine.Config, registry *statemachine.Registry, opts ...statemachine.Option,
) *TestAutomaton {
	t.Helper()

	opts = append([]statemachine.Option{
		statemachine.WithLogger(statemachine.NewSlogLogger(slogt.New(t))),
	}, opts...)

	automaton, err := statemachine.NewFromConfig(config, registry, opts...)
	require.NoError(t, err, "failed to create automaton")

	t.Cleanup(automaton.Destroy)

	return Wrap(t, automaton)
}

// Wrap records the events of an existing automaton. Only states present at
// the time of the call are traced.
func Wrap(t *testing.T, automaton *statemachine.Automaton) *TestAutomaton {
	t.Helper()

	ta := &TestAutomaton{
		Automaton: automaton,
		t:         t,
		trace:     make([]TraceEntry, 0),
		leaf:      automaton.GetCurrentState().Name(),
	}

	for _, kind := range []statemachine.EventKind{
		statemachine.EventExitDenied,
		statemachine.EventEntryDenied,
		statemachine.EventTransitionDenied,
		statemachine.EventChanged,
	} {
		automaton.AddListener(kind, ta.record(""))
	}

	var watch func(parent string)

	watch = func(parent string) {
		for _, state := range automaton.Children(parent) {
			state.AddListener(statemachine.EventExited, ta.record(state.Name()))
			state.AddListener(statemachine.EventEntered, ta.record(state.Name()))

			watch(state.Name())
		}
	}

	watch("")

	return ta
}

func (ta *TestAutomaton) record(state string) statemachine.Handler {
	return func(_ context.Context, event statemachine.StateEvent, _ statemachine.Payload) {
		entry := TraceEntry{
			Timestamp:  time.Now(),
			Kind:       event.Type,
			State:      state,
			Transition: event.Transition,
			From:       ta.leaf,
		}

		if event.Type == statemachine.EventChanged {
			entry.Branch = ta.GetCurrentBranch()
			entry.To = ta.GetCurrentState().Name()
			ta.leaf = entry.To
		}

		ta.trace = append(ta.trace, entry)
	}
}

// Fire attempts a transition with the test context.
func (ta *TestAutomaton) Fire(transition string, payload ...any) error {
	ta.t.Helper()

	return ta.DoTransition(ta.t.Context(), transition, payload...)
}

// MustFire attempts a transition and fails the test on error. Denials are not errors.
func (ta *TestAutomaton) MustFire(transition string, payload ...any) {
	ta.t.Helper()

	require.NoError(ta.t, ta.Fire(transition, payload...), "transition '%s'", transition)
}

// MustProceed resumes a paused transition and fails the test on error.
func (ta *TestAutomaton) MustProceed() {
	ta.t.Helper()

	require.NoError(ta.t, ta.Proceed(ta.t.Context()), "proceed")
}

func (ta *TestAutomaton) assert(name string, passed bool, err error) {
	ta.t.Helper()

	assertion := Assertion{Name: name, Passed: passed}
	if !passed {
		assertion.Error = err
	}

	ta.assertions = append(ta.assertions, assertion)
	require.True(ta.t, passed, "%s: %v", name, err)
}

// AssertStateEntered checks that a state was entered since the trace started.
func (ta *TestAutomaton) AssertStateEntered(stateName string) {
	ta.t.Helper()

	ok, err := StateWasEntered(stateName).Match(ta)
	ta.assert(fmt.Sprintf("State '%s' was entered", stateName), ok, err)
}

// AssertStateExited checks that a state was exited since the trace started.
func (ta *TestAutomaton) AssertStateExited(stateName string) {
	ta.t.Helper()

	ok, err := StateWasExited(stateName).Match(ta)
	ta.assert(fmt.Sprintf("State '%s' was exited", stateName), ok, err)
}

// AssertTransitionTaken checks that a completed transition moved the leaf from one state to another.
func (ta *TestAutomaton) AssertTransitionTaken(from, to string) {
	ta.t.Helper()

	ok, err := TransitionWasTaken(from, to).Match(ta)
	ta.assert(fmt.Sprintf("Transition from '%s' to '%s' was taken", from, to), ok, err)
}

// AssertCurrentState checks the current leaf.
func (ta *TestAutomaton) AssertCurrentState(expected string) {
	ta.t.Helper()

	ok, err := CurrentStateIs(expected).Match(ta)
	ta.assert(fmt.Sprintf("Current state is '%s'", expected), ok, err)
}

// AssertBranch checks the whole current branch, top-level state first.
func (ta *TestAutomaton) AssertBranch(expected ...string) {
	ta.t.Helper()

	ok, err := BranchIs(expected...).Match(ta)
	ta.assert(fmt.Sprintf("Current branch is %v", expected), ok, err)
}

// AssertDenied checks that the last recorded event is a denial of the given kind.
func (ta *TestAutomaton) AssertDenied(kind statemachine.EventKind) {
	ta.t.Helper()

	ok, err := LastDenial(kind).Match(ta)
	ta.assert(fmt.Sprintf("Last transition was denied with '%s'", kind), ok, err)
}

// AssertEvents checks the recorded events, formatted as "state:kind" or
// "automaton:kind", against the expected sequence.
func (ta *TestAutomaton) AssertEvents(expected ...string) {
	ta.t.Helper()

	actual := ta.Events()
	passed := slices.Equal(expected, actual)

	ta.assert("Events match", passed, fmt.Errorf("%w: expected %v, got %v", ErrEventsMismatch, expected, actual))
}

// Events returns the recorded events formatted as "state:kind" or "automaton:kind".
func (ta *TestAutomaton) Events() []string {
	events := make([]string, 0, len(ta.trace))
	for _, entry := range ta.trace {
		events = append(events, entry.String())
	}

	return events
}

// GetTrace returns the execution trace for inspection.
func (ta *TestAutomaton) GetTrace() []TraceEntry {
	return ta.trace
}

// GetAssertions returns all assertions made.
func (ta *TestAutomaton) GetAssertions() []Assertion {
	return ta.assertions
}

// Reset clears the trace and the assertions.
func (ta *TestAutomaton) Reset() {
	ta.trace = ta.trace[:0]
	ta.assertions = ta.assertions[:0]
}
