package testing

import (
	"errors"
	"fmt"
	"slices"

	"github.com/amp-labs/amp-hfsm/statemachine"
)

// Matcher errors.
var (
	ErrNoExecutionTrace   = errors.New("no execution trace available")
	ErrNoMatchersPassed   = errors.New("no matchers passed")
	ErrStateNotEntered    = errors.New("state was not entered")
	ErrStateNotExited     = errors.New("state was not exited")
	ErrTransitionNotTaken = errors.New("transition was not taken")
	ErrUnexpectedState    = errors.New("unexpected current state")
	ErrUnexpectedBranch   = errors.New("unexpected current branch")
	ErrNotDenied          = errors.New("transition was not denied")
	ErrEventsMismatch     = errors.New("recorded events mismatch")
)

// Matcher defines an assertion matcher interface.
type Matcher interface {
	Match(automaton *TestAutomaton) (bool, error)
	Description() string
}

// StateWasEntered creates a matcher that checks if a state was entered.
func StateWasEntered(name string) Matcher {
	return &stateEventMatcher{stateName: name, kind: statemachine.EventEntered, err: ErrStateNotEntered}
}

// StateWasExited creates a matcher that checks if a state was exited.
func StateWasExited(name string) Matcher {
	return &stateEventMatcher{stateName: name, kind: statemachine.EventExited, err: ErrStateNotExited}
}

type stateEventMatcher struct {
	stateName string
	kind      statemachine.EventKind
	err       error
}

func (m *stateEventMatcher) Match(automaton *TestAutomaton) (bool, error) {
	for _, entry := range automaton.trace {
		if entry.State == m.stateName && entry.Kind == m.kind {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: '%s'", m.err, m.stateName)
}

func (m *stateEventMatcher) Description() string {
	return fmt.Sprintf("state '%s' should be %s", m.stateName, m.kind)
}

// TransitionWasTaken creates a matcher that checks if a completed transition
// moved the leaf from one state to another.
func TransitionWasTaken(from, to string) Matcher {
	return &transitionTakenMatcher{from: from, to: to}
}

type transitionTakenMatcher struct {
	from string
	to   string
}

func (m *transitionTakenMatcher) Match(automaton *TestAutomaton) (bool, error) {
	for _, entry := range automaton.trace {
		if entry.Kind == statemachine.EventChanged && entry.From == m.from && entry.To == m.to {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: from '%s' to '%s'", ErrTransitionNotTaken, m.from, m.to)
}

func (m *transitionTakenMatcher) Description() string {
	return fmt.Sprintf("transition from '%s' to '%s' should be taken", m.from, m.to)
}

// CurrentStateIs creates a matcher that checks the current leaf.
func CurrentStateIs(name string) Matcher {
	return &currentStateMatcher{stateName: name}
}

type currentStateMatcher struct {
	stateName string
}

func (m *currentStateMatcher) Match(automaton *TestAutomaton) (bool, error) {
	actual := automaton.GetCurrentState().Name()
	if actual != m.stateName {
		return false, fmt.Errorf("%w: expected '%s', got '%s'", ErrUnexpectedState, m.stateName, actual)
	}

	return true, nil
}

func (m *currentStateMatcher) Description() string {
	return fmt.Sprintf("current state should be '%s'", m.stateName)
}

// BranchIs creates a matcher that checks the whole current branch.
func BranchIs(names ...string) Matcher {
	return &branchMatcher{names: names}
}

type branchMatcher struct {
	names []string
}

func (m *branchMatcher) Match(automaton *TestAutomaton) (bool, error) {
	actual := automaton.GetCurrentBranch()
	if !slices.Equal(actual, m.names) {
		return false, fmt.Errorf("%w: expected %v, got %v", ErrUnexpectedBranch, m.names, actual)
	}

	return true, nil
}

func (m *branchMatcher) Description() string {
	return fmt.Sprintf("current branch should be %v", m.names)
}

// LastDenial creates a matcher that checks that the last recorded event is a denial of the given kind.
func LastDenial(kind statemachine.EventKind) Matcher {
	return &deniedMatcher{kind: kind}
}

type deniedMatcher struct {
	kind statemachine.EventKind
}

func (m *deniedMatcher) Match(automaton *TestAutomaton) (bool, error) {
	if len(automaton.trace) == 0 {
		return false, ErrNoExecutionTrace
	}

	last := automaton.trace[len(automaton.trace)-1]
	if last.Kind != m.kind {
		return false, fmt.Errorf("%w: last event is '%s'", ErrNotDenied, last)
	}

	return true, nil
}

func (m *deniedMatcher) Description() string {
	return fmt.Sprintf("last transition should be denied with '%s'", m.kind)
}

// All creates a matcher that requires all sub-matchers to pass.
func All(matchers ...Matcher) Matcher {
	return &allMatcher{matchers: matchers}
}

type allMatcher struct {
	matchers []Matcher
}

func (m *allMatcher) Match(automaton *TestAutomaton) (bool, error) {
	for _, matcher := range m.matchers {
		matched, err := matcher.Match(automaton)
		if !matched || err != nil {
			return false, err
		}
	}

	return true, nil
}

func (m *allMatcher) Description() string {
	return "all matchers should pass"
}

// Any creates a matcher that requires at least one sub-matcher to pass.
func Any(matchers ...Matcher) Matcher {
	return &anyMatcher{matchers: matchers}
}

type anyMatcher struct {
	matchers []Matcher
}

func (m *anyMatcher) Match(automaton *TestAutomaton) (bool, error) {
	for _, matcher := range m.matchers {
		matched, err := matcher.Match(automaton)
		if matched && err == nil {
			return true, nil
		}
	}

	return false, ErrNoMatchersPassed
}

func (m *anyMatcher) Description() string {
	return "at least one matcher should pass"
}
