package testing

import (
	"testing"

	"github.com/amp-labs/amp-hfsm/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Step is one transition attempt of a scenario.
type Step struct {
	Transition string
	Payload    []any
	WantState  string                 // Expected leaf afterwards, empty skips the check
	WantDenied statemachine.EventKind // Expected denial, empty expects none
}

// TestScenario represents a complete test scenario for a state machine.
type TestScenario struct {
	Name     string
	Config   *statemachine.Config
	Registry *statemachine.Registry
	Steps    []Step
	Matchers []Matcher
}

// RunScenario executes a test scenario and validates results.
func RunScenario(t *testing.T, scenario TestScenario) {
	t.Helper()
	t.Run(scenario.Name, func(t *testing.T) {
		ta := NewTestAutomatonWithRegistry(t, scenario.Config, scenario.Registry)

		for i, step := range scenario.Steps {
			before := len(ta.trace)

			ta.MustFire(step.Transition, step.Payload...)

			denied := denial(ta.trace[before:])
			require.Equal(t, step.WantDenied, denied, "step %d (%s) denial", i, step.Transition)

			if step.WantState != "" {
				require.Equal(t, step.WantState, ta.GetCurrentState().Name(), "step %d (%s) state", i, step.Transition)
			}
		}

		for _, matcher := range scenario.Matchers {
			matched, err := matcher.Match(ta)
			assert.True(t, matched, "%s: %v", matcher.Description(), err)
		}
	})
}

func denial(entries []TraceEntry) statemachine.EventKind {
	for _, entry := range entries {
		switch entry.Kind { //nolint:exhaustive // only denials matter
		case statemachine.EventExitDenied, statemachine.EventEntryDenied, statemachine.EventTransitionDenied:
			return entry.Kind
		}
	}

	return ""
}

// TrafficLightScenario cycles through a flat machine back to its first state.
func TrafficLightScenario() TestScenario {
	return TestScenario{
		Name:   "Traffic Light",
		Config: CommonTestConfigs.TrafficLight(),
		Steps: []Step{
			{Transition: "next", WantState: "yellow"},
			{Transition: "next", WantState: "red"},
			{Transition: "next", WantState: "green"},
			{Transition: "powerOff", WantState: "green", WantDenied: statemachine.EventTransitionDenied},
		},
		Matchers: []Matcher{
			TransitionWasTaken("red", "green"),
			StateWasExited("yellow"),
		},
	}
}

// PowerScenario enters a nested machine and leaves it through a transition of the parent.
func PowerScenario() TestScenario {
	return TestScenario{
		Name:   "Power",
		Config: CommonTestConfigs.Power(),
		Steps: []Step{
			{Transition: "powerOn", WantState: "on/green"},
			{Transition: "next", WantState: "on/orange"},
			{Transition: "powerOff", WantState: "off/standby"},
		},
		Matchers: []Matcher{
			TransitionWasTaken("off/standby", "on/green"),
			TransitionWasTaken("on/orange", "off/standby"),
			All(StateWasExited("on"), StateWasEntered("off")),
			BranchIs("off", "off/standby"),
		},
	}
}

// VendingScenario resolves targets from the payload.
func VendingScenario() TestScenario {
	return TestScenario{
		Name:   "Vending",
		Config: CommonTestConfigs.Vending(),
		Steps: []Step{
			{Transition: "coinInserted", WantState: "collecting"},
			{Transition: "coinInserted", Payload: []any{"collecting"}, WantState: "collecting"},
			{Transition: "coinInserted", Payload: []any{"dispensing"}, WantState: "dispensing"},
			{Transition: "cancel", WantState: "dispensing", WantDenied: statemachine.EventTransitionDenied},
			{Transition: "taken", WantState: "idle"},
		},
		Matchers: []Matcher{
			TransitionWasTaken("collecting", "dispensing"),
			Any(StateWasEntered("nowhere"), StateWasEntered("dispensing")),
		},
	}
}
