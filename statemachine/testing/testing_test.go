//nolint:tparallel,paralleltest,testifylint // Test file
package testing

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/amp-labs/amp-hfsm/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIgnition(t *testing.T) *statemachine.Automaton {
	t.Helper()

	a := statemachine.New(statemachine.WithName("ignition"))
	t.Cleanup(a.Destroy)

	_, err := a.CreateState("off", statemachine.Initial(), statemachine.On("ignite", "on"))
	require.NoError(t, err)

	_, err = a.CreateState("on", statemachine.On("shutdown", "off"))
	require.NoError(t, err)

	return a
}

func TestNewTestAutomaton(t *testing.T) {
	t.Parallel()

	ta := NewTestAutomaton(t, CommonTestConfigs.TrafficLight())

	assert.NotNil(t, ta.Automaton)
	assert.Empty(t, ta.GetTrace())
	assert.Empty(t, ta.GetAssertions())
	ta.AssertCurrentState("green")
}

func TestFireRecordsEvents(t *testing.T) {
	t.Parallel()

	ta := NewTestAutomaton(t, CommonTestConfigs.TrafficLight())
	ta.MustFire("next")

	ta.AssertEvents("green:exited", "yellow:entered", "automaton:changed")
	ta.AssertTransitionTaken("green", "yellow")

	trace := ta.GetTrace()
	require.Len(t, trace, 3)

	changed := trace[2]
	assert.Equal(t, "next", changed.Transition)
	assert.Equal(t, "green", changed.From)
	assert.Equal(t, "yellow", changed.To)
	assert.Equal(t, []string{"yellow"}, changed.Branch)
	assert.Len(t, ta.GetAssertions(), 2)
}

func TestNestedEvents(t *testing.T) {
	t.Parallel()

	ta := NewTestAutomaton(t, CommonTestConfigs.Power())
	ta.AssertBranch("off", "off/standby")

	ta.MustFire("powerOn")

	ta.AssertEvents(
		"off/standby:exited",
		"off:exited",
		"on:entered",
		"on/green:entered",
		"automaton:changed",
	)
	ta.AssertBranch("on", "on/green")
	ta.AssertStateEntered("on")
	ta.AssertStateExited("off")

	ta.Reset()
	ta.MustFire("next")

	ta.AssertEvents("on/green:exited", "on/orange:entered", "automaton:changed")
}

func TestDenials(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)
	a.GetState("off").AddGuard(statemachine.PhaseExit,
		func(context.Context, statemachine.StateEvent, statemachine.Payload) bool { return false })

	ta := Wrap(t, a)

	ta.MustFire("ignite")
	ta.AssertEvents("automaton:exitDenied")
	ta.AssertDenied(statemachine.EventExitDenied)
	ta.AssertCurrentState("off")

	ta.MustFire("fly")
	ta.AssertDenied(statemachine.EventTransitionDenied)
}

func TestPauseAndProceed(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)
	a.GetState("on").AddListener(statemachine.EventEntered, func(ctx context.Context, _ statemachine.StateEvent, _ statemachine.Payload) {
		statemachine.PauseFromContext(ctx)
	})

	ta := Wrap(t, a)

	ta.MustFire("ignite")
	assert.True(t, ta.IsPaused())
	assert.NotContains(t, ta.Events(), "automaton:changed")

	ta.MustProceed()
	assert.False(t, ta.IsPaused())
	ta.AssertCurrentState("on")
	ta.AssertEvents("off:exited", "on:entered", "automaton:changed")
}

func TestMatchers(t *testing.T) {
	t.Parallel()

	ta := NewTestAutomaton(t, CommonTestConfigs.Power())

	_, err := LastDenial(statemachine.EventTransitionDenied).Match(ta)
	require.ErrorIs(t, err, ErrNoExecutionTrace)

	ta.MustFire("powerOn")

	tests := []struct {
		name    string
		matcher Matcher
		wantErr error
	}{
		{"entered", StateWasEntered("on/green"), nil},
		{"not entered", StateWasEntered("on/red"), ErrStateNotEntered},
		{"exited", StateWasExited("off/standby"), nil},
		{"not exited", StateWasExited("on"), ErrStateNotExited},
		{"transition taken", TransitionWasTaken("off/standby", "on/green"), nil},
		{"transition not taken", TransitionWasTaken("off", "on"), ErrTransitionNotTaken},
		{"current state", CurrentStateIs("on/green"), nil},
		{"wrong current state", CurrentStateIs("on"), ErrUnexpectedState},
		{"branch", BranchIs("on", "on/green"), nil},
		{"wrong branch", BranchIs("on/green"), ErrUnexpectedBranch},
		{"not denied", LastDenial(statemachine.EventExitDenied), ErrNotDenied},
		{"all", All(StateWasEntered("on"), CurrentStateIs("on/green")), nil},
		{"all with failure", All(StateWasEntered("on"), CurrentStateIs("off")), ErrUnexpectedState},
		{"any", Any(CurrentStateIs("off"), CurrentStateIs("on/green")), nil},
		{"any without match", Any(CurrentStateIs("off"), CurrentStateIs("on")), ErrNoMatchersPassed},
	}

	for _, tt := range tests {
		matched, err := tt.matcher.Match(ta)
		if tt.wantErr == nil {
			assert.True(t, matched, tt.name)
			assert.NoError(t, err, tt.name)
		} else {
			assert.False(t, matched, tt.name)
			assert.ErrorIs(t, err, tt.wantErr, tt.name)
		}

		assert.NotEmpty(t, tt.matcher.Description(), tt.name)
	}
}

func TestScenarios(t *testing.T) {
	t.Parallel()

	RunScenario(t, TrafficLightScenario())
	RunScenario(t, PowerScenario())
	RunScenario(t, VendingScenario())
}

func TestCreateTestConfig(t *testing.T) {
	t.Parallel()

	config := CreateTestConfig("chain", "a", "b", "c")
	require.Len(t, config.States, 3)
	require.NoError(t, config.Validate())

	ta := NewTestAutomaton(t, config)
	ta.MustFire("next")
	ta.MustFire("next")
	ta.AssertCurrentState("c")

	ta.MustFire("next")
	ta.AssertDenied(statemachine.EventTransitionDenied)
}

func TestSaveAndLoadTestConfig(t *testing.T) {
	t.Parallel()

	path, err := SaveTestConfig(filepath.Join(t.TempDir(), "testdata"), "power.yaml", CommonTestConfigs.Power())
	require.NoError(t, err)

	saved, err := statemachine.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "power", saved.Name)
	assert.Len(t, saved.States, 6)

	fixture, err := LoadTestConfig("power.yaml")
	require.NoError(t, err)

	ta := NewTestAutomaton(t, fixture)
	ta.MustFire("powerOn")
	ta.AssertBranch("on", "on/green")
}
