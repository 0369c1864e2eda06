package statemachine

import (
	"context"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventLog records dispatched events as "target:kind" strings.
type eventLog struct {
	events []string
}

func (l *eventLog) handler(target string) Handler {
	return func(_ context.Context, event StateEvent, _ Payload) {
		l.events = append(l.events, target+":"+event.Type.String())
	}
}

// watch records every engine level event plus the node level events of the named states.
func watch(t *testing.T, a *Automaton, states ...string) *eventLog {
	t.Helper()

	log := &eventLog{}

	for _, kind := range []EventKind{
		EventExited, EventEntered, EventChanged,
		EventExitDenied, EventEntryDenied, EventTransitionDenied,
	} {
		a.AddListener(kind, log.handler("automaton"))
	}

	for _, name := range states {
		state := a.GetState(name)
		require.NotNil(t, state, "state %q", name)

		for _, kind := range []EventKind{EventExited, EventEntered, EventExitDenied, EventEntryDenied} {
			state.AddListener(kind, log.handler(name))
		}
	}

	return log
}

// newIgnition builds off --ignite--> on, on --shutdown--> off with off initial.
func newIgnition(t *testing.T, opts ...Option) *Automaton {
	t.Helper()

	a := New(append([]Option{WithLogger(NewSlogLogger(slogt.New(t)))}, opts...)...)

	_, err := a.CreateState("off", Initial(), On("ignite", "on"))
	require.NoError(t, err)

	_, err = a.CreateState("on", On("shutdown", "off"))
	require.NoError(t, err)

	return a
}

func TestIgniteAndShutdown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newIgnition(t, WithName("ignition"))

	require.Equal(t, "off", a.GetCurrentState().Name())

	require.NoError(t, a.DoTransition(ctx, "ignite"))
	assert.Equal(t, "on", a.GetCurrentState().Name())
	assert.Equal(t, []string{"on"}, a.GetCurrentBranch())

	require.NoError(t, a.DoTransition(ctx, "shutdown"))
	assert.Equal(t, "off", a.GetCurrentState().Name())
	assert.False(t, a.IsTransitioning())
}

func TestTransitionEventOrder(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)
	log := watch(t, a, "off", "on")

	require.NoError(t, a.DoTransition(context.Background(), "ignite"))

	assert.Equal(t, []string{
		"off:exited",
		"automaton:exited",
		"on:entered",
		"automaton:entered",
		"automaton:changed",
	}, log.events)
}

func TestUnknownTransitionIsDenied(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)
	log := watch(t, a, "off", "on")

	var denied StateEvent

	a.AddListener(EventTransitionDenied, func(_ context.Context, event StateEvent, _ Payload) {
		denied = event
	})

	require.NoError(t, a.DoTransition(context.Background(), "warp"))

	assert.Equal(t, "off", a.GetCurrentState().Name())
	assert.Equal(t, []string{"automaton:transitionDenied"}, log.events)
	assert.Equal(t, StateEvent{Type: EventTransitionDenied, From: "off", Transition: "warp"}, denied)

	record, ok := a.history.Last()
	require.True(t, ok)
	assert.Equal(t, OutcomeTransitionDenied, record.Outcome)
	assert.False(t, record.Completed())
}

func TestTransitionToMissingTargetIsDenied(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)
	require.NoError(t, a.GetState("off").AddTransition("explode", To("kaboom")))

	log := watch(t, a)

	require.NoError(t, a.DoTransition(context.Background(), "explode"))

	assert.Equal(t, "off", a.GetCurrentState().Name())
	assert.Equal(t, []string{"automaton:transitionDenied"}, log.events)
}

func TestExitGuardVeto(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)
	a.GetState("off").AddGuard(PhaseExit, func(context.Context, StateEvent, Payload) bool { return false })

	log := watch(t, a, "off", "on")

	require.NoError(t, a.DoTransition(context.Background(), "ignite"))

	assert.Equal(t, "off", a.GetCurrentState().Name())
	assert.Equal(t, []string{"off:exitDenied", "automaton:exitDenied"}, log.events)
	assert.False(t, a.IsTransitioning())
}

func TestEntryGuardVeto(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)

	var phase EventKind

	a.GetState("on").AddGuard(PhaseEntry, func(_ context.Context, event StateEvent, _ Payload) bool {
		phase = event.Type

		return false
	})

	log := watch(t, a, "off", "on")

	require.NoError(t, a.DoTransition(context.Background(), "ignite"))

	assert.Equal(t, PhaseEntry, phase)
	assert.Equal(t, "off", a.GetCurrentState().Name())
	assert.Equal(t, []string{"on:entryDenied", "automaton:entryDenied"}, log.events)
}

func TestGuardsAreExhaustive(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)
	calls := 0

	counting := func(allow bool) Guard {
		return func(context.Context, StateEvent, Payload) bool {
			calls++

			return allow
		}
	}

	off := a.GetState("off")
	off.AddGuard(PhaseExit, counting(false))
	off.AddGuard(PhaseExit, counting(true))
	a.GetState("on").AddGuard(PhaseEntry, counting(true))

	require.NoError(t, a.DoTransition(context.Background(), "ignite"))

	// The entry phase is skipped once the exit phase refused.
	assert.Equal(t, 2, calls)
	assert.Equal(t, "off", a.GetCurrentState().Name())
}

func TestGuardsReceivePayload(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)
	a.GetState("on").AddGuard(PhaseEntry, PayloadEquals(0, "key"))

	require.NoError(t, a.DoTransition(context.Background(), "ignite", "wrong"))
	assert.Equal(t, "off", a.GetCurrentState().Name())

	require.NoError(t, a.DoTransition(context.Background(), "ignite", "key"))
	assert.Equal(t, "on", a.GetCurrentState().Name())
}

func TestSelfTransitionFiresOnlyEngineEvents(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)
	require.NoError(t, a.GetState("off").AddTransition("stay", To("off")))

	log := watch(t, a, "off", "on")

	require.NoError(t, a.DoTransition(context.Background(), "stay"))

	assert.Equal(t, []string{"automaton:exited", "automaton:entered", "automaton:changed"}, log.events)
	assert.Equal(t, "off", a.GetCurrentState().Name())
}

func TestHierarchicalTransitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := New()

	for _, step := range []struct {
		name string
		opts []StateOption
	}{
		{"off", []StateOption{Initial(), On("powerOn", "on")}},
		{"off/standby", []StateOption{Initial()}},
		{"on", []StateOption{On("powerOff", "off")}},
		{"on/green", []StateOption{Initial(), On("next", "on/orange")}},
		{"on/orange", []StateOption{On("next", "on/red")}},
		{"on/red", []StateOption{On("next", "on/green")}},
	} {
		_, err := a.CreateState(step.name, step.opts...)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"off", "off/standby"}, a.GetCurrentBranch())

	log := watch(t, a, "off", "off/standby", "on", "on/green")

	require.NoError(t, a.DoTransition(ctx, "powerOn"))
	assert.Equal(t, "on/green", a.GetCurrentState().Name())
	assert.Equal(t, []string{
		"off/standby:exited",
		"off:exited",
		"automaton:exited",
		"on:entered",
		"on/green:entered",
		"automaton:entered",
		"automaton:changed",
	}, log.events)

	// Transitions of ancestors apply to descendants.
	require.NoError(t, a.DoTransition(ctx, "next"))
	assert.Equal(t, []string{"on", "on/orange"}, a.GetCurrentBranch())

	require.NoError(t, a.DoTransition(ctx, "powerOff"))
	assert.Equal(t, []string{"off", "off/standby"}, a.GetCurrentBranch())
}

func TestCommonAncestorIsNotLeft(t *testing.T) {
	t.Parallel()

	a := New()

	_, err := a.CreateState("on", Initial())
	require.NoError(t, err)

	_, err = a.CreateState("on/green", Initial(), On("next", "on/orange"))
	require.NoError(t, err)

	_, err = a.CreateState("on/orange")
	require.NoError(t, err)

	log := watch(t, a, "on", "on/green", "on/orange")

	require.NoError(t, a.DoTransition(context.Background(), "next"))

	assert.NotContains(t, log.events, "on:exited")
	assert.NotContains(t, log.events, "on:entered")
	assert.Equal(t, []string{
		"on/green:exited",
		"automaton:exited",
		"on/orange:entered",
		"automaton:entered",
		"automaton:changed",
	}, log.events)
}

func TestBranchMatchesParentChain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := New()

	_, err := a.CreateState("machine", Initial(), On("reset", "machine"))
	require.NoError(t, err)

	_, err = a.CreateState("machine/idle", Initial(), On("start", "machine/busy/warmup"))
	require.NoError(t, err)

	_, err = a.CreateState("machine/busy")
	require.NoError(t, err)

	_, err = a.CreateState("machine/busy/warmup", On("go", "running"))
	require.NoError(t, err)

	_, err = a.CreateState("running", WithParent("machine/busy"))
	require.NoError(t, err)

	assertChain := func() {
		t.Helper()

		states := a.CurrentBranchStates()
		names := a.GetCurrentBranch()
		require.Len(t, names, len(states))

		for i, state := range states {
			assert.Equal(t, names[i], state.Name())

			if i == 0 {
				assert.Empty(t, state.Parent())
			} else {
				assert.Equal(t, states[i-1].Name(), state.Parent())
			}
		}
	}

	assertChain()

	for _, name := range []string{"start", "go", "reset"} {
		require.NoError(t, a.DoTransition(ctx, name))
		assertChain()
	}

	assert.Equal(t, []string{"machine", "machine/idle"}, a.GetCurrentBranch())
}

func TestRemoveCurrentLeaf(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("top level", func(t *testing.T) {
		t.Parallel()

		a := newIgnition(t)
		require.NoError(t, a.DoTransition(ctx, "ignite"))

		a.RemoveState("on")

		assert.Equal(t, RootStateName, a.GetCurrentState().Name())
		assert.Empty(t, a.GetCurrentBranch())
		assert.False(t, a.HasState("on"))
	})

	t.Run("nested", func(t *testing.T) {
		t.Parallel()

		a := New()

		_, err := a.CreateState("on", Initial())
		require.NoError(t, err)

		_, err = a.CreateState("on/green", Initial())
		require.NoError(t, err)

		_, err = a.CreateState("on/green/blinking", Initial())
		require.NoError(t, err)

		require.Equal(t, "on/green/blinking", a.GetCurrentState().Name())

		a.RemoveState("on/green")

		assert.Equal(t, []string{"on"}, a.GetCurrentBranch())
		assert.False(t, a.HasState("on/green/blinking"))
		assert.Empty(t, a.Children("on"))
	})

	t.Run("absent", func(t *testing.T) {
		t.Parallel()

		a := newIgnition(t)
		a.RemoveState("nowhere")

		assert.Equal(t, []string{"off"}, a.GetCurrentBranch())
	})
}

func TestRemovedInitialChildIsNotEntered(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)

	_, err := a.CreateState("on/green", Initial())
	require.NoError(t, err)

	a.RemoveState("on/green")

	require.NoError(t, a.DoTransition(context.Background(), "ignite"))
	assert.Equal(t, []string{"on"}, a.GetCurrentBranch())
}

func TestPauseAndProceed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	build := func(pause bool) (*Automaton, *eventLog) {
		a := New()

		_, err := a.CreateState("off", Initial(), On("powerOn", "on"))
		require.NoError(t, err)

		_, err = a.CreateState("on")
		require.NoError(t, err)

		_, err = a.CreateState("on/green", Initial())
		require.NoError(t, err)

		if pause {
			a.GetState("on").AddListener(EventEntered, Once(func(ctx context.Context, _ StateEvent, _ Payload) {
				assert.True(t, PauseFromContext(ctx))
			}))
		}

		return a, watch(t, a, "off", "on", "on/green")
	}

	straight, straightLog := build(false)
	require.NoError(t, straight.DoTransition(ctx, "powerOn"))

	paused, pausedLog := build(true)
	require.NoError(t, paused.DoTransition(ctx, "powerOn"))

	assert.True(t, paused.IsPaused())
	assert.True(t, paused.IsTransitioning())
	assert.Equal(t, []string{"off"}, paused.GetCurrentBranch(), "branch is only committed at the end")
	assert.Equal(t, []string{"off:exited", "automaton:exited", "on:entered"}, pausedLog.events)

	err := paused.DoTransition(ctx, "powerOn")
	require.ErrorIs(t, err, ErrTransitionInProgress)

	require.NoError(t, paused.Proceed(ctx))

	assert.False(t, paused.IsTransitioning())
	assert.Equal(t, straightLog.events, pausedLog.events)
	assert.Equal(t, straight.GetCurrentBranch(), paused.GetCurrentBranch())

	record, ok := paused.history.Last()
	require.True(t, ok)
	assert.Equal(t, 1, record.Pauses)
	assert.True(t, record.Completed())
}

func TestPauseRepeatedly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newIgnition(t)
	log := watch(t, a, "off", "on")

	pauser := func(ctx context.Context, _ StateEvent, _ Payload) { PauseFromContext(ctx) }
	a.AddListener(EventExited, pauser)
	a.AddListener(EventEntered, pauser)

	require.NoError(t, a.DoTransition(ctx, "ignite"))

	steps := 0
	for a.IsPaused() {
		steps++
		require.NoError(t, a.Proceed(ctx))
	}

	assert.Equal(t, 2, steps)
	assert.Equal(t, "on", a.GetCurrentState().Name())
	assert.Equal(t, []string{
		"off:exited",
		"automaton:exited",
		"on:entered",
		"automaton:entered",
		"automaton:changed",
	}, log.events)
}

func TestPauseWhile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newIgnition(t)

	var resume func()

	a.GetState("on").AddListener(EventEntered, PauseWhile(
		func(_ context.Context, _ StateEvent, _ Payload, next func()) {
			resume = next
		}))

	require.NoError(t, a.DoTransition(ctx, "ignite"))
	require.True(t, a.IsPaused())
	require.NotNil(t, resume)

	resume()

	assert.False(t, a.IsTransitioning())
	assert.Equal(t, "on", a.GetCurrentState().Name())
}

func TestPauseAndProceedOutsideTransition(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)

	a.Pause()
	assert.False(t, a.IsPaused())

	require.NoError(t, a.Proceed(context.Background()))
	assert.False(t, PauseFromContext(context.Background()))
}

func TestChangedSeesNewBranchAndRejectsReentry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newIgnition(t)

	var (
		branch []string
		reentry error
	)

	a.AddListener(EventChanged, func(ctx context.Context, _ StateEvent, _ Payload) {
		branch = a.GetCurrentBranch()
		reentry = a.DoTransition(ctx, "shutdown")
	})

	require.NoError(t, a.DoTransition(ctx, "ignite"))

	assert.Equal(t, []string{"on"}, branch)
	require.ErrorIs(t, reentry, ErrTransitionInProgress)

	var transitionErr *TransitionError
	require.ErrorAs(t, reentry, &transitionErr)
	assert.Equal(t, "shutdown", transitionErr.Transition)
	assert.Equal(t, "on", a.GetCurrentState().Name())
}

func TestResolverTargets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := New()

	var resolverEvent StateEvent

	_, err := a.CreateState("idle", Initial(), WithTransition("choose",
		Resolve(func(_ context.Context, event StateEvent, payload Payload) string {
			resolverEvent = event
			name, _ := payload.GetString(0)

			return name
		})))
	require.NoError(t, err)

	_, err = a.CreateState("left", On("back", "idle"))
	require.NoError(t, err)

	_, err = a.CreateState("right", On("back", "idle"))
	require.NoError(t, err)

	require.NoError(t, a.DoTransition(ctx, "choose", "right"))
	assert.Equal(t, "right", a.GetCurrentState().Name())
	assert.Equal(t, StateEvent{From: "idle", Transition: "choose"}, resolverEvent)

	require.NoError(t, a.DoTransition(ctx, "back"))

	log := watch(t, a)

	require.NoError(t, a.DoTransition(ctx, "choose"))
	assert.Equal(t, "idle", a.GetCurrentState().Name())
	assert.Equal(t, []string{"automaton:transitionDenied"}, log.events)
}

func TestVendingMachine(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := New(WithName("vending"))
	credit := 0

	_, err := a.CreateState("idle", Initial(), On("coinInserted", "collectingMoney"))
	require.NoError(t, err)

	_, err = a.CreateState("collectingMoney", WithTransition("coinInserted",
		Resolve(func(_ context.Context, _ StateEvent, payload Payload) string {
			coin, _ := payload.GetInt(0)
			if credit+coin >= 100 {
				return "dispensing"
			}

			return "collectingMoney"
		})))
	require.NoError(t, err)

	_, err = a.CreateState("dispensing", On("taken", "idle"))
	require.NoError(t, err)

	a.GetState("collectingMoney").AddListener(EventEntered, func(_ context.Context, _ StateEvent, payload Payload) {
		coin, _ := payload.GetInt(0)
		credit += coin
	})

	a.AddListener(EventChanged, func(_ context.Context, event StateEvent, payload Payload) {
		if event.Transition != "coinInserted" || event.To != "collectingMoney" || event.From != "collectingMoney" {
			return
		}

		coin, _ := payload.GetInt(0)
		credit += coin
	})

	require.NoError(t, a.DoTransition(ctx, "coinInserted", 50))
	assert.Equal(t, "collectingMoney", a.GetCurrentState().Name())

	require.NoError(t, a.DoTransition(ctx, "coinInserted", 20))
	assert.Equal(t, "collectingMoney", a.GetCurrentState().Name())
	assert.Equal(t, 70, credit)

	require.NoError(t, a.DoTransition(ctx, "coinInserted", 50))
	assert.Equal(t, "dispensing", a.GetCurrentState().Name())

	require.NoError(t, a.DoTransition(ctx, "taken"))
	assert.Equal(t, "idle", a.GetCurrentState().Name())
}

func TestPayloadIsForwarded(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)

	var got []Payload

	record := func(_ context.Context, _ StateEvent, payload Payload) {
		got = append(got, payload)
	}

	a.GetState("off").AddListener(EventExited, record)
	a.GetState("on").AddListener(EventEntered, record)
	a.AddListener(EventChanged, record)

	require.NoError(t, a.DoTransition(context.Background(), "ignite", "key", 42, true))

	require.Len(t, got, 3)

	for _, payload := range got {
		assert.Equal(t, Payload{"key", 42, true}, payload)
	}
}

func TestAutomatonListeners(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)
	calls := 0

	id := a.AddListener(EventChanged, func(context.Context, StateEvent, Payload) { calls++ })
	require.True(t, a.HasListener(EventChanged, id))
	assert.False(t, a.HasListener(EventEntered, id))

	require.NoError(t, a.DoTransition(context.Background(), "ignite"))
	assert.Equal(t, 1, calls)

	a.RemoveListener(EventChanged, id)
	assert.False(t, a.HasListener(EventChanged, id))

	require.NoError(t, a.DoTransition(context.Background(), "shutdown"))
	assert.Equal(t, 1, calls)

	assert.True(t, a.AddListener(EventChanged, nil).IsZero())
}

func TestAddStateExtendsBranch(t *testing.T) {
	t.Parallel()

	a := New()

	_, err := a.CreateState("a", Initial())
	require.NoError(t, err)

	// Not under the tip of the branch.
	_, err = a.CreateState("b", Initial())
	require.NoError(t, err)

	_, err = a.CreateState("a/x", Initial())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "a/x"}, a.GetCurrentBranch())
	assert.True(t, a.IsInCurrentBranch("a/x"))
	assert.False(t, a.IsInCurrentBranch("b"))
	assert.False(t, a.IsInCurrentBranch(RootStateName))
}

func TestAddStateErrors(t *testing.T) {
	t.Parallel()

	a := New()

	require.ErrorIs(t, a.AddState(nil), ErrStateRequired)

	_, err := a.CreateState("")
	require.ErrorIs(t, err, ErrStateNameRequired)

	_, err = a.CreateState("orphan", WithParent("missing"))
	require.ErrorIs(t, err, ErrParentNotFound)

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "orphan", stateErr.State)

	destroyed, err := NewState("gone")
	require.NoError(t, err)
	destroyed.Destroy()
	require.ErrorIs(t, a.AddState(destroyed), ErrStateDestroyed)

	first, err := a.CreateState("dup", On("x", "dup"))
	require.NoError(t, err)

	second, err := a.CreateState("dup")
	require.NoError(t, err)
	assert.Same(t, first, second, "re-adding a name keeps the original state")
	assert.True(t, a.GetState("dup").HasTransition("x"))

	_, err = a.CreateState(RootStateName)
	require.NoError(t, err)
	assert.Same(t, a.GetRootState(), a.GetState(RootStateName))
}

func TestChildrenKeepDeclarationOrder(t *testing.T) {
	t.Parallel()

	a := New()

	for _, name := range []string{"b", "a", "c", "a/2", "a/1"} {
		_, err := a.CreateState(name)
		require.NoError(t, err)
	}

	names := func(states []*State) []string {
		out := make([]string, 0, len(states))
		for _, s := range states {
			out = append(out, s.Name())
		}

		return out
	}

	assert.Equal(t, []string{"b", "a", "c"}, names(a.Children("")))
	assert.Equal(t, []string{"b", "a", "c"}, names(a.Children(RootStateName)))
	assert.Equal(t, []string{"a/2", "a/1"}, names(a.Children("a")))
	assert.Nil(t, a.Children("missing"))
}

func TestDestroyAutomaton(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newIgnition(t)
	on := a.GetState("on")

	a.Destroy()
	a.Destroy()

	require.ErrorIs(t, a.DoTransition(ctx, "ignite"), ErrAutomatonDestroyed)
	require.ErrorIs(t, a.Proceed(ctx), ErrAutomatonDestroyed)

	_, err := a.CreateState("new")
	require.ErrorIs(t, err, ErrAutomatonDestroyed)

	require.ErrorIs(t, a.AddState(&State{name: "x"}), ErrAutomatonDestroyed)

	assert.Nil(t, a.GetState("off"))
	assert.Nil(t, a.GetRootState())
	assert.Nil(t, a.GetCurrentState())
	assert.Empty(t, a.GetCurrentBranch())
	assert.Nil(t, a.Children(""))
	assert.True(t, on.IsDestroyed())
	assert.True(t, a.AddListener(EventChanged, func(context.Context, StateEvent, Payload) {}).IsZero())
}

func TestDestroyDuringPause(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newIgnition(t)

	a.GetState("on").AddListener(EventEntered, pauseHandler)

	require.NoError(t, a.DoTransition(ctx, "ignite"))
	require.True(t, a.IsPaused())

	a.Destroy()

	assert.False(t, a.IsTransitioning())
	require.ErrorIs(t, a.Proceed(ctx), ErrAutomatonDestroyed)
}

func TestRemoveTargetWhilePaused(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := New()

	_, err := a.CreateState("off", Initial(), On("powerOn", "on"))
	require.NoError(t, err)

	_, err = a.CreateState("on")
	require.NoError(t, err)

	_, err = a.CreateState("on/green", Initial())
	require.NoError(t, err)

	a.GetState("on").AddListener(EventEntered, pauseHandler)

	require.NoError(t, a.DoTransition(ctx, "powerOn"))
	require.True(t, a.IsPaused())

	a.RemoveState("on/green")
	require.NoError(t, a.Proceed(ctx))

	assert.Equal(t, []string{"on"}, a.GetCurrentBranch())
}

func TestHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newIgnition(t, WithHistoryLimit(2))

	require.NoError(t, a.DoTransition(ctx, "ignite"))
	require.NoError(t, a.DoTransition(ctx, "warp"))
	require.NoError(t, a.DoTransition(ctx, "shutdown"))

	records := a.History()
	require.Len(t, records, 2)

	assert.Equal(t, "warp", records[0].Transition)
	assert.Equal(t, OutcomeTransitionDenied, records[0].Outcome)
	assert.Equal(t, []string{"on"}, records[0].Branch)

	assert.Equal(t, "shutdown", records[1].Transition)
	assert.Equal(t, "on", records[1].From)
	assert.Equal(t, "off", records[1].To)
	assert.Equal(t, []string{"off"}, records[1].Branch)
	assert.True(t, records[1].Completed())

	records[0].Transition = "mutated"
	assert.Equal(t, "warp", a.History()[0].Transition)

	silent := newIgnition(t, WithHistoryLimit(0))
	require.NoError(t, silent.DoTransition(ctx, "ignite"))
	assert.Empty(t, silent.History())
}

func TestEngineStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ready", engineReady.String())
	assert.Equal(t, "guarding", engineGuarding.String())
	assert.Equal(t, "transitioning", engineTransitioning.String())
	assert.Equal(t, "paused", enginePaused.String())
	assert.Equal(t, "unknown", engineState(42).String())
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)

	var seen *Automaton

	a.AddListener(EventChanged, func(ctx context.Context, _ StateEvent, _ Payload) {
		seen, _ = FromContext(ctx)
	})

	require.NoError(t, a.DoTransition(context.Background(), "ignite"))
	assert.Same(t, a, seen)

	_, ok := FromContext(context.Background())
	assert.False(t, ok)
}

func TestAddStateDuringTransitionKeepsBranch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newIgnition(t)
	a.GetState("on").AddListener(EventEntered, pauseHandler)

	require.NoError(t, a.DoTransition(ctx, "ignite"))
	require.True(t, a.IsPaused())

	_, err := a.CreateState("off/x", Initial())
	require.NoError(t, err)
	assert.Equal(t, []string{"off"}, a.GetCurrentBranch())

	require.NoError(t, a.Proceed(ctx))
	assert.Equal(t, []string{"on"}, a.GetCurrentBranch())
	assert.NotNil(t, a.GetState("off/x"))

	// Outside of a transition the branch grows right away.
	_, err = a.CreateState("on/y", Initial())
	require.NoError(t, err)
	assert.Equal(t, []string{"on", "on/y"}, a.GetCurrentBranch())
}

func TestPayloadIsNotCopied(t *testing.T) {
	t.Parallel()

	a := newIgnition(t)

	a.GetState("off").AddGuard(PhaseExit, func(_ context.Context, _ StateEvent, payload Payload) bool {
		payload[0] = "stamped"

		return true
	})

	var seen Payload

	a.AddListener(EventChanged, func(_ context.Context, _ StateEvent, payload Payload) {
		seen = payload
	})

	p := []any{"original", 7}

	require.NoError(t, a.DoTransition(context.Background(), "ignite", p...))

	require.Len(t, seen, 2)
	assert.Equal(t, "stamped", seen[0])
	assert.Equal(t, "stamped", p[0])
	assert.Same(t, &p[0], &seen[0])
}

type callerKey struct{}

// pauseRecorder keeps the context of every TransitionPaused call.
type pauseRecorder struct {
	nopLogger

	contexts []context.Context
}

func (r *pauseRecorder) TransitionPaused(ctx context.Context, _ string, _ StateEvent) {
	r.contexts = append(r.contexts, ctx)
}

func TestPauseLogsWithTransitionContext(t *testing.T) {
	t.Parallel()

	recorder := &pauseRecorder{}
	a := newIgnition(t, WithLogger(recorder))
	a.GetState("on").AddListener(EventEntered, pauseHandler)

	ctx := context.WithValue(context.Background(), callerKey{}, "ignition-key")

	require.NoError(t, a.DoTransition(ctx, "ignite"))
	require.Len(t, recorder.contexts, 1)

	logged := recorder.contexts[0]
	assert.Equal(t, "ignition-key", logged.Value(callerKey{}))

	owner, ok := FromContext(logged)
	require.True(t, ok)
	assert.Same(t, a, owner)

	require.NoError(t, a.Proceed(context.Background()))
	assert.Equal(t, []string{"on"}, a.GetCurrentBranch())
}
