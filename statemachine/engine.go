package statemachine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// engineState is the internal protocol state of an Automaton.
type engineState int

const (
	engineReady engineState = iota
	engineGuarding
	engineTransitioning
	enginePaused
)

func (s engineState) String() string {
	switch s {
	case engineReady:
		return "ready"
	case engineGuarding:
		return "guarding"
	case engineTransitioning:
		return "transitioning"
	case enginePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Metric and history outcome constants.
const (
	OutcomeCompleted        = "completed"
	OutcomeTransitionDenied = "transition_denied"
	OutcomeExitDenied       = "exit_denied"
	OutcomeEntryDenied      = "entry_denied"
	OutcomeRejected         = "rejected"
	OutcomeDestroyed        = "destroyed"
)

func outcomeFor(kind EventKind) string {
	switch kind { //nolint:exhaustive // only denials map to outcomes
	case EventExitDenied:
		return OutcomeExitDenied
	case EventEntryDenied:
		return OutcomeEntryDenied
	default:
		return OutcomeTransitionDenied
	}
}

// pendingTransition carries the bookkeeping of the transition currently in the queue.
type pendingTransition struct {
	event     StateEvent
	payload   Payload
	newBranch []*node
	startedAt time.Time
	span      trace.Span
	pauses    int
	// ctx is the context of the DoTransition or Proceed call draining the queue.
	ctx context.Context //nolint:containedctx
}

// Automaton drives transitions over a tree of states and tracks the current branch.
//
// An Automaton is not safe for concurrent use. Confine it to one goroutine or host
// it in a Mailbox.
type Automaton struct {
	name          string
	tree          *tree
	currentBranch []*node
	internal      engineState
	queue         actionQueue
	pending       *pendingTransition
	listeners     *notifier[Handler]
	logger        Logger
	history       *History
	destroyed     bool
}

// Option configures an Automaton.
type Option func(*Automaton)

// WithName names the automaton in logs, metrics and spans.
func WithName(name string) Option {
	return func(a *Automaton) {
		a.name = name
	}
}

// WithLogger installs logging hooks.
func WithLogger(logger Logger) Option {
	return func(a *Automaton) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithHistoryLimit bounds the number of retained transition records. Zero disables history.
func WithHistoryLimit(limit int) Option {
	return func(a *Automaton) {
		a.history = NewHistory(limit)
	}
}

// New creates an automaton whose tree contains only the root state.
func New(opts ...Option) *Automaton {
	a := &Automaton{
		tree:      newTree(),
		listeners: newNotifier[Handler](),
		logger:    nopLogger{},
		history:   NewHistory(defaultHistoryLimit),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	a.currentBranch = []*node{a.tree.root}
	setBranchDepth(a.name, 0)

	return a
}

// Name returns the automaton name.
func (a *Automaton) Name() string {
	return a.name
}

// CreateState builds a state and adds it to the tree.
func (a *Automaton) CreateState(name string, opts ...StateOption) (*State, error) {
	if a.destroyed {
		return nil, ErrAutomatonDestroyed
	}

	state, err := NewState(name, opts...)
	if err != nil {
		return nil, err
	}

	if err := a.AddState(state); err != nil {
		return nil, err
	}

	return a.GetState(name), nil
}

// AddState inserts a state below its parent. States whose name is already taken are ignored.
// An initial state added under the tip of the current branch extends the branch,
// unless a transition is running: the branch only changes when it commits.
func (a *Automaton) AddState(state *State) error {
	if a.destroyed {
		return ErrAutomatonDestroyed
	}

	if state == nil {
		return ErrStateRequired
	}

	if state.IsDestroyed() {
		return WrapStateError(state.Name(), ErrStateDestroyed)
	}

	n, err := a.tree.insert(state)
	if err != nil || n == nil {
		return err
	}

	if a.internal == engineReady && state.IsInitial() && n.parent == a.leaf() {
		a.currentBranch = append(a.currentBranch, n)
		setBranchDepth(a.name, len(a.currentBranch)-1)
	}

	return nil
}

// RemoveState destroys the named state and its subtree. When the state is part of
// the current branch the branch is cut back to the state's parent.
func (a *Automaton) RemoveState(name string) {
	if a.destroyed {
		return
	}

	removed := a.tree.remove(name)
	if removed == nil {
		return
	}

	for i, n := range a.currentBranch {
		if n == removed {
			a.currentBranch = a.currentBranch[:i]
			setBranchDepth(a.name, len(a.currentBranch)-1)

			break
		}
	}
}

// GetState returns the named state or nil.
func (a *Automaton) GetState(name string) *State {
	if a.destroyed {
		return nil
	}

	if name == RootStateName {
		return a.tree.root.state
	}

	n := a.tree.index[name]
	if n == nil {
		return nil
	}

	return n.state
}

// HasState reports whether the tree contains the named state.
func (a *Automaton) HasState(name string) bool {
	return a.GetState(name) != nil
}

// GetRootState returns the synthetic root state.
func (a *Automaton) GetRootState() *State {
	if a.destroyed {
		return nil
	}

	return a.tree.root.state
}

// GetCurrentState returns the deepest state of the current branch, the root when the branch is empty.
func (a *Automaton) GetCurrentState() *State {
	leaf := a.leaf()
	if leaf == nil {
		return nil
	}

	return leaf.state
}

// GetCurrentBranch returns the names of the current branch from the top down, root excluded.
func (a *Automaton) GetCurrentBranch() []string {
	if len(a.currentBranch) <= 1 {
		return []string{}
	}

	return nodeNames(a.currentBranch[1:])
}

// CurrentBranchStates returns the states of the current branch from the top down, root excluded.
func (a *Automaton) CurrentBranchStates() []*State {
	out := make([]*State, 0, len(a.currentBranch))

	for i, n := range a.currentBranch {
		if i == 0 {
			continue
		}

		out = append(out, n.state)
	}

	return out
}

// IsInCurrentBranch reports whether the named state is active.
func (a *Automaton) IsInCurrentBranch(name string) bool {
	for i, n := range a.currentBranch {
		if i > 0 && n.name() == name {
			return true
		}
	}

	return false
}

// IsTransitioning reports whether a transition is running or paused.
func (a *Automaton) IsTransitioning() bool {
	return a.internal == engineTransitioning || a.internal == enginePaused
}

// IsPaused reports whether the running transition is waiting for Proceed.
func (a *Automaton) IsPaused() bool {
	return a.internal == enginePaused
}

// Children returns the direct children of a state in declaration order. An empty name means the root.
func (a *Automaton) Children(name string) []*State {
	if a.destroyed {
		return nil
	}

	var parent *node
	if name == "" || name == RootStateName {
		parent = a.tree.root
	} else {
		parent = a.tree.index[name]
	}

	if parent == nil {
		return nil
	}

	out := make([]*State, 0, len(parent.order))
	for _, child := range parent.order {
		out = append(out, child.state)
	}

	return out
}

// History returns the recorded transition attempts, oldest first.
func (a *Automaton) History() []TransitionRecord {
	return a.history.Records()
}

// AddListener registers an automaton level handler.
func (a *Automaton) AddListener(kind EventKind, handler Handler) HandlerID {
	if a.destroyed || handler == nil {
		return HandlerID{}
	}

	return a.listeners.add(kind, handler)
}

// RemoveListener unregisters an automaton level handler.
func (a *Automaton) RemoveListener(kind EventKind, id HandlerID) {
	a.listeners.remove(kind, id)
}

// HasListener reports whether an automaton level handler is registered.
func (a *Automaton) HasListener(kind EventKind, id HandlerID) bool {
	return a.listeners.has(kind, id)
}

// DoTransition looks up the named transition on the current branch, from the leaf
// up, and runs it. Refusals are reported through denial events and return nil;
// only precondition violations produce an error.
func (a *Automaton) DoTransition(ctx context.Context, name string, payload ...any) error {
	if a.destroyed {
		return ErrAutomatonDestroyed
	}

	if a.internal != engineReady {
		observeTransition(a.name, name, OutcomeRejected, 0)

		return WrapTransitionError(name, a.leafName(), "", ErrTransitionInProgress)
	}

	a.internal = engineGuarding

	defer func() {
		if a.internal == engineGuarding {
			a.internal = engineReady
		}
	}()

	args := Payload(payload)
	event := StateEvent{From: a.leafName(), Transition: name}
	startedAt := time.Now()

	ctx, span := startTransitionSpan(ctx, a.name, event)
	ctx = withAutomaton(ctx, a)

	a.logger.TransitionStarted(ctx, a.name, event)

	target, found := a.findTransition(name)
	if !found {
		a.deny(ctx, span, event, EventTransitionDenied, args, startedAt)

		return nil
	}

	targetName := target.resolve(ctx, event, args)

	targetNode := a.tree.index[targetName]
	if targetNode == nil {
		a.deny(ctx, span, event, EventTransitionDenied, args, startedAt)

		return nil
	}

	event.To = targetName

	targetPath := append(branchFromRoot(targetNode), targetNode.initialDescent()...)
	exits, entries := shortestRoute(a.currentBranch, targetPath)

	if !runGuards(ctx, exits, PhaseExit, event, args) {
		a.deny(ctx, span, event, EventExitDenied, args, startedAt)

		return nil
	}

	if !runGuards(ctx, entries, PhaseEntry, event, args) {
		a.deny(ctx, span, event, EventEntryDenied, args, startedAt)

		return nil
	}

	a.internal = engineTransitioning
	a.pending = &pendingTransition{
		event:     event,
		payload:   args,
		newBranch: targetPath,
		startedAt: startedAt,
		span:      span,
	}

	for _, n := range exits {
		a.queue.push(queueEntry{state: n.state, event: event.WithType(EventExited)})
	}

	a.queue.push(queueEntry{event: event.WithType(EventExited)})

	for _, n := range entries {
		a.queue.push(queueEntry{state: n.state, event: event.WithType(EventEntered)})
	}

	a.queue.push(queueEntry{event: event.WithType(EventEntered)})
	a.queue.push(queueEntry{event: event.WithType(EventChanged), commit: true})

	return a.Proceed(ctx)
}

// runGuards evaluates the phase guards of every node; all of them run.
func runGuards(ctx context.Context, nodes []*node, phase EventKind, event StateEvent, payload Payload) bool {
	allowed := true

	for _, n := range nodes {
		if !n.state.executeGuards(ctx, phase, event, payload) {
			allowed = false
		}
	}

	return allowed
}

// Proceed resumes a paused transition. It drains the queue until it is empty or a
// handler pauses again. Outside of a transition it does nothing.
func (a *Automaton) Proceed(ctx context.Context) error {
	if a.destroyed {
		return ErrAutomatonDestroyed
	}

	if a.internal != engineTransitioning && a.internal != enginePaused {
		return nil
	}

	pending := a.pending
	a.internal = engineTransitioning

	ctx = withAutomaton(trace.ContextWithSpan(ctx, pending.span), a)
	pending.ctx = ctx

	for a.internal == engineTransitioning && a.pending == pending {
		entry, ok := a.queue.pop()
		if !ok {
			a.finish(ctx)

			return nil
		}

		a.run(ctx, entry)
	}

	return nil
}

// Pause suspends the running transition after the current handler returns.
func (a *Automaton) Pause() {
	if a.internal != engineTransitioning || a.pending == nil {
		return
	}

	a.internal = enginePaused
	a.pending.pauses++

	recordPause(a.pending.span, a.pending.pauses)
	observePause(a.name)
	a.logger.TransitionPaused(a.pending.ctx, a.name, a.pending.event)
}

// Destroy tears down the whole tree. Every later call fails or returns zero values.
func (a *Automaton) Destroy() {
	if a.destroyed {
		return
	}

	if a.pending != nil {
		endTransitionSpan(a.pending.span, OutcomeDestroyed)
		a.pending = nil
	}

	a.destroyed = true
	a.internal = engineReady
	a.queue.clear()
	a.tree.destroy()
	a.listeners.clear()
	a.currentBranch = nil
}

func (a *Automaton) run(ctx context.Context, entry queueEntry) {
	pending := a.pending

	recordDispatch(pending.span, entry)
	observeDispatch(a.name, entry.event.Type)

	if entry.commit {
		a.commit(pending)
	}

	if entry.state == nil {
		a.dispatch(ctx, entry.event, pending.payload)

		return
	}

	entry.state.dispatch(ctx, entry.event, pending.payload)

	switch entry.event.Type { //nolint:exhaustive // only node lifecycle events are logged
	case EventExited:
		a.logger.StateExited(ctx, a.name, entry.state.Name())
	case EventEntered:
		a.logger.StateEntered(ctx, a.name, entry.state.Name())
	}
}

// commit installs the new branch. States removed while the transition was in
// flight cut the branch short.
func (a *Automaton) commit(pending *pendingTransition) {
	branch := make([]*node, 0, len(pending.newBranch))

	for _, n := range pending.newBranch {
		if n.state.IsDestroyed() {
			break
		}

		branch = append(branch, n)
	}

	if len(branch) == 0 {
		branch = append(branch, a.tree.root)
	}

	a.currentBranch = branch
	setBranchDepth(a.name, len(branch)-1)
}

func (a *Automaton) finish(ctx context.Context) {
	pending := a.pending

	a.pending = nil
	a.internal = engineReady

	record := TransitionRecord{
		Transition: pending.event.Transition,
		From:       pending.event.From,
		To:         pending.event.To,
		Outcome:    OutcomeCompleted,
		Branch:     a.GetCurrentBranch(),
		StartedAt:  pending.startedAt,
		Duration:   time.Since(pending.startedAt),
		Pauses:     pending.pauses,
	}

	a.history.Append(record)
	observeTransition(a.name, record.Transition, OutcomeCompleted, record.Duration)
	a.logger.TransitionCompleted(ctx, a.name, record)
	endTransitionSpan(pending.span, OutcomeCompleted)
}

func (a *Automaton) deny(
	ctx context.Context,
	span trace.Span,
	event StateEvent,
	kind EventKind,
	payload Payload,
	startedAt time.Time,
) {
	if kind == EventTransitionDenied {
		event.To = ""
	}

	event.Type = kind
	outcome := outcomeFor(kind)
	duration := time.Since(startedAt)

	a.dispatch(ctx, event, payload)

	a.history.Append(TransitionRecord{
		Transition: event.Transition,
		From:       event.From,
		To:         event.To,
		Outcome:    outcome,
		Branch:     a.GetCurrentBranch(),
		StartedAt:  startedAt,
		Duration:   duration,
	})

	observeTransition(a.name, event.Transition, outcome, duration)
	a.logger.TransitionDenied(ctx, a.name, event)
	endTransitionSpan(span, outcome)
}

func (a *Automaton) dispatch(ctx context.Context, event StateEvent, payload Payload) {
	for _, handler := range a.listeners.snapshot(event.Type) {
		handler(ctx, event, payload)
	}
}

func (a *Automaton) findTransition(name string) (Target, bool) {
	for i := len(a.currentBranch) - 1; i >= 0; i-- {
		if target, ok := a.currentBranch[i].state.GetTransition(name); ok {
			return target, true
		}
	}

	return Target{}, false
}

func (a *Automaton) leaf() *node {
	if len(a.currentBranch) == 0 {
		return nil
	}

	return a.currentBranch[len(a.currentBranch)-1]
}

func (a *Automaton) leafName() string {
	if leaf := a.leaf(); leaf != nil {
		return leaf.name()
	}

	return ""
}
