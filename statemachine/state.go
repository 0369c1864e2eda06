package statemachine

import (
	"context"
	"sort"
	"strings"
)

// RootStateName is the name of the synthetic state at the top of every tree.
const RootStateName = "root"

// State is a named node of a hierarchical machine. It owns its outgoing
// transitions, its entry/exit guards and its lifecycle listeners.
type State struct {
	name        string
	parent      string
	initial     bool
	transitions map[string]Target
	guards      *notifier[Guard]
	listeners   *notifier[Handler]
	destroyed   bool
}

// StateOption configures a State at creation time.
type StateOption func(*State) error

// NewState creates a detached state. The parent defaults to the part of the
// name before its last "/" and can be overridden with WithParent.
func NewState(name string, opts ...StateOption) (*State, error) {
	if name == "" {
		return nil, ErrStateNameRequired
	}

	state := &State{
		name:        name,
		parent:      implicitParent(name),
		transitions: make(map[string]Target),
		guards:      newNotifier[Guard](),
		listeners:   newNotifier[Handler](),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(state); err != nil {
			return nil, WrapStateError(name, err)
		}
	}

	return state, nil
}

func implicitParent(name string) string {
	idx := strings.LastIndex(name, "/")
	if idx <= 0 {
		return ""
	}

	return name[:idx]
}

// Initial marks the state as its parent's default child.
func Initial() StateOption {
	return func(s *State) error {
		s.initial = true

		return nil
	}
}

// WithParent overrides the parent derived from the state name.
func WithParent(parent string) StateOption {
	return func(s *State) error {
		s.parent = parent

		return nil
	}
}

// WithGuard registers a guard for the given phase.
func WithGuard(phase EventKind, guard Guard) StateOption {
	return func(s *State) error {
		if !phase.IsPhase() {
			return ErrInvalidPhase
		}

		s.AddGuard(phase, guard)

		return nil
	}
}

// WithListener registers a listener for the given event kind.
func WithListener(kind EventKind, handler Handler) StateOption {
	return func(s *State) error {
		s.AddListener(kind, handler)

		return nil
	}
}

// WithTransition registers an outgoing transition.
func WithTransition(name string, target Target) StateOption {
	return func(s *State) error {
		return s.AddTransition(name, target)
	}
}

// On registers an outgoing transition to a named state.
func On(name, target string) StateOption {
	return WithTransition(name, To(target))
}

// Name returns the unique state name.
func (s *State) Name() string {
	return s.name
}

// Parent returns the parent name, empty when the state hangs off the root.
func (s *State) Parent() string {
	return s.parent
}

// IsInitial reports whether the state is its parent's default child.
func (s *State) IsInitial() bool {
	return s.initial
}

// SetInitial toggles the initial flag. It only affects trees the state is added to afterwards.
func (s *State) SetInitial(initial bool) {
	s.initial = initial
}

// IsDestroyed reports whether Destroy has been called.
func (s *State) IsDestroyed() bool {
	return s.destroyed
}

// AddTransition registers or overwrites an outgoing transition.
func (s *State) AddTransition(name string, target Target) error {
	if s.destroyed {
		return ErrStateDestroyed
	}

	if name == "" {
		return ErrInvalidTransitionName
	}

	if !target.valid() {
		return &TransitionError{Transition: name, From: s.name, Err: ErrInvalidTransitionTarget}
	}

	s.transitions[name] = target

	return nil
}

// HasTransition reports whether a transition with the given name exists.
func (s *State) HasTransition(name string) bool {
	_, ok := s.transitions[name]

	return ok
}

// GetTransition returns the target of a transition.
func (s *State) GetTransition(name string) (Target, bool) {
	target, ok := s.transitions[name]

	return target, ok
}

// RemoveTransition drops a transition; absent names are ignored.
func (s *State) RemoveTransition(name string) {
	delete(s.transitions, name)
}

// TransitionNames returns every transition name in sorted order.
func (s *State) TransitionNames() []string {
	names := make([]string, 0, len(s.transitions))
	for name := range s.transitions {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// AddGuard registers a guard for the entry or exit phase. Other kinds, nil
// guards and destroyed states yield a zero HandlerID.
func (s *State) AddGuard(phase EventKind, guard Guard) HandlerID {
	if s.destroyed || guard == nil || !phase.IsPhase() {
		return HandlerID{}
	}

	return s.guards.add(phase, guard)
}

// RemoveGuard unregisters a guard.
func (s *State) RemoveGuard(phase EventKind, id HandlerID) {
	s.guards.remove(phase, id)
}

// HasGuard reports whether the guard is registered.
func (s *State) HasGuard(phase EventKind, id HandlerID) bool {
	return s.guards.has(phase, id)
}

// AddListener registers a handler for an event kind.
func (s *State) AddListener(kind EventKind, handler Handler) HandlerID {
	if s.destroyed || handler == nil {
		return HandlerID{}
	}

	return s.listeners.add(kind, handler)
}

// RemoveListener unregisters a handler.
func (s *State) RemoveListener(kind EventKind, id HandlerID) {
	s.listeners.remove(kind, id)
}

// HasListener reports whether the handler is registered.
func (s *State) HasListener(kind EventKind, id HandlerID) bool {
	return s.listeners.has(kind, id)
}

// Destroy releases every registration. The state cannot be reused afterwards.
func (s *State) Destroy() {
	if s.destroyed {
		return
	}

	s.destroyed = true
	s.transitions = map[string]Target{}
	s.guards.clear()
	s.listeners.clear()
}

// executeGuards runs every guard of the phase and ANDs the results. All guards
// run even after one refused. A refusal is reported to the state's own listeners.
func (s *State) executeGuards(ctx context.Context, phase EventKind, event StateEvent, payload Payload) bool {
	event.Type = phase
	allowed := true

	for _, guard := range s.guards.snapshot(phase) {
		if !guard(ctx, event, payload) {
			allowed = false
		}
	}

	if !allowed {
		s.dispatch(ctx, event.WithType(phase.Denied()), payload)
	}

	return allowed
}

func (s *State) dispatch(ctx context.Context, event StateEvent, payload Payload) {
	for _, handler := range s.listeners.snapshot(event.Type) {
		handler(ctx, event, payload)
	}
}
