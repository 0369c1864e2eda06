package statemachine

import (
	"errors"
	"fmt"
)

// Predefined error types.
var (
	ErrStateNotFound = errors.New("state not found")
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStateNameRequired indicates that a state name is required.
	ErrStateNameRequired = errors.New("state name is required")
	// ErrStateRequired indicates that at least one state is required.
	ErrStateRequired = errors.New("at least one state is required")
	// ErrDuplicateStateName indicates that a duplicate state name was found.
	ErrDuplicateStateName = errors.New("duplicate state name")
	// ErrParentNotFound indicates that an explicit parent does not exist in the tree.
	ErrParentNotFound = errors.New("parent state does not exist")
	// ErrInvalidTransitionName indicates that a transition name is empty.
	ErrInvalidTransitionName = errors.New("transition name is required")
	// ErrInvalidTransitionTarget indicates that a transition has neither a target name nor a resolver.
	ErrInvalidTransitionTarget = errors.New("transition target is required")
	// ErrInvalidTransitionConfig indicates that a transition value in a config could not be decoded.
	ErrInvalidTransitionConfig = errors.New("invalid transition config")
	// ErrInvalidPhase indicates that a guard was registered for something other than entry or exit.
	ErrInvalidPhase = errors.New("guard phase must be entry or exit")
	// ErrUnknownEventKind indicates that an event kind name is not recognized.
	ErrUnknownEventKind = errors.New("unknown event kind")

	// ErrStateDestroyed indicates that a destroyed state was mutated.
	ErrStateDestroyed = errors.New("state has been destroyed")
	// ErrAutomatonDestroyed indicates that a destroyed automaton was used.
	ErrAutomatonDestroyed = errors.New("automaton has been destroyed")
	// ErrTransitionInProgress indicates that a transition was requested while another one is running.
	ErrTransitionInProgress = errors.New("transition already in progress")

	// ErrUnknownGuard indicates that a config references a guard missing from the registry.
	ErrUnknownGuard = errors.New("unknown guard")
	// ErrUnknownHandler indicates that a config references a handler missing from the registry.
	ErrUnknownHandler = errors.New("unknown handler")
	// ErrUnknownResolver indicates that a config references a resolver missing from the registry.
	ErrUnknownResolver = errors.New("unknown resolver")
	// ErrNoConfigLoader indicates that no config loader is registered.
	ErrNoConfigLoader = errors.New("no config loader registered; use SetConfigLoader() or provide a file path")

	// ErrMailboxClosed indicates that a request was sent to a stopped mailbox.
	ErrMailboxClosed = errors.New("mailbox is closed")
	// ErrHandlerPanic indicates that a guard, resolver or handler panicked inside a mailbox.
	ErrHandlerPanic = errors.New("handler panicked")
)

// StateError wraps an error with state context.
type StateError struct {
	State string
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// TransitionError wraps an error with transition context.
type TransitionError struct {
	Transition string
	From       string
	To         string
	Err        error
}

func (e *TransitionError) Error() string {
	switch {
	case e.From == "" && e.To == "":
		return fmt.Sprintf("transition %s: %v", e.Transition, e.Err)
	case e.To == "":
		return fmt.Sprintf("transition %s from %s: %v", e.Transition, e.From, e.Err)
	default:
		return fmt.Sprintf("transition %s (%s -> %s): %v", e.Transition, e.From, e.To, e.Err)
	}
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// WrapStateError wraps an error with state context.
func WrapStateError(state string, err error) error {
	if err == nil {
		return nil
	}

	return &StateError{
		State: state,
		Err:   err,
	}
}

// WrapTransitionError wraps an error with transition context.
func WrapTransitionError(transition, from, to string, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError{
		Transition: transition,
		From:       from,
		To:         to,
		Err:        err,
	}
}
