package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amp-labs/amp-hfsm/statemachine"
)

var (
	// ErrTransitionExists is returned when attempting to add a transition that already exists.
	ErrTransitionExists = errors.New("transition already exists")
	// ErrTransitionNotFound is returned when attempting to remove a transition that doesn't exist.
	ErrTransitionNotFound = errors.New("transition not found")
	// ErrStateNotFound is returned when a fix names a state that doesn't exist.
	ErrStateNotFound = errors.New("state not found")
	// ErrDuplicateNotFound is returned when attempting to remove a duplicate that doesn't exist.
	ErrDuplicateNotFound = errors.New("duplicate not found")
	// ErrStateAlreadyExists is returned when attempting to add or rename to an existing state name.
	ErrStateAlreadyExists = errors.New("state already exists")
	// ErrAlreadyInitial is returned when the state is already the only initial child of its parent.
	ErrAlreadyInitial = errors.New("already the initial state")
)

// Fix represents an automatic fix for a validation error.
type Fix struct {
	Description string
	Apply       func(config *statemachine.Config) error
}

// AddTransition creates a fix that adds a named transition to a state.
func AddTransition(state, name, target string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Add transition '%s' from '%s' to '%s'", name, state, target),
		Apply: func(config *statemachine.Config) error {
			source, ok := config.State(state)
			if !ok {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, state)
			}

			if _, exists := source.Transition(name); exists {
				return fmt.Errorf("%w: '%s' on '%s'", ErrTransitionExists, name, state)
			}

			source.Transitions = append(source.Transitions, statemachine.TransitionConfig{
				Name:   name,
				Target: target,
			})

			return nil
		},
	}
}

// RemoveTransition creates a fix that removes every transition of a state with the given name.
func RemoveTransition(state, name string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Remove transition '%s' from state '%s'", name, state),
		Apply: func(config *statemachine.Config) error {
			source, ok := config.State(state)
			if !ok {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, state)
			}

			kept := make([]statemachine.TransitionConfig, 0, len(source.Transitions))

			for _, t := range source.Transitions {
				if t.Name != name {
					kept = append(kept, t)
				}
			}

			if len(kept) == len(source.Transitions) {
				return fmt.Errorf("%w: '%s' on '%s'", ErrTransitionNotFound, name, state)
			}

			source.Transitions = kept

			return nil
		},
	}
}

// RemoveDuplicateTransition creates a fix that keeps only the last declaration of a transition.
func RemoveDuplicateTransition(state, name string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Remove earlier declarations of transition '%s' on '%s'", name, state),
		Apply: func(config *statemachine.Config) error {
			source, ok := config.State(state)
			if !ok {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, state)
			}

			last, _ := source.Transition(name)
			kept := make([]statemachine.TransitionConfig, 0, len(source.Transitions))
			seen := false

			for i := len(source.Transitions) - 1; i >= 0; i-- {
				t := source.Transitions[i]
				if t.Name == name {
					if seen {
						continue
					}

					seen = true
					t = last
				}

				kept = append(kept, t)
			}

			if len(kept) == len(source.Transitions) {
				return ErrDuplicateNotFound
			}

			// kept was built back to front
			for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
				kept[i], kept[j] = kept[j], kept[i]
			}

			source.Transitions = kept

			return nil
		},
	}
}

// AddState creates a fix that declares an empty state.
func AddState(name string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Declare state '%s'", name),
		Apply: func(config *statemachine.Config) error {
			if _, exists := config.State(name); exists {
				return fmt.Errorf("%w: '%s'", ErrStateAlreadyExists, name)
			}

			config.States = append(config.States, statemachine.StateConfig{Name: name})

			return nil
		},
	}
}

// RemoveState creates a fix that removes a state, its descendants and every
// transition targeting one of them.
func RemoveState(name string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Remove state '%s'", name),
		Apply: func(config *statemachine.Config) error {
			if _, ok := config.State(name); !ok {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, name)
			}

			def := index(config)
			removed := map[string]bool{name: true}

			// Children may be declared before their parent, so repeat until stable.
			for changed := true; changed; {
				changed = false

				for child := range def.states {
					if !removed[child] && removed[def.parent(child)] {
						removed[child] = true
						changed = true
					}
				}
			}

			states := make([]statemachine.StateConfig, 0, len(config.States))

			for _, state := range config.States {
				if removed[state.Name] {
					continue
				}

				transitions := make([]statemachine.TransitionConfig, 0, len(state.Transitions))

				for _, t := range state.Transitions {
					if !removed[t.Target] {
						transitions = append(transitions, t)
					}
				}

				state.Transitions = transitions
				states = append(states, state)
			}

			config.States = states

			return nil
		},
	}
}

// RenameState creates a fix that renames a state. Descendants named under the old
// path, explicit parents and transition targets follow the new name.
func RenameState(oldName, newName string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Rename state from '%s' to '%s'", oldName, newName),
		Apply: func(config *statemachine.Config) error {
			if _, exists := config.State(newName); exists {
				return fmt.Errorf("%w: '%s'", ErrStateAlreadyExists, newName)
			}

			if _, ok := config.State(oldName); !ok {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, oldName)
			}

			rename := func(name string) string {
				if name == oldName {
					return newName
				}

				if rest, ok := strings.CutPrefix(name, oldName+"/"); ok {
					return newName + "/" + rest
				}

				return name
			}

			for i := range config.States {
				state := &config.States[i]

				// The renamed state stays where it was even if the new name implies another parent.
				if state.Name == oldName && state.Parent == "" {
					before := state.ParentName()
					after := statemachine.StateConfig{Name: newName}.ParentName()

					switch {
					case before == after:
					case before == "":
						state.Parent = statemachine.RootStateName
					default:
						state.Parent = before
					}
				}

				state.Name = rename(state.Name)
				state.Parent = rename(state.Parent)

				for j := range state.Transitions {
					state.Transitions[j].Target = rename(state.Transitions[j].Target)
				}
			}

			return nil
		},
	}
}

// MarkInitial creates a fix that makes a state the only initial child of its parent.
func MarkInitial(name string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Mark '%s' as the initial state", name),
		Apply: func(config *statemachine.Config) error {
			target, ok := config.State(name)
			if !ok {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, name)
			}

			parent := parentOf(*target)
			changed := !target.IsInitial

			for i := range config.States {
				state := &config.States[i]
				if state.Name == name || !state.IsInitial || parentOf(*state) != parent {
					continue
				}

				state.IsInitial = false
				changed = true
			}

			if !changed {
				return fmt.Errorf("%w: '%s'", ErrAlreadyInitial, name)
			}

			target.IsInitial = true

			return nil
		},
	}
}

// ApplyFixes applies a list of fixes to a config.
func ApplyFixes(config *statemachine.Config, fixes []*Fix) error {
	for _, fix := range fixes {
		if fix != nil && fix.Apply != nil {
			err := fix.Apply(config)
			if err != nil {
				return fmt.Errorf("failed to apply fix '%s': %w", fix.Description, err)
			}
		}
	}

	return nil
}
