package statemachine

import (
	errs "github.com/amp-labs/amp-hfsm/errors"
)

type builderStep struct {
	name   string
	opts   []StateOption
	config *Config
}

// Builder provides a fluent API for constructing automata. Steps run in call
// order when Build is invoked; every failure is reported, joined.
type Builder struct {
	name     string
	registry *Registry
	options  []Option
	steps    []builderStep
}

// NewBuilder creates a new automaton builder.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:     name,
		registry: NewRegistry(),
	}
}

// WithRegistry replaces the registry used to bind names in definitions.
func (b *Builder) WithRegistry(registry *Registry) *Builder {
	if registry != nil {
		b.registry = registry
	}

	return b
}

// WithOptions adds automaton options.
func (b *Builder) WithOptions(opts ...Option) *Builder {
	b.options = append(b.options, opts...)

	return b
}

// RegisterGuard registers a guard in the builder's registry.
func (b *Builder) RegisterGuard(name string, guard Guard) *Builder {
	b.registry.RegisterGuard(name, guard)

	return b
}

// RegisterHandler registers a handler in the builder's registry.
func (b *Builder) RegisterHandler(name string, handler Handler) *Builder {
	b.registry.RegisterHandler(name, handler)

	return b
}

// RegisterResolver registers a resolver in the builder's registry.
func (b *Builder) RegisterResolver(name string, resolver Resolver) *Builder {
	b.registry.RegisterResolver(name, resolver)

	return b
}

// State adds a state declared in code.
func (b *Builder) State(name string, opts ...StateOption) *Builder {
	b.steps = append(b.steps, builderStep{name: name, opts: opts})

	return b
}

// FromConfig adds every state of a declarative definition.
func (b *Builder) FromConfig(config *Config) *Builder {
	b.steps = append(b.steps, builderStep{config: config})

	return b
}

// Build constructs the automaton.
func (b *Builder) Build() (*Automaton, error) {
	automaton := New(append([]Option{WithName(b.name)}, b.options...)...)

	var collected errs.Collection

	for _, step := range b.steps {
		// Definitions may hang their states under states declared in code, so
		// parents are checked against the automaton rather than the definition.
		if step.config != nil {
			if len(step.config.States) == 0 {
				collected.Add(ErrStateRequired)

				continue
			}

			collected.Add(automaton.Parse(step.config, b.registry))

			continue
		}

		_, err := automaton.CreateState(step.name, step.opts...)
		collected.Add(err)
	}

	if collected.HasError() {
		automaton.Destroy()

		return nil, collected.GetError()
	}

	return automaton, nil
}
