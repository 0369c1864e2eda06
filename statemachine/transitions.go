package statemachine

import "context"

// Target is the destination of a transition: either a literal state name or a
// Resolver invoked lazily when the transition is attempted.
type Target struct {
	name     string
	resolver Resolver
}

// To targets a state by name.
func To(name string) Target {
	return Target{name: name}
}

// Resolve targets whatever state the resolver returns at transition time.
func Resolve(resolver Resolver) Target {
	return Target{resolver: resolver}
}

// Name returns the literal target name, empty for dynamic targets.
func (t Target) Name() string {
	return t.name
}

// IsDynamic reports whether the target is computed by a resolver.
func (t Target) IsDynamic() bool {
	return t.resolver != nil
}

func (t Target) String() string {
	if t.IsDynamic() {
		return "<dynamic>"
	}

	return t.name
}

func (t Target) valid() bool {
	return t.name != "" || t.resolver != nil
}

func (t Target) resolve(ctx context.Context, event StateEvent, payload Payload) string {
	if t.resolver != nil {
		return t.resolver(ctx, event, payload)
	}

	return t.name
}
