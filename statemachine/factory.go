package statemachine

import (
	"context"
	"fmt"
	"maps"
	"sort"
)

// Names of the entries every Registry starts with.
const (
	GuardAlways   = "always"
	GuardNever    = "never"
	HandlerNoop   = "noop"
	HandlerPause  = "pause"
	ResolverFirst = "firstArg"
)

// Registry binds the guard, handler and resolver names used in declarative
// definitions to Go functions. Applications register their own entries to extend it.
type Registry struct {
	guards    map[string]Guard
	handlers  map[string]Handler
	resolvers map[string]Resolver
}

// NewRegistry creates a registry holding the built-in entries.
func NewRegistry() *Registry {
	registry := &Registry{
		guards:    make(map[string]Guard),
		handlers:  make(map[string]Handler),
		resolvers: make(map[string]Resolver),
	}

	registry.RegisterGuard(GuardAlways, alwaysGuard)
	registry.RegisterGuard(GuardNever, neverGuard)
	registry.RegisterHandler(HandlerNoop, noopHandler)
	registry.RegisterHandler(HandlerPause, pauseHandler)
	registry.RegisterResolver(ResolverFirst, firstArgResolver)

	return registry
}

// RegisterGuard registers or replaces a guard.
func (r *Registry) RegisterGuard(name string, guard Guard) *Registry {
	if guard != nil {
		r.guards[name] = guard
	}

	return r
}

// RegisterHandler registers or replaces a handler.
func (r *Registry) RegisterHandler(name string, handler Handler) *Registry {
	if handler != nil {
		r.handlers[name] = handler
	}

	return r
}

// RegisterResolver registers or replaces a resolver.
func (r *Registry) RegisterResolver(name string, resolver Resolver) *Registry {
	if resolver != nil {
		r.resolvers[name] = resolver
	}

	return r
}

// Guard looks up a guard.
func (r *Registry) Guard(name string) (Guard, error) {
	guard, ok := r.guards[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGuard, name)
	}

	return guard, nil
}

// Handler looks up a handler.
func (r *Registry) Handler(name string) (Handler, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, name)
	}

	return handler, nil
}

// Resolver looks up a resolver.
func (r *Registry) Resolver(name string) (Resolver, error) {
	resolver, ok := r.resolvers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResolver, name)
	}

	return resolver, nil
}

// HasGuard reports whether a guard is registered.
func (r *Registry) HasGuard(name string) bool {
	_, ok := r.guards[name]

	return ok
}

// HasHandler reports whether a handler is registered.
func (r *Registry) HasHandler(name string) bool {
	_, ok := r.handlers[name]

	return ok
}

// HasResolver reports whether a resolver is registered.
func (r *Registry) HasResolver(name string) bool {
	_, ok := r.resolvers[name]

	return ok
}

// GuardNames returns the registered guard names, sorted.
func (r *Registry) GuardNames() []string {
	return sortedKeys(r.guards)
}

// HandlerNames returns the registered handler names, sorted.
func (r *Registry) HandlerNames() []string {
	return sortedKeys(r.handlers)
}

// ResolverNames returns the registered resolver names, sorted.
func (r *Registry) ResolverNames() []string {
	return sortedKeys(r.resolvers)
}

// Clone copies the registry so that a caller can extend it without affecting the original.
func (r *Registry) Clone() *Registry {
	return &Registry{
		guards:    maps.Clone(r.guards),
		handlers:  maps.Clone(r.handlers),
		resolvers: maps.Clone(r.resolvers),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func alwaysGuard(context.Context, StateEvent, Payload) bool { return true }

func neverGuard(context.Context, StateEvent, Payload) bool { return false }

func noopHandler(context.Context, StateEvent, Payload) {}

// pauseHandler pauses the running transition; resume it with Automaton.Proceed.
func pauseHandler(ctx context.Context, _ StateEvent, _ Payload) {
	PauseFromContext(ctx)
}

// firstArgResolver targets the state named by the first payload value.
func firstArgResolver(_ context.Context, _ StateEvent, payload Payload) string {
	name, _ := payload.GetString(0)

	return name
}
