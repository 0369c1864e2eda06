package statemachine

import (
	"context"
	"reflect"
	"sync"
)

// AllGuards passes when every guard passes. Like guard evaluation on a path, all guards run.
func AllGuards(guards ...Guard) Guard {
	return func(ctx context.Context, event StateEvent, payload Payload) bool {
		allowed := true

		for _, guard := range guards {
			if guard != nil && !guard(ctx, event, payload) {
				allowed = false
			}
		}

		return allowed
	}
}

// AnyGuard passes when at least one guard passes. It stops at the first success.
func AnyGuard(guards ...Guard) Guard {
	return func(ctx context.Context, event StateEvent, payload Payload) bool {
		for _, guard := range guards {
			if guard != nil && guard(ctx, event, payload) {
				return true
			}
		}

		return false
	}
}

// NotGuard inverts a guard.
func NotGuard(guard Guard) Guard {
	return func(ctx context.Context, event StateEvent, payload Payload) bool {
		return guard == nil || !guard(ctx, event, payload)
	}
}

// PayloadEquals passes when the i-th payload value equals want.
func PayloadEquals(i int, want any) Guard {
	return func(_ context.Context, _ StateEvent, payload Payload) bool {
		got, ok := payload.At(i)

		return ok && reflect.DeepEqual(got, want)
	}
}

// Sequence runs handlers in order.
func Sequence(handlers ...Handler) Handler {
	return func(ctx context.Context, event StateEvent, payload Payload) {
		for _, handler := range handlers {
			if handler != nil {
				handler(ctx, event, payload)
			}
		}
	}
}

// When runs the handler only when the guard passes.
func When(guard Guard, handler Handler) Handler {
	return func(ctx context.Context, event StateEvent, payload Payload) {
		if guard == nil || handler == nil {
			return
		}

		if guard(ctx, event, payload) {
			handler(ctx, event, payload)
		}
	}
}

// Once runs the handler on its first invocation only.
func Once(handler Handler) Handler {
	var once sync.Once

	return func(ctx context.Context, event StateEvent, payload Payload) {
		once.Do(func() {
			if handler != nil {
				handler(ctx, event, payload)
			}
		})
	}
}

// PauseWhile pauses the running transition and hands the caller a resume
// function. The function must be called from the goroutine that owns the automaton.
func PauseWhile(start func(ctx context.Context, event StateEvent, payload Payload, resume func())) Handler {
	return func(ctx context.Context, event StateEvent, payload Payload) {
		automaton, ok := FromContext(ctx)
		if !ok {
			return
		}

		automaton.Pause()

		start(ctx, event, payload, func() {
			_ = automaton.Proceed(ctx)
		})
	}
}
