// Package lazy holds values computed on first use.
package lazy

import (
	"sync"
)

// Of is a lazy value that is initialized at most once.
type Of[T any] struct {
	create func() T
	once   sync.Once
	value  T
}

// Get returns the value, computing it on the first call. If the computation
// panics the panic propagates and the next call tries again.
func (t *Of[T]) Get() T { //nolint:ireturn
	defer func() {
		if err := recover(); err != nil {
			t.once = sync.Once{}

			panic(err)
		}
	}()

	t.once.Do(func() {
		if t.create != nil {
			t.value = t.create()
			t.create = nil
		}
	})

	return t.value
}

// New creates a new lazy value. The callback will be called later, when the
// value is first accessed.
func New[T any](f func() T) *Of[T] {
	return &Of[T]{create: f}
}
