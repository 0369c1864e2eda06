// Package errors accumulates independent failures so they can be reported together.
package errors

import (
	"errors"
	"fmt"
)

// Collection is a thread-unsafe accumulator for independent errors, such as every
// problem found while checking a machine definition. The zero value is ready to use.
type Collection struct {
	errors []error
	prefix string
}

// NewCollection creates a collection whose errors are each prefixed with the given label.
func NewCollection(prefix string) *Collection {
	return &Collection{prefix: prefix}
}

// Add appends an error to the collection. Nil errors are ignored.
func (c *Collection) Add(err error) {
	if err == nil {
		return
	}

	if c.prefix != "" {
		err = fmt.Errorf("%s: %w", c.prefix, err)
	}

	c.errors = append(c.errors, err)
}

// Addf wraps err with a formatted message and appends it. Nil errors are ignored.
func (c *Collection) Addf(err error, format string, args ...any) {
	if err == nil {
		return
	}

	c.Add(fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err))
}

// Merge appends every error of another collection.
func (c *Collection) Merge(other *Collection) {
	if other == nil {
		return
	}

	c.errors = append(c.errors, other.errors...)
}

// Clear removes all errors from the collection.
func (c *Collection) Clear() {
	c.errors = nil
}

// HasError returns true if the collection contains at least one error.
func (c *Collection) HasError() bool {
	return len(c.errors) > 0
}

// Len returns the number of collected errors.
func (c *Collection) Len() int {
	return len(c.errors)
}

// Errors returns a copy of the collected errors in insertion order.
func (c *Collection) Errors() []error {
	out := make([]error, len(c.errors))
	copy(out, c.errors)

	return out
}

// GetError returns nil when empty, the error itself when there is one, and an
// errors.Join of all of them otherwise.
func (c *Collection) GetError() error {
	switch len(c.errors) {
	case 0:
		return nil
	case 1:
		return c.errors[0]
	default:
		return errors.Join(c.errors...)
	}
}
