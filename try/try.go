// Package try carries a value or the error that prevented producing it across
// a channel.
package try

type Try[A any] struct {
	Value A
	Error error
}

func (t Try[A]) IsFailure() bool {
	return t.Error != nil
}

// Get unpacks the result. The value is the zero value whenever Error is set.
func (t Try[A]) Get() (A, error) { //nolint:ireturn
	if t.IsFailure() {
		var zero A

		return zero, t.Error
	}

	return t.Value, nil
}
