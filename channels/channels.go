// Package channels holds small helpers for channels that may be closed
// concurrently with senders.
package channels

import (
	"context"
	"fmt"
)

// Create returns the two ends of a channel and a function reporting how many
// values are buffered. A positive size gives a buffered channel, zero an
// unbuffered one and a negative size an unbounded one (see InfiniteChan), whose
// length is always reported as zero.
func Create[T any](size int) (chan<- T, <-chan T, func() int) {
	if size < 0 {
		in, out := InfiniteChan[T]()

		return in, out, func() int { return 0 }
	}

	ch := make(chan T, size)

	return ch, ch, func() int { return len(ch) }
}

// CloseChannelIgnorePanic closes a channel like normal.
// However, if the channel has already been closed,
// it will suppress the resulting panic.
func CloseChannelIgnorePanic[T any](ch chan<- T) {
	if ch == nil {
		return
	}

	defer func() {
		_ = recover()
	}()

	close(ch)
}

// SendContextCatchPanic sends value on ch unless ctx ends first. Sending on a
// closed channel returns an error instead of panicking. A nil channel is a no-op.
func SendContextCatchPanic[T any](ctx context.Context, ch chan<- T, value T) (err error) {
	if ch == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic sending to channel: %v", recovered)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case ch <- value:
		return nil
	}
}

// InfiniteChan creates a channel with infinite buffering.
// It returns a send-only channel and a receive-only channel.
// The receive side yields values in the order they were sent and is closed
// once the send side is closed and every queued value has been received.
//
// Note: memory grows without bound if the sender outpaces the receiver.
func InfiniteChan[A any]() (chan<- A, <-chan A) {
	inputCh := make(chan A)
	outputCh := make(chan A)

	go func() {
		var inputQueue []A

		// outCh is nil while the queue is empty, which disables the send case.
		outCh := func() chan A {
			if len(inputQueue) == 0 {
				return nil
			}

			return outputCh
		}

		curVal := func() A {
			if len(inputQueue) == 0 {
				var zero A

				return zero
			}

			return inputQueue[0]
		}

		in := inputCh

		for len(inputQueue) > 0 || in != nil {
			select {
			case v, ok := <-in:
				if !ok {
					in = nil
				} else {
					inputQueue = append(inputQueue, v)
				}
			case outCh() <- curVal():
				inputQueue = inputQueue[1:]
			}
		}

		close(outputCh)
	}()

	return inputCh, outputCh
}
