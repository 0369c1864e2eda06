// Package actor runs a processor on a goroutine of its own and feeds it
// messages through an inbox channel, one at a time. Panics raised while
// processing are recovered, logged with their stack and returned to the caller
// waiting on the message.
package actor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/amp-labs/amp-hfsm/channels"
	"github.com/amp-labs/amp-hfsm/logger"
	"github.com/amp-labs/amp-hfsm/try"
	"go.uber.org/atomic"
)

const (
	// actorMetricsTickerTime is the interval at which the inbox gauge is sampled.
	actorMetricsTickerTime = 10 * time.Second
	// actorPanicReturnTimeout bounds the wait when handing a panic back to the caller.
	actorPanicReturnTimeout = 5 * time.Second
)

var (
	// ErrDeadActor is returned when a message is sent to a stopped actor.
	ErrDeadActor = errors.New("actor is dead")
	// ErrActorPanic is returned when the processor panics on a message.
	ErrActorPanic = errors.New("panic in actor")
)

// Actor processes messages of type Request and answers with Response. Create
// it with New and start it with Run.
type Actor[Request, Response any] struct {
	factory func(ref *Ref[Request, Response]) Processor[Request, Response]
}

// New creates an Actor. The factory is called by Run with the reference of the
// actor being started.
func New[Request, Response any](
	processorFactory func(ref *Ref[Request, Response]) Processor[Request, Response],
) *Actor[Request, Response] {
	return &Actor[Request, Response]{
		factory: processorFactory,
	}
}

func getPanicErr(name string, err any) error {
	if e, ok := err.(error); ok {
		return fmt.Errorf("%w %s: %w", ErrActorPanic, name, e)
	}

	return fmt.Errorf("%w %s: %v", ErrActorPanic, name, err)
}

// informCallerOfPanic hands the panic to whoever waits on msg. It gives up after
// actorPanicReturnTimeout or when ctx ends.
func informCallerOfPanic[Request, Response any](
	ctx context.Context,
	name string,
	msg Message[Request, Response],
	err any,
) {
	if msg.ResponseChan == nil {
		return
	}

	timer := time.NewTimer(actorPanicReturnTimeout)

	defer func() {
		// The caller may have closed the channel already.
		_ = recover()

		timer.Stop()
	}()

	rsp := try.Try[Response]{
		Error: getPanicErr(name, err),
	}

	// A buffered channel takes the error right away, even when ctx has ended.
	select {
	case msg.ResponseChan <- rsp: // might panic
	default:
		select {
		case <-ctx.Done():
		case msg.ResponseChan <- rsp: // might panic
		case <-timer.C:
		}
	}

	channels.CloseChannelIgnorePanic(msg.ResponseChan)
}

func (a *Actor[Request, Response]) runProcessor(
	ctx context.Context,
	proc Processor[Request, Response],
	msg Message[Request, Response],
	name string,
) {
	defer func() {
		if err := recover(); err != nil {
			actorPanic.WithLabelValues(logger.GetSubsystem(ctx), name).Inc()

			logger.Get(ctx).Error("actor recovered from panic",
				"actor", name,
				"error", err,
				"stack", string(debug.Stack()))

			informCallerOfPanic(ctx, name, msg, err)
		}
	}()

	proc.Process(msg)
}

// Run starts the actor and returns its reference. name labels logs and
// metrics. depth is the inbox buffer size: 0 is unbuffered and a negative
// depth is unbounded. The actor runs until ctx ends or Stop is called, and
// serves every message accepted before that.
func (a *Actor[Request, Response]) Run(ctx context.Context, name string, depth int) *Ref[Request, Response] {
	w, r, count := channels.Create[Message[Request, Response]](depth)

	ref := &Ref[Request, Response]{
		inboxRead:  r,
		inboxWrite: w,
		getCount:   count,
		dead:       atomic.NewBool(false),
		done:       make(chan struct{}),
		name:       name,
	}

	proc := a.factory(ref)

	ticker := time.NewTicker(actorMetricsTickerTime)

	subsystem := logger.GetSubsystem(ctx)

	processedMessages.WithLabelValues(subsystem, name).Add(0)
	enqueuedMessages.WithLabelValues(subsystem, name).Set(0)
	actorPanic.WithLabelValues(subsystem, name).Add(0)
	aliveActors.WithLabelValues(subsystem, name).Inc()

	go func() {
		defer close(ref.done)
		defer ticker.Stop()
		defer aliveActors.WithLabelValues(subsystem, name).Dec()

		// Set to nil once handled so that a canceled context does not spin the loop
		// while the inbox drains.
		ctxDone := ctx.Done()

		for {
			select {
			case <-ctxDone:
				ctxDone = nil

				ref.dead.Store(true)
				channels.CloseChannelIgnorePanic(ref.inboxWrite)
			case <-ticker.C:
				enqueuedMessages.WithLabelValues(subsystem, name).Set(float64(ref.getCount()))
			case msg, ok := <-ref.inboxRead:
				if !ok {
					enqueuedMessages.WithLabelValues(subsystem, name).Set(0)

					return
				}

				start := time.Now()

				a.runProcessor(ctx, proc, msg, name)

				processedMessages.WithLabelValues(subsystem, name).Inc()
				processingTime.WithLabelValues(subsystem, name).Observe(time.Since(start).Seconds())
			}
		}
	}()

	return ref
}

// Ref is a handle on a running actor.
type Ref[Request, Response any] struct {
	inboxRead  <-chan Message[Request, Response]
	inboxWrite chan<- Message[Request, Response]
	getCount   func() int
	dead       *atomic.Bool
	done       chan struct{}
	name       string
}

// Stop closes the inbox. Messages already accepted are still processed. It is
// safe to call more than once.
func (r *Ref[Request, Response]) Stop() {
	if r.dead.Swap(true) {
		return
	}

	channels.CloseChannelIgnorePanic(r.inboxWrite)
}

// Wait blocks until the actor goroutine has exited.
func (r *Ref[Request, Response]) Wait() {
	<-r.done
}

// Done is closed once the actor goroutine has exited.
func (r *Ref[Request, Response]) Done() <-chan struct{} {
	return r.done
}

func (r *Ref[Request, Response]) submit(ctx context.Context, message Message[Request, Response]) error {
	if r.dead.Load() {
		return ErrDeadActor
	}

	begin := time.Now()

	if err := channels.SendContextCatchPanic(ctx, r.inboxWrite, message); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		// Stop closed the inbox while we were sending.
		return fmt.Errorf("%w: %w", ErrDeadActor, err)
	}

	submitTime.WithLabelValues(logger.GetSubsystem(ctx), r.name).Observe(time.Since(begin).Seconds())

	return nil
}

// RequestCtx sends request and blocks until the actor answers or ctx ends. It
// returns ErrDeadActor once the actor is stopped and wraps ErrActorPanic when
// the processor panicked on this request.
func (r *Ref[Request, Response]) RequestCtx(ctx context.Context, request Request) (Response, error) { //nolint:ireturn
	var zero Response

	if r.dead.Load() {
		return zero, ErrDeadActor
	}

	// Buffered so that a processor answering after the caller left never blocks.
	msgChan := make(chan try.Try[Response], 1)

	err := r.submit(ctx, Message[Request, Response]{
		Request:      request,
		ResponseChan: msgChan,
	})
	if err != nil {
		return zero, err
	}

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case val, ok := <-msgChan:
		if !ok {
			return zero, ErrDeadActor
		}

		return val.Get()
	}
}
