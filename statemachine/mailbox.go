package statemachine

import (
	"context"
	"errors"
	"fmt"

	"github.com/amp-labs/amp-hfsm/actor"
	"github.com/amp-labs/amp-hfsm/logger"
	"go.uber.org/atomic"
)

// mailboxRequest is one unit of work executed on the mailbox goroutine.
type mailboxRequest struct {
	ctx context.Context //nolint:containedctx // carried to the owning goroutine
	fn  func(ctx context.Context, a *Automaton) error
	// claimed is set by whichever side settles the request first: the mailbox
	// when it starts running fn, or the caller when it gives up waiting.
	claimed *atomic.Bool
}

// Mailbox hosts an Automaton on a dedicated goroutine and serializes every call
// to it. Guards, resolvers and handlers all run on that goroutine, so they may call
// the automaton directly but must not call back into the Mailbox synchronously.
type Mailbox struct {
	automaton *Automaton
	name      string
	ref       *actor.Ref[mailboxRequest, error]
	pending   *atomic.Int64
}

// NewMailbox starts the goroutine owning the automaton. It runs until Stop is
// called or ctx is canceled. depth is the inbox buffer size, a negative depth
// makes it unbounded.
func NewMailbox(ctx context.Context, automaton *Automaton, depth int) *Mailbox {
	m := &Mailbox{
		automaton: automaton,
		name:      sanitizeAutomaton(automaton.Name()),
		pending:   atomic.NewInt64(0),
	}

	mailboxPending.WithLabelValues(m.name).Set(0)
	mailboxPanics.WithLabelValues(m.name).Add(0)

	host := actor.New(func(*actor.Ref[mailboxRequest, error]) actor.Processor[mailboxRequest, error] {
		return actor.SimpleProcessor(m.process)
	})

	m.ref = host.Run(ctx, "mailbox-"+m.name, depth)

	return m
}

// process answers with the error of fn. The second result reports whether the
// request was served at all: a request whose caller already left is skipped.
func (m *Mailbox) process(req mailboxRequest) (error, error) { //nolint:revive,staticcheck
	if !m.settle(req) {
		return nil, req.ctx.Err()
	}

	return req.fn(req.ctx, m.automaton), nil
}

func (m *Mailbox) settle(req mailboxRequest) bool {
	if !req.claimed.CompareAndSwap(false, true) {
		return false
	}

	mailboxPending.WithLabelValues(m.name).Set(float64(m.pending.Dec()))

	return true
}

// Do runs fn on the goroutine owning the automaton and returns its error. When
// ctx ends before fn starts, fn is never run.
func (m *Mailbox) Do(ctx context.Context, fn func(ctx context.Context, a *Automaton) error) error {
	req := mailboxRequest{ctx: ctx, fn: fn, claimed: atomic.NewBool(false)}

	mailboxPending.WithLabelValues(m.name).Set(float64(m.pending.Inc()))

	result, err := m.ref.RequestCtx(ctx, req)
	if err == nil {
		return result
	}

	m.settle(req)

	switch {
	case errors.Is(err, actor.ErrActorPanic):
		mailboxPanics.WithLabelValues(m.name).Inc()

		return logger.AnnotateError(fmt.Errorf("%w: %w", ErrHandlerPanic, err), "automaton", m.name)
	case errors.Is(err, actor.ErrDeadActor):
		return ErrMailboxClosed
	default:
		return err
	}
}

// DoTransition runs Automaton.DoTransition on the owning goroutine.
func (m *Mailbox) DoTransition(ctx context.Context, name string, payload ...any) error {
	return m.Do(ctx, func(ctx context.Context, a *Automaton) error {
		return a.DoTransition(ctx, name, payload...)
	})
}

// Proceed runs Automaton.Proceed on the owning goroutine.
func (m *Mailbox) Proceed(ctx context.Context) error {
	return m.Do(ctx, func(ctx context.Context, a *Automaton) error {
		return a.Proceed(ctx)
	})
}

// Pause runs Automaton.Pause on the owning goroutine.
func (m *Mailbox) Pause(ctx context.Context) error {
	return m.Do(ctx, func(_ context.Context, a *Automaton) error {
		a.Pause()

		return nil
	})
}

// CurrentBranch returns a snapshot of the current branch.
func (m *Mailbox) CurrentBranch(ctx context.Context) ([]string, error) {
	var branch []string

	err := m.Do(ctx, func(_ context.Context, a *Automaton) error {
		branch = a.GetCurrentBranch()

		return nil
	})
	if err != nil {
		return nil, err
	}

	return branch, nil
}

// Stop closes the mailbox and waits for its goroutine to exit. Requests already
// queued are still served, later ones fail with ErrMailboxClosed.
func (m *Mailbox) Stop() {
	m.ref.Stop()
	m.ref.Wait()
}

// Done is closed once the mailbox goroutine has exited.
func (m *Mailbox) Done() <-chan struct{} {
	return m.ref.Done()
}
