// Package shutdown turns SIGINT and SIGTERM into context cancellation so that
// commands get a chance to stop their mailboxes and flush telemetry.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/amp-labs/amp-hfsm/logger"
)

var (
	mut     sync.Mutex     //nolint:gochecknoglobals
	channel chan os.Signal //nolint:gochecknoglobals
)

// Shutdown triggers the shutdown process as if a signal had arrived. It does
// nothing when no handler is installed.
func Shutdown() {
	mut.Lock()
	defer mut.Unlock()

	if channel == nil {
		return
	}

	select {
	case channel <- os.Interrupt:
	default:
	}
}

// SetupHandler returns a context canceled on the first SIGINT or SIGTERM. The
// returned stop function uninstalls the handler and cancels the context.
func SetupHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	mut.Lock()
	channel = ch
	mut.Unlock()

	ctx, cancel := context.WithCancel(parent)

	go func() {
		select {
		case sig := <-ch:
			logger.Get(ctx).Warn("Received " + sig.String() + ", shutting down...")
			cancel()
		case <-ctx.Done():
		}

		signal.Stop(ch)

		mut.Lock()
		if channel == ch {
			channel = nil
		}
		mut.Unlock()
	}()

	return ctx, cancel
}
