// Package should runs cleanup operations that are expected to succeed but
// whose failure is only worth a log line, typically in defer statements.
package should

import (
	"context"
	"io"
	"time"

	"github.com/amp-labs/amp-hfsm/logger"
)

// Close closes the given io.Closer and logs an error if it fails.
//
// Example:
//
//	defer should.Close(file, "closing /dev/tty")
func Close(closer io.Closer, msg string) {
	if err := closer.Close(); err != nil {
		logger.Get().Error(msg, "error", err)
	}
}

// Shutdown calls a context-aware shutdown function with a fresh deadline, so
// that it still runs when the caller's context is already cancelled. Failures
// are logged.
//
// Example:
//
//	defer should.Shutdown(server.Shutdown, 5*time.Second, "stopping metrics server")
func Shutdown(shutdown func(ctx context.Context) error, timeout time.Duration, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := shutdown(ctx); err != nil {
		logger.Get(ctx).Error(msg, "error", err)
	}
}
