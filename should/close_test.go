package should_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amp-labs/amp-hfsm/should"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCloseFailed = errors.New("close failed")

type mockCloser struct {
	closeErr error
	closed   bool
}

func (m *mockCloser) Close() error {
	m.closed = true

	return m.closeErr
}

func TestClose_Success(t *testing.T) {
	t.Parallel()

	closer := &mockCloser{}

	should.Close(closer, "test message")

	assert.True(t, closer.closed, "Close should have been called")
}

func TestClose_Failure(t *testing.T) {
	t.Parallel()

	closer := &mockCloser{closeErr: errCloseFailed}

	assert.NotPanics(t, func() {
		should.Close(closer, "failed to close resource")
	})
	assert.True(t, closer.closed, "Close should have been called")
}

func TestClose_NilCloser(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		should.Close(nil, "test message")
	}, "Calling Close on nil should panic")
}

func TestClose_RealFile(t *testing.T) {
	t.Parallel()

	file, err := os.Create(filepath.Join(t.TempDir(), "test.txt"))
	require.NoError(t, err)

	should.Close(file, "failed to close file")

	_, err = file.WriteString("more data")
	assert.Error(t, err, "Writing to closed file should fail")
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	t.Run("gets a live deadline", func(t *testing.T) {
		t.Parallel()

		var deadline time.Time

		should.Shutdown(func(ctx context.Context) error {
			require.NoError(t, ctx.Err())

			deadline, _ = ctx.Deadline()

			return nil
		}, time.Minute, "shutdown")

		assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
	})

	t.Run("logs failures", func(t *testing.T) {
		t.Parallel()

		called := false

		assert.NotPanics(t, func() {
			should.Shutdown(func(context.Context) error {
				called = true

				return errCloseFailed
			}, time.Second, "shutdown")
		})
		assert.True(t, called)
	})
}
