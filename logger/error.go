package logger

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// AnnotateError wraps an error with slog key-value pairs. When the error is logged
// through a logger configured by this package, the pairs are added to the record.
//
// Example:
//
//	return logger.AnnotateError(err, "transition", name, "state", from)
//
// Returns nil if err is nil.
func AnnotateError(err error, args ...any) error {
	if err == nil {
		return nil
	}

	r := slog.NewRecord(time.Now(), slog.LevelDebug, "", 0)
	r.Add(args...)

	var attrs []slog.Attr

	r.Attrs(func(attr slog.Attr) bool {
		attrs = append(attrs, attr)

		return true
	})

	return &annotatedError{
		err:   err,
		attrs: attrs,
	}
}

// ErrorAttrs returns every attribute attached to err and the errors it wraps, outermost first.
func ErrorAttrs(err error) []slog.Attr {
	var out []slog.Attr

	collectAttrs(err, &out)

	return out
}

func collectAttrs(err error, out *[]slog.Attr) {
	if err == nil {
		return
	}

	if ae, ok := err.(*annotatedError); ok { //nolint:errorlint // walking the chain by hand
		*out = append(*out, ae.attrs...)
		collectAttrs(ae.err, out)

		return
	}

	switch wrapped := err.(type) { //nolint:errorlint // walking the chain by hand
	case interface{ Unwrap() []error }:
		for _, e := range wrapped.Unwrap() {
			collectAttrs(e, out)
		}
	case interface{ Unwrap() error }:
		collectAttrs(wrapped.Unwrap(), out)
	}
}

// annotatedError carries slog attributes alongside an error.
type annotatedError struct {
	err   error
	attrs []slog.Attr
}

func (a *annotatedError) Error() string {
	return a.err.Error()
}

func (a *annotatedError) Unwrap() error {
	return a.err
}

var _ error = (*annotatedError)(nil)

// annotatingHandler lifts the attributes of annotated errors into the record.
type annotatingHandler struct {
	inner slog.Handler
}

var _ slog.Handler = (*annotatingHandler)(nil)

func (h *annotatingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *annotatingHandler) Handle(ctx context.Context, record slog.Record) error {
	var (
		base  []slog.Attr
		extra []slog.Attr
	)

	record.Attrs(func(attr slog.Attr) bool {
		if err, ok := attr.Value.Any().(error); ok {
			var ae *annotatedError
			if errors.As(err, &ae) {
				extra = append(extra, ErrorAttrs(err)...)
			}
		}

		base = append(base, attr)

		return true
	})

	if len(extra) == 0 {
		return h.inner.Handle(ctx, record)
	}

	r := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	r.AddAttrs(base...)
	r.AddAttrs(extra...)

	return h.inner.Handle(ctx, r)
}

func (h *annotatingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &annotatingHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *annotatingHandler) WithGroup(name string) slog.Handler {
	return &annotatingHandler{inner: h.inner.WithGroup(name)}
}
