package buffer

import (
	"context"
	"errors"
	"log/slog"
)

// Option configures a Buffer at construction.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger enables operation tracing: every operation emits a Debug record
// "buffer op" with the implementation, operation name, blocking class and
// either the payload or the failure outcome.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Blocking classes reported in trace records.
const (
	modeBlocking    = "blocking"
	modeNonBlocking = "non-blocking"
	modeTimed       = "timed"
)

type tracer[T any] struct {
	logger *slog.Logger
	impl   string
}

func newTracer[T any](impl string, o options) tracer[T] {
	return tracer[T]{logger: o.logger, impl: impl}
}

func (t tracer[T]) enabled() bool {
	return t.logger != nil && t.logger.Enabled(context.Background(), slog.LevelDebug)
}

func (t tracer[T]) value(op, mode string, v T) {
	if !t.enabled() {
		return
	}
	t.logger.LogAttrs(context.Background(), slog.LevelDebug, "buffer op",
		slog.String("impl", t.impl),
		slog.String("op", op),
		slog.String("mode", mode),
		slog.Any("value", v),
	)
}

func (t tracer[T]) failure(op, mode string, err error) {
	if !t.enabled() {
		return
	}
	t.logger.LogAttrs(context.Background(), slog.LevelDebug, "buffer op",
		slog.String("impl", t.impl),
		slog.String("op", op),
		slog.String("mode", mode),
		slog.String("outcome", outcome(err)),
	)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrWouldBlock):
		return "would-block"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return err.Error()
	}
}
