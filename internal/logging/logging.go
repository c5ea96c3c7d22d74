// Package logging wraps zerolog with the small context plumbing the rest
// of the engine uses to get a request-scoped logger.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// New builds a zerolog.Logger writing to w (os.Stderr in production,
// a buffer in tests) at the given level.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// WithContext attaches logger to ctx so FromContext can retrieve it
// downstream without threading it through every call signature.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger attached by WithContext, or a new
// timestamped logger writing to os.Stderr if none was attached.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
