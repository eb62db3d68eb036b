package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/octomend/pkg/domain/types"
)

type ctxLoggerKey struct{}

// With returns a new context with logger
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

// From returns logger from context. If logger is not set, return default logger
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok {
		return l
	}
	return defaultLogger
}

type ctxRunIDKey struct{}

// CtxWithRunID returns a context carrying the run ID and a logger tagged with it.
func CtxWithRunID(ctx context.Context, runID types.RunID) context.Context {
	ctx = context.WithValue(ctx, ctxRunIDKey{}, runID)
	return With(ctx, From(ctx).With(slog.String("run_id", runID.String())))
}

// CtxRunID returns the run ID of the context, or empty if the context is not
// part of a run.
func CtxRunID(ctx context.Context) types.RunID {
	if id, ok := ctx.Value(ctxRunIDKey{}).(types.RunID); ok {
		return id
	}
	return ""
}

type ctxTimeKey struct{}
type TimeFunc func() time.Time

// CtxTime returns time from context. If time is not set, return current time
func CtxTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ctxTimeKey{}).(TimeFunc); ok {
		return t()
	}
	return time.Now().UTC()
}

// CtxWithTime returns a new context with time function. It is the logical
// clock of every timestamp the orchestrator records.
func CtxWithTime(ctx context.Context, timeFunc TimeFunc) context.Context {
	return context.WithValue(ctx, ctxTimeKey{}, timeFunc)
}

// InheritContextValues copies the logger, run ID and time function from src to
// dst. Used when a background context must outlive the context that started it.
func InheritContextValues(dst, src context.Context) context.Context {
	dst = With(dst, From(src))

	if runID, ok := src.Value(ctxRunIDKey{}).(types.RunID); ok {
		dst = context.WithValue(dst, ctxRunIDKey{}, runID)
	}

	if timeFunc, ok := src.Value(ctxTimeKey{}).(TimeFunc); ok {
		dst = context.WithValue(dst, ctxTimeKey{}, timeFunc)
	}

	return dst
}
