package logging_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

func TestWith(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	newCtx := logging.With(ctx, logger)
	gt.V(t, logging.From(newCtx)).Equal(logger)
}

func TestFromWithoutLogger(t *testing.T) {
	ctx := context.Background()
	retrieved := logging.From(ctx)
	gt.V(t, retrieved.Handler()).Equal(logging.Default().Handler())
}

func TestCtxRunID(t *testing.T) {
	ctx := context.Background()
	gt.V(t, logging.CtxRunID(ctx)).Equal(types.RunID(""))

	ctx = logging.CtxWithRunID(ctx, "20240101_000000_abcd1234")
	gt.V(t, logging.CtxRunID(ctx)).Equal(types.RunID("20240101_000000_abcd1234"))
}

func TestCtxWithTime(t *testing.T) {
	t.Run("default time is not zero", func(t *testing.T) {
		gt.False(t, logging.CtxTime(context.Background()).IsZero())
	})

	t.Run("custom time function", func(t *testing.T) {
		called := false
		ctx := logging.CtxWithTime(context.Background(), func() time.Time {
			called = true
			return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		})

		tm := logging.CtxTime(ctx)
		gt.True(t, called)
		gt.V(t, tm.Year()).Equal(2024)
	})
}

func TestInheritContextValues(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	src := logging.CtxWithTime(context.Background(), func() time.Time { return fixed })
	src = logging.CtxWithRunID(src, "run-1")

	ctx, cancel := context.WithCancel(src)
	cancel()

	dst := logging.InheritContextValues(context.Background(), ctx)
	gt.NoError(t, dst.Err())
	gt.V(t, logging.CtxRunID(dst)).Equal(types.RunID("run-1"))
	gt.V(t, logging.CtxTime(dst)).Equal(fixed)
}
