package errutil

import (
	"context"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

// HandleError reports err to Sentry and logs it. Values attached by goerr are
// sent as extras, and the run ID and error class become tags.
func HandleError(ctx context.Context, msg string, err error) {
	if err == nil {
		return
	}

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		if goErr := goerr.Unwrap(err); goErr != nil {
			for k, v := range goErr.Values() {
				scope.SetExtra(fmt.Sprintf("%v", k), v)
			}
		}
		if runID := logging.CtxRunID(ctx); runID != "" {
			scope.SetTag("run_id", runID.String())
		}
		scope.SetTag("error_class", string(types.Classify(err)))
	})
	evID := hub.CaptureException(err)

	logging.From(ctx).Error(msg,
		"error", err,
		"error_class", types.Classify(err),
		"sentry.EventID", evID,
	)
}
