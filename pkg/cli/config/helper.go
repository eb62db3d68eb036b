package config

import (
	"context"

	"github.com/m-mizutani/octomend/pkg/utils/errutil"
)

func closer(ctx context.Context, f func() error) func() {
	return func() {
		if err := f(); err != nil {
			errutil.HandleError(ctx, "failed to close client", err)
		}
	}
}
