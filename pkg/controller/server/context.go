package server

import (
	"context"

	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

// DetachContext creates a new context.Background() based context that inherits
// logger, run ID, and time function from the original context.
// This is useful when running background goroutines from HTTP request handlers,
// as the original request context will be cancelled when the HTTP request completes.
func DetachContext(ctx context.Context) context.Context {
	return logging.InheritContextValues(context.Background(), ctx)
}
