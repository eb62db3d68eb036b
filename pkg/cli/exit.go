package cli

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/types"
)

const (
	ExitOK          = 0
	ExitTaskFailure = 1
	ExitFatal       = 2
)

var (
	// ErrTasksFailed reports a cycle that completed with failed tasks.
	ErrTasksFailed = goerr.New("some tasks failed")
	// ErrAdapterAuth reports an audit in which an adapter rejected its
	// credentials.
	ErrAdapterAuth = goerr.New("adapter authentication failed")
)

// ExitCode maps an error returned by Run to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrAdapterAuth),
		errors.Is(err, types.ErrConfig),
		errors.Is(err, types.ErrInvalidOption):
		return ExitFatal
	default:
		return ExitTaskFailure
	}
}
