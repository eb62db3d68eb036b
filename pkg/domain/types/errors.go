package types

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidOption     = goerr.New("invalid option")
	ErrValidationFailed  = goerr.New("validation failed")
	ErrInvalidGitHubData = goerr.New("invalid GitHub data")

	// Adapter error taxonomy. Adapters wrap one of these so that the reconciler
	// can turn any failure into a task outcome.
	ErrTransientNetwork = goerr.New("transient network error")
	ErrAuth             = goerr.New("authentication error")
	ErrConflict         = goerr.New("conflict")
	ErrConfig           = goerr.New("configuration error")
	ErrNotFound         = goerr.New("not found")
	ErrUnsupported      = goerr.New("capability not supported by adapter")
)

// ErrorClass is the taxonomy bucket of an error, recorded in audit entries.
type ErrorClass string

const (
	ErrorClassNone        ErrorClass = ""
	ErrorClassTransient   ErrorClass = "transient"
	ErrorClassAuth        ErrorClass = "auth"
	ErrorClassConflict    ErrorClass = "conflict"
	ErrorClassConfig      ErrorClass = "config"
	ErrorClassNotFound    ErrorClass = "not_found"
	ErrorClassUnsupported ErrorClass = "unsupported"
	ErrorClassUnknown     ErrorClass = "unknown"
)

// Classify maps err onto the adapter error taxonomy. Errors that match no
// sentinel are unknown and treated like transient ones by the reconciler's
// callers only when they say so explicitly.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ErrorClassNone
	case errors.Is(err, ErrAuth):
		return ErrorClassAuth
	case errors.Is(err, ErrConfig), errors.Is(err, ErrInvalidOption):
		return ErrorClassConfig
	case errors.Is(err, ErrConflict):
		return ErrorClassConflict
	case errors.Is(err, ErrNotFound):
		return ErrorClassNotFound
	case errors.Is(err, ErrUnsupported):
		return ErrorClassUnsupported
	case errors.Is(err, ErrTransientNetwork):
		return ErrorClassTransient
	default:
		return ErrorClassUnknown
	}
}
