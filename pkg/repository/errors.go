// Package repository holds the backends of the entity store and the audit
// sink. Every backend returns these errors so callers can tell a missing
// entity from a failing store.
package repository

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrNotFound is returned by Get methods when no entity has the key.
	ErrNotFound = goerr.New("entity not found")
	// ErrAlreadyExists is returned by Append for an entry ID that was
	// appended before. Audit entries are never overwritten.
	ErrAlreadyExists = goerr.New("audit entry already exists")
	// ErrInvalidInput is returned for keys the backend cannot store.
	ErrInvalidInput = goerr.New("invalid entity key")
)
