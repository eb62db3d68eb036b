package memory

import (
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
)

// Store is an in-memory EntityStore and AuditSink. It is used by tests and by
// one-shot CLI runs that do not configure a persistent store.
type Store struct {
	*entityStore
	*auditSink
}

var (
	_ interfaces.EntityStore = (*Store)(nil)
	_ interfaces.AuditSink   = (*Store)(nil)
)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		entityStore: &entityStore{
			repos:        make(map[types.EntityID]*model.Repository),
			branches:     make(map[types.EntityID]*model.Branch),
			pullRequests: make(map[types.EntityID]*model.PullRequest),
			integrations: make(map[types.EntityID]*model.IntegrationCapability),
			tasks:        make(map[types.EntityID]*model.RemediationTask),
		},
		auditSink: &auditSink{},
	}
}
