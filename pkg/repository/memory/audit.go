package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/repository"
)

type auditSink struct {
	mu      sync.RWMutex
	entries []*model.AuditEntry
	ids     map[types.AuditID]struct{}
}

func (s *auditSink) Append(ctx context.Context, entry *model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[entry.ID]; ok {
		return goerr.Wrap(repository.ErrAlreadyExists, "audit entry appended twice", goerr.V("id", entry.ID))
	}
	if s.ids == nil {
		s.ids = make(map[types.AuditID]struct{})
	}
	s.ids[entry.ID] = struct{}{}

	c := *entry
	s.entries = append(s.entries, &c)
	return nil
}

// ListByRun returns the entries of runID in append order.
func (s *auditSink) ListByRun(ctx context.Context, runID types.RunID) ([]*model.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.AuditEntry
	for _, entry := range s.entries {
		if entry.RunID == runID {
			c := *entry
			out = append(out, &c)
		}
	}
	return out, nil
}

// Entries returns every entry in append order.
func (s *auditSink) Entries() []*model.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.AuditEntry, len(s.entries))
	for i, entry := range s.entries {
		c := *entry
		out[i] = &c
	}
	return out
}
