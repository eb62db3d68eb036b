package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/lib/pq"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/repository"
)

const pqUniqueViolation = "23505"

func (x *Store) Append(ctx context.Context, entry *model.AuditEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal audit entry", goerr.V("id", entry.ID))
	}

	const q = `INSERT INTO octomend_audit (id, run_id, data, timestamp) VALUES ($1, $2, $3, $4)`
	if _, err := x.db.ExecContext(ctx, q, entry.ID.String(), entry.RunID.String(), raw, entry.Timestamp); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return goerr.Wrap(repository.ErrAlreadyExists, "audit entry appended twice", goerr.V("id", entry.ID))
		}
		return goerr.Wrap(err, "failed to append audit entry",
			goerr.V("id", entry.ID),
			goerr.V("runID", entry.RunID),
		)
	}
	return nil
}

// ListByRun returns the entries of runID in append order.
func (x *Store) ListByRun(ctx context.Context, runID types.RunID) ([]*model.AuditEntry, error) {
	return list[model.AuditEntry](ctx, x.db, `SELECT data FROM octomend_audit WHERE run_id = $1 ORDER BY seq`, runID.String())
}
