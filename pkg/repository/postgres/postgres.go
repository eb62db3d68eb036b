package postgres

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/utils/safe"
)

// Store is a PostgreSQL-backed EntityStore and AuditSink. Every entity is one
// JSONB row keyed by (kind, id); audit entries are insert-only rows.
type Store struct {
	db *sql.DB
}

var (
	_ interfaces.EntityStore = (*Store)(nil)
	_ interfaces.AuditSink   = (*Store)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS octomend_entities (
	kind       TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	repo_id    TEXT        NOT NULL DEFAULT '',
	data       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS octomend_entities_repo_idx ON octomend_entities (kind, repo_id);

CREATE TABLE IF NOT EXISTS octomend_audit (
	seq       BIGSERIAL   PRIMARY KEY,
	id        TEXT        NOT NULL UNIQUE,
	run_id    TEXT        NOT NULL,
	data      JSONB       NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS octomend_audit_run_idx ON octomend_audit (run_id, seq);
`

// New opens the database and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		safe.Close(db)
		return nil, goerr.Wrap(err, "failed to connect postgres")
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		safe.Close(db)
		return nil, err
	}
	return store, nil
}

func (x *Store) Close() error {
	return x.db.Close()
}

func (x *Store) migrate(ctx context.Context) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin migration")
	}
	defer safe.Rollback(tx)

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return goerr.Wrap(err, "failed to apply schema")
	}
	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit migration")
	}
	return nil
}
