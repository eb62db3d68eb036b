package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/repository"
	"github.com/m-mizutani/octomend/pkg/utils/safe"
)

const (
	kindRepository  = "repository"
	kindBranch      = "branch"
	kindPullRequest = "pull_request"
	kindIntegration = "integration"
	kindTask        = "task"
	kindRun         = "run"

	latestRunID = "run:latest"
)

func (x *Store) put(ctx context.Context, kind string, id, repoID types.EntityID, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal entity", goerr.V("kind", kind), goerr.V("id", id))
	}

	const q = `INSERT INTO octomend_entities (kind, id, repo_id, data, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (kind, id) DO UPDATE SET repo_id = excluded.repo_id, data = excluded.data, updated_at = excluded.updated_at`
	if _, err := x.db.ExecContext(ctx, q, kind, string(id), string(repoID), raw); err != nil {
		return goerr.Wrap(err, "failed to put entity", goerr.V("kind", kind), goerr.V("id", id))
	}
	return nil
}

func get[T any](ctx context.Context, db *sql.DB, kind string, id types.EntityID) (*T, error) {
	var raw []byte
	err := db.QueryRowContext(ctx, `SELECT data FROM octomend_entities WHERE kind = $1 AND id = $2`, kind, string(id)).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(repository.ErrNotFound, "entity not found", goerr.V("kind", kind), goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get entity", goerr.V("kind", kind), goerr.V("id", id))
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal entity", goerr.V("kind", kind), goerr.V("id", id))
	}
	return &v, nil
}

func list[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query entities", goerr.V("args", args))
	}
	defer safe.Close(rows)

	var out []*T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, goerr.Wrap(err, "failed to scan entity")
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal entity")
		}
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate entities")
	}
	return out, nil
}

const (
	listByKind = `SELECT data FROM octomend_entities WHERE kind = $1 ORDER BY id`
	listByRepo = `SELECT data FROM octomend_entities WHERE kind = $1 AND repo_id = $2 ORDER BY id`
)

// Repository operations

func (x *Store) PutRepository(ctx context.Context, repo *model.Repository) error {
	return x.put(ctx, kindRepository, repo.ID, repo.ID, repo)
}

func (x *Store) GetRepository(ctx context.Context, id types.EntityID) (*model.Repository, error) {
	return get[model.Repository](ctx, x.db, kindRepository, id)
}

func (x *Store) ListRepositories(ctx context.Context) ([]*model.Repository, error) {
	return list[model.Repository](ctx, x.db, listByKind, kindRepository)
}

// Branch operations

func (x *Store) PutBranch(ctx context.Context, branch *model.Branch) error {
	return x.put(ctx, kindBranch, branch.ID, branch.RepositoryID, branch)
}

func (x *Store) GetBranch(ctx context.Context, id types.EntityID) (*model.Branch, error) {
	return get[model.Branch](ctx, x.db, kindBranch, id)
}

func (x *Store) ListBranches(ctx context.Context, repoID types.EntityID) ([]*model.Branch, error) {
	return list[model.Branch](ctx, x.db, listByRepo, kindBranch, string(repoID))
}

// Pull request operations

func (x *Store) PutPullRequest(ctx context.Context, pr *model.PullRequest) error {
	return x.put(ctx, kindPullRequest, pr.ID, pr.RepositoryID, pr)
}

func (x *Store) GetPullRequest(ctx context.Context, id types.EntityID) (*model.PullRequest, error) {
	return get[model.PullRequest](ctx, x.db, kindPullRequest, id)
}

func (x *Store) ListPullRequests(ctx context.Context, repoID types.EntityID) ([]*model.PullRequest, error) {
	return list[model.PullRequest](ctx, x.db, listByRepo, kindPullRequest, string(repoID))
}

// Integration operations

func (x *Store) PutIntegration(ctx context.Context, ig *model.IntegrationCapability) error {
	return x.put(ctx, kindIntegration, ig.ID, "", ig)
}

func (x *Store) GetIntegration(ctx context.Context, id types.EntityID) (*model.IntegrationCapability, error) {
	return get[model.IntegrationCapability](ctx, x.db, kindIntegration, id)
}

func (x *Store) ListIntegrations(ctx context.Context) ([]*model.IntegrationCapability, error) {
	return list[model.IntegrationCapability](ctx, x.db, listByKind, kindIntegration)
}

// Task operations

func (x *Store) PutTask(ctx context.Context, task *model.RemediationTask) error {
	return x.put(ctx, kindTask, task.TargetEntityID, task.RepositoryID, task)
}

func (x *Store) ListTasks(ctx context.Context) ([]*model.RemediationTask, error) {
	tasks, err := list[model.RemediationTask](ctx, x.db, listByKind, kindTask)
	if err != nil {
		return nil, err
	}
	model.SortTasks(tasks)
	return tasks, nil
}

func (x *Store) DeleteTask(ctx context.Context, target types.EntityID) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM octomend_entities WHERE kind = $1 AND id = $2`, kindTask, string(target)); err != nil {
		return goerr.Wrap(err, "failed to delete task", goerr.V("target", target))
	}
	return nil
}

// Run operations

func (x *Store) PutLatestRun(ctx context.Context, run *model.ScheduledRun) error {
	return x.put(ctx, kindRun, latestRunID, "", run)
}

// GetLatestRun returns nil without error when no run has been saved yet.
func (x *Store) GetLatestRun(ctx context.Context) (*model.ScheduledRun, error) {
	run, err := get[model.ScheduledRun](ctx, x.db, kindRun, latestRunID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return run, err
}
