package interfaces

import (
	"context"

	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
)

//go:generate moq -out ../mock/audit_sink.go -pkg mock . AuditSink

// EntityStore keeps the orchestrator's latest-wins view of every entity,
// keyed by EntityID. Entities are never hard-deleted.
type EntityStore interface {
	PutRepository(ctx context.Context, repo *model.Repository) error
	GetRepository(ctx context.Context, id types.EntityID) (*model.Repository, error)
	ListRepositories(ctx context.Context) ([]*model.Repository, error)

	PutBranch(ctx context.Context, branch *model.Branch) error
	GetBranch(ctx context.Context, id types.EntityID) (*model.Branch, error)
	ListBranches(ctx context.Context, repoID types.EntityID) ([]*model.Branch, error)

	PutPullRequest(ctx context.Context, pr *model.PullRequest) error
	GetPullRequest(ctx context.Context, id types.EntityID) (*model.PullRequest, error)
	ListPullRequests(ctx context.Context, repoID types.EntityID) ([]*model.PullRequest, error)

	PutIntegration(ctx context.Context, ig *model.IntegrationCapability) error
	GetIntegration(ctx context.Context, id types.EntityID) (*model.IntegrationCapability, error)
	ListIntegrations(ctx context.Context) ([]*model.IntegrationCapability, error)

	// PutTask stores a task that did not succeed so that the next cycle can
	// re-evaluate it; DeleteTask retires it.
	PutTask(ctx context.Context, task *model.RemediationTask) error
	ListTasks(ctx context.Context) ([]*model.RemediationTask, error)
	DeleteTask(ctx context.Context, target types.EntityID) error

	PutLatestRun(ctx context.Context, run *model.ScheduledRun) error
	GetLatestRun(ctx context.Context) (*model.ScheduledRun, error)
}

// AuditSink is the durable append-only record of every task attempt and cycle.
type AuditSink interface {
	Append(ctx context.Context, entry *model.AuditEntry) error
	ListByRun(ctx context.Context, runID types.RunID) ([]*model.AuditEntry, error)
}
