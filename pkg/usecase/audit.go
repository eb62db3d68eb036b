package usecase

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

// Audit discovers the fleet and reports its health together with the tasks a
// cycle would plan. It never calls a mutating adapter capability.
func (x *UseCase) Audit(ctx context.Context) (*model.AuditReport, error) {
	if err := x.validate(); err != nil {
		return nil, err
	}

	now := logging.CtxTime(ctx)
	run := model.NewScheduledRun(types.TriggerManual, now, true)
	ctx = logging.CtxWithRunID(ctx, run.ID)
	c := x.newCycle(run)

	if err := x.discover(ctx, c); err != nil {
		return nil, err
	}
	plan, err := x.buildPlan(ctx)
	if err != nil {
		return nil, err
	}

	report := &model.AuditReport{
		GeneratedAt:     now,
		PlannedTasks:    plan.Tasks(),
		AuthFailures:    run.AuthFailures,
		DiscoveryErrors: run.DiscoveryErrors,
	}

	duplicateOf := make(map[types.EntityID]types.EntityID)
	canonical := make(map[types.EntityID]bool)
	for _, task := range plan.Consolidations {
		duplicateOf[task.TargetEntityID] = task.RelatedEntityID
		canonical[task.RelatedEntityID] = true
	}

	store := x.clients.EntityStore()
	repos, err := store.ListRepositories(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list repositories")
	}
	for _, repo := range repos {
		if !x.fleet.IsManaged(repo.ID) {
			continue
		}
		health, err := x.repositoryHealth(ctx, repo)
		if err != nil {
			return nil, err
		}
		if dup, ok := duplicateOf[repo.ID]; ok {
			health.DuplicateOf = dup
		}
		health.Canonical = health.Canonical || canonical[repo.ID]
		report.Repositories = append(report.Repositories, *health)
	}

	if report.Integrations, err = store.ListIntegrations(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to list integrations")
	}

	logging.From(ctx).Info("audit completed",
		slog.Int("repositories", len(report.Repositories)),
		slog.Int("planned_tasks", len(report.PlannedTasks)),
		slog.Int("discovery_errors", len(report.DiscoveryErrors)),
	)
	return report, nil
}

func (x *UseCase) repositoryHealth(ctx context.Context, repo *model.Repository) (*model.RepositoryHealth, error) {
	store := x.clients.EntityStore()

	prs, err := store.ListPullRequests(ctx, repo.ID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list pull requests", goerr.V("repoID", repo.ID))
	}
	branches, err := store.ListBranches(ctx, repo.ID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list branches", goerr.V("repoID", repo.ID))
	}

	health := &model.RepositoryHealth{
		ID:          repo.ID,
		Name:        repo.FullName(),
		State:       repo.State,
		Canonical:   repo.Canonical,
		DuplicateOf: repo.IsDuplicateOf,
	}
	for _, pr := range prs {
		if !pr.IsTerminal() {
			health.OpenPullRequests++
		}
	}
	for _, b := range branches {
		if b.IsTerminal() {
			continue
		}
		if b.HasUnmergedWork {
			health.BranchesWithUnmergedWork++
		}
		if !repo.IsTerminal() && isStaleBranch(repo, b, prs) {
			health.StaleBranches++
		}
	}
	return health, nil
}
