package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/repository"
)

type entityStore struct {
	mu           sync.RWMutex
	repos        map[types.EntityID]*model.Repository
	branches     map[types.EntityID]*model.Branch
	pullRequests map[types.EntityID]*model.PullRequest
	integrations map[types.EntityID]*model.IntegrationCapability
	tasks        map[types.EntityID]*model.RemediationTask
	latestRun    *model.ScheduledRun
}

func byID[T any](id func(T) types.EntityID) func(a, b T) int {
	return func(a, b T) int { return strings.Compare(string(id(a)), string(id(b))) }
}

// Repository operations

func (r *entityStore) PutRepository(ctx context.Context, repo *model.Repository) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repos[repo.ID] = repo.Copy()
	return nil
}

func (r *entityStore) GetRepository(ctx context.Context, id types.EntityID) (*model.Repository, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	repo, ok := r.repos[id]
	if !ok {
		return nil, goerr.Wrap(repository.ErrNotFound, "repository not found", goerr.V("id", id))
	}
	return repo.Copy(), nil
}

func (r *entityStore) ListRepositories(ctx context.Context) ([]*model.Repository, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	repos := make([]*model.Repository, 0, len(r.repos))
	for _, repo := range r.repos {
		repos = append(repos, repo.Copy())
	}
	slices.SortFunc(repos, byID(func(x *model.Repository) types.EntityID { return x.ID }))
	return repos, nil
}

// Branch operations

func (r *entityStore) PutBranch(ctx context.Context, branch *model.Branch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branches[branch.ID] = branch.Copy()
	return nil
}

func (r *entityStore) GetBranch(ctx context.Context, id types.EntityID) (*model.Branch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	branch, ok := r.branches[id]
	if !ok {
		return nil, goerr.Wrap(repository.ErrNotFound, "branch not found", goerr.V("id", id))
	}
	return branch.Copy(), nil
}

func (r *entityStore) ListBranches(ctx context.Context, repoID types.EntityID) ([]*model.Branch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var branches []*model.Branch
	for _, branch := range r.branches {
		if branch.RepositoryID == repoID {
			branches = append(branches, branch.Copy())
		}
	}
	slices.SortFunc(branches, byID(func(x *model.Branch) types.EntityID { return x.ID }))
	return branches, nil
}

// Pull request operations

func (r *entityStore) PutPullRequest(ctx context.Context, pr *model.PullRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pullRequests[pr.ID] = pr.Copy()
	return nil
}

func (r *entityStore) GetPullRequest(ctx context.Context, id types.EntityID) (*model.PullRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pr, ok := r.pullRequests[id]
	if !ok {
		return nil, goerr.Wrap(repository.ErrNotFound, "pull request not found", goerr.V("id", id))
	}
	return pr.Copy(), nil
}

func (r *entityStore) ListPullRequests(ctx context.Context, repoID types.EntityID) ([]*model.PullRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var prs []*model.PullRequest
	for _, pr := range r.pullRequests {
		if pr.RepositoryID == repoID {
			prs = append(prs, pr.Copy())
		}
	}
	slices.SortFunc(prs, byID(func(x *model.PullRequest) types.EntityID { return x.ID }))
	return prs, nil
}

// Integration operations

func (r *entityStore) PutIntegration(ctx context.Context, ig *model.IntegrationCapability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.integrations[ig.ID] = ig.Copy()
	return nil
}

func (r *entityStore) GetIntegration(ctx context.Context, id types.EntityID) (*model.IntegrationCapability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ig, ok := r.integrations[id]
	if !ok {
		return nil, goerr.Wrap(repository.ErrNotFound, "integration not found", goerr.V("id", id))
	}
	return ig.Copy(), nil
}

func (r *entityStore) ListIntegrations(ctx context.Context) ([]*model.IntegrationCapability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	igs := make([]*model.IntegrationCapability, 0, len(r.integrations))
	for _, ig := range r.integrations {
		igs = append(igs, ig.Copy())
	}
	slices.SortFunc(igs, byID(func(x *model.IntegrationCapability) types.EntityID { return x.ID }))
	return igs, nil
}

// Task operations

func (r *entityStore) PutTask(ctx context.Context, task *model.RemediationTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.TargetEntityID] = task.Copy()
	return nil
}

func (r *entityStore) ListTasks(ctx context.Context) ([]*model.RemediationTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]*model.RemediationTask, 0, len(r.tasks))
	for _, task := range r.tasks {
		tasks = append(tasks, task.Copy())
	}
	model.SortTasks(tasks)
	return tasks, nil
}

func (r *entityStore) DeleteTask(ctx context.Context, target types.EntityID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, target)
	return nil
}

// Run operations

func (r *entityStore) PutLatestRun(ctx context.Context, run *model.ScheduledRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latestRun = run.Copy()
	return nil
}

// GetLatestRun returns nil without error when no run has been saved yet.
func (r *entityStore) GetLatestRun(ctx context.Context) (*model.ScheduledRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latestRun.Copy(), nil
}
