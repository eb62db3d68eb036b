package usecase

import (
	"context"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
)

// Plan is the ordered task graph of one cycle. Consolidations run first and
// alone; then every Job runs serially inside itself and in parallel with the
// other jobs.
type Plan struct {
	Consolidations []*model.RemediationTask
	Jobs           []*Job
}

// Job is the serial task list of one repository. Integration tasks form a job
// with an empty RepositoryID.
type Job struct {
	RepositoryID types.EntityID
	Tasks        []*model.RemediationTask
}

// Tasks returns every task of the plan in dispatch order.
func (x *Plan) Tasks() []*model.RemediationTask {
	tasks := slices.Clone(x.Consolidations)
	for _, job := range x.Jobs {
		tasks = append(tasks, job.Tasks...)
	}
	model.SortTasks(tasks)
	return tasks
}

// planner builds tasks from the entity store and never writes to it.
type planner struct {
	targeted map[types.EntityID]struct{}
	tasks    []*model.RemediationTask
}

func (x *planner) add(task *model.RemediationTask) {
	if _, ok := x.targeted[task.TargetEntityID]; ok {
		return
	}
	x.targeted[task.TargetEntityID] = struct{}{}
	x.tasks = append(x.tasks, task)
}

func (x *UseCase) buildPlan(ctx context.Context) (*Plan, error) {
	store := x.clients.EntityStore()
	p := &planner{targeted: make(map[types.EntityID]struct{})}

	allRepos, err := store.ListRepositories(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list repositories")
	}
	var repos []*model.Repository
	for _, repo := range allRepos {
		if !repo.IsTerminal() && x.fleet.IsManaged(repo.ID) {
			repos = append(repos, repo)
		}
	}

	consolidating := make(map[types.EntityID]struct{})
	for _, group := range groupDuplicates(repos, x.duplicatePolicy) {
		for _, member := range group.Members {
			if member.ID == group.Canonical.ID {
				continue
			}
			task := model.NewTask(types.TaskConsolidateDuplicateRepo, member.ID, member.ID)
			task.RelatedEntityID = group.Canonical.ID
			p.add(task)
			consolidating[member.ID] = struct{}{}
		}
	}

	for _, repo := range repos {
		// Entities of a duplicate are carried over to the canonical repository.
		if _, ok := consolidating[repo.ID]; ok {
			continue
		}
		if err := x.planRepository(ctx, p, repo); err != nil {
			return nil, err
		}
	}

	integrations, err := store.ListIntegrations(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list integrations")
	}
	for _, ig := range integrations {
		if ig.IsAdapterRecord() || ig.ActivationState == types.ActivationActive {
			continue
		}
		p.add(model.NewTask(types.TaskActivateIntegration, ig.ID, ""))
	}

	return newPlan(p.tasks), nil
}

func (x *UseCase) planRepository(ctx context.Context, p *planner, repo *model.Repository) error {
	store := x.clients.EntityStore()

	prs, err := store.ListPullRequests(ctx, repo.ID)
	if err != nil {
		return goerr.Wrap(err, "failed to list pull requests", goerr.V("repoID", repo.ID))
	}
	branches, err := store.ListBranches(ctx, repo.ID)
	if err != nil {
		return goerr.Wrap(err, "failed to list branches", goerr.V("repoID", repo.ID))
	}

	for _, pr := range prs {
		if !pr.IsTerminal() {
			p.add(model.NewTask(types.TaskMergeOrClosePR, pr.ID, repo.ID))
		}
	}

	for _, branch := range branches {
		if isStaleBranch(repo, branch, prs) {
			p.add(model.NewTask(types.TaskDeleteStaleBranch, branch.ID, repo.ID))
		}
	}
	return nil
}

// isStaleBranch reports whether branch can be deleted: it is active, not the
// default branch, not the target of an open pull request, not the source of a
// non-terminal one, and its work is merged or its pull request is terminal.
func isStaleBranch(repo *model.Repository, branch *model.Branch, prs []*model.PullRequest) bool {
	if branch.IsTerminal() || branch.IsDefault || branch.Name == repo.DefaultBranch {
		return false
	}

	resolvedByPR := false
	for _, pr := range prs {
		if pr.IsTerminal() {
			if pr.SourceBranch == branch.Name {
				resolvedByPR = true
			}
			continue
		}
		if pr.TargetBranch == branch.Name || pr.SourceBranch == branch.Name {
			return false
		}
	}

	return !branch.HasUnmergedWork || resolvedByPR
}

func newPlan(tasks []*model.RemediationTask) *Plan {
	model.SortTasks(tasks)

	plan := &Plan{}
	jobs := make(map[types.EntityID]*Job)
	for _, task := range tasks {
		if task.Kind == types.TaskConsolidateDuplicateRepo {
			plan.Consolidations = append(plan.Consolidations, task)
			continue
		}
		job, ok := jobs[task.RepositoryID]
		if !ok {
			job = &Job{RepositoryID: task.RepositoryID}
			jobs[task.RepositoryID] = job
			plan.Jobs = append(plan.Jobs, job)
		}
		job.Tasks = append(job.Tasks, task)
	}

	slices.SortFunc(plan.Jobs, func(a, b *Job) int {
		return strings.Compare(string(a.RepositoryID), string(b.RepositoryID))
	})
	return plan
}
