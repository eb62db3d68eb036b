package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/infra"
	fake "github.com/m-mizutani/octomend/pkg/infra/memory"
	"github.com/m-mizutani/octomend/pkg/repository/memory"
	"github.com/m-mizutani/octomend/pkg/usecase"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

var testNow = time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)

func testContext() context.Context {
	return logging.CtxWithTime(context.Background(), func() time.Time { return testNow })
}

type env struct {
	store *memory.Store
	uc    *usecase.UseCase
}

func newEnv(t *testing.T, fleet *model.FleetConfig, adapters ...interfaces.Adapter) *env {
	t.Helper()
	if fleet == nil {
		fleet = &model.FleetConfig{}
	}
	gt.NoError(t, fleet.Normalize())

	store := memory.New()
	options := []infra.Option{
		infra.WithEntityStore(store),
		infra.WithAuditSink(store),
	}
	for _, a := range adapters {
		options = append(options, infra.WithAdapter(a))
	}

	return &env{
		store: store,
		uc: usecase.New(infra.New(options...),
			usecase.WithFleetConfig(fleet),
			usecase.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		),
	}
}

func (x *env) run(t *testing.T, dryRun bool) *model.RunReport {
	t.Helper()
	return gt.R1(x.uc.RunCycle(testContext(), &model.RunCycleInput{
		Trigger: types.TriggerManual,
		DryRun:  dryRun,
	})).NoError(t)
}

func taskOf(report *model.RunReport, target types.EntityID) *model.RemediationTask {
	for _, task := range report.Tasks {
		if task.TargetEntityID == target {
			return task
		}
	}
	return nil
}

// storeState is everything the entity store holds, for comparing two cycles.
type storeState struct {
	Repositories []*model.Repository
	Branches     []*model.Branch
	PullRequests []*model.PullRequest
	Integrations []*model.IntegrationCapability
	Tasks        []*model.RemediationTask
}

func dumpStore(t *testing.T, store *memory.Store) *storeState {
	t.Helper()
	ctx := testContext()
	state := &storeState{
		Repositories: gt.R1(store.ListRepositories(ctx)).NoError(t),
		Integrations: gt.R1(store.ListIntegrations(ctx)).NoError(t),
		Tasks:        gt.R1(store.ListTasks(ctx)).NoError(t),
	}
	for _, repo := range state.Repositories {
		state.Branches = append(state.Branches, gt.R1(store.ListBranches(ctx, repo.ID)).NoError(t)...)
		state.PullRequests = append(state.PullRequests, gt.R1(store.ListPullRequests(ctx, repo.ID)).NoError(t)...)
	}
	return state
}

// seedRepository adds a repository with a default branch "main".
func seedRepository(a *fake.Adapter, name string, createdAt time.Time) types.EntityID {
	id := a.AddRepository(model.RepositorySnapshot{
		Owner:         "acme",
		Name:          name,
		DefaultBranch: "main",
		CreatedAt:     createdAt,
	})
	a.AddBranch(id, model.BranchSnapshot{Name: "main", HeadSHA: "aaaa", IsDefault: true})
	return id
}
