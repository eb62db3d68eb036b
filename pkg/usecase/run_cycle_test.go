package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	fake "github.com/m-mizutani/octomend/pkg/infra/memory"
)

// fleetScenario has three repositories: service and its copy, and webapp with
// a partial pull request and a stale branch whose pull request was merged.
type fleetScenario struct {
	adapter   *fake.Adapter
	service   types.EntityID
	copy      types.EntityID
	webapp    types.EntityID
	partialPR types.EntityID
	mergedPR  types.EntityID
	stale     types.EntityID
	feature   types.EntityID
}

func newFleetScenario() *fleetScenario {
	a := fake.NewAdapter(types.ProviderGitHub)
	s := &fleetScenario{adapter: a}

	s.service = seedRepository(a, "service", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	s.copy = seedRepository(a, "service-copy", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
	s.webapp = seedRepository(a, "webapp", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))

	s.feature = a.AddBranch(s.webapp, model.BranchSnapshot{Name: "feature-x", HeadSHA: "bbbb", HasUnmergedWork: true})
	s.partialPR = a.AddPullRequest(s.webapp, model.PullRequestSnapshot{
		Number:          1,
		SourceBranch:    "feature-x",
		TargetBranch:    "main",
		Open:            true,
		Mergeable:       true,
		UnresolvedNotes: []string{"test X failing"},
	})

	s.stale = a.AddBranch(s.webapp, model.BranchSnapshot{Name: "old-feature", HeadSHA: "cccc"})
	s.mergedPR = a.AddPullRequest(s.webapp, model.PullRequestSnapshot{
		Number:       2,
		SourceBranch: "old-feature",
		TargetBranch: "main",
		Merged:       true,
	})
	return s
}

func TestRunCycleEndToEnd(t *testing.T) {
	s := newFleetScenario()
	e := newEnv(t, nil, s.adapter)
	ctx := testContext()

	report := e.run(t, false)

	gt.V(t, report.Run.TasksAttempted).Equal(3)
	gt.V(t, report.Run.TasksSucceeded).Equal(3)
	gt.V(t, report.Run.TasksFailed).Equal(0)
	gt.False(t, report.Run.IsCurrentlyRunning)
	gt.True(t, report.Run.CompletedAt != nil)

	dup := gt.R1(e.store.GetRepository(ctx, s.copy)).NoError(t)
	gt.V(t, dup.State).Equal(types.RepositoryConsolidated)
	gt.V(t, dup.IsDuplicateOf).Equal(s.service)
	canonical := gt.R1(e.store.GetRepository(ctx, s.service)).NoError(t)
	gt.True(t, canonical.Canonical)
	gt.V(t, canonical.State).Equal(types.RepositoryActive)

	pr := gt.R1(e.store.GetPullRequest(ctx, s.partialPR)).NoError(t)
	gt.V(t, pr.State).Equal(types.PRMerged)
	gt.V(t, pr.GapNotes).Equal([]string{"test X failing"})

	branch := gt.R1(e.store.GetBranch(ctx, s.stale)).NoError(t)
	gt.V(t, branch.State).Equal(types.BranchDeleted)
	_, exists := s.adapter.Branch(s.stale)
	gt.False(t, exists)

	mutations := s.adapter.Mutations()
	gt.A(t, mutations).Length(2)
	gt.V(t, mutations[0].Op).Equal(fake.OpMerge)
	gt.True(t, mutations[0].Opts.Selective)
	gt.V(t, mutations[1].Op).Equal(fake.OpDelete)

	// every attempt and the summary are in the audit sink
	entries := gt.R1(e.store.ListByRun(ctx, report.Run.ID)).NoError(t)
	var attempts, summaries int
	for _, entry := range entries {
		switch entry.Kind {
		case model.AuditTaskAttempt:
			attempts++
		case model.AuditRunSummary:
			summaries++
		}
	}
	gt.V(t, attempts).Equal(3)
	gt.V(t, summaries).Equal(1)

	latest := gt.R1(e.store.GetLatestRun(ctx)).NoError(t)
	gt.V(t, latest.ID).Equal(report.Run.ID)
}

func TestRunCycleIdempotent(t *testing.T) {
	s := newFleetScenario()
	e := newEnv(t, nil, s.adapter)

	// Run until the fleet converges. The merge of feature-x makes that branch
	// stale, so the second cycle still has work to do.
	var before, after *storeState
	converged := false
	for i := 0; i < 5; i++ {
		n := len(s.adapter.Mutations())
		before = dumpStore(t, e.store)
		e.run(t, false)
		after = dumpStore(t, e.store)
		if len(s.adapter.Mutations()) == n {
			converged = true
			break
		}
	}
	gt.True(t, converged)
	gt.V(t, after).Equal(before)

	feature := gt.R1(e.store.GetBranch(testContext(), s.feature)).NoError(t)
	gt.V(t, feature.State).Equal(types.BranchDeleted)

	// and once more, nothing changes
	n := len(s.adapter.Mutations())
	report := e.run(t, false)
	gt.V(t, len(s.adapter.Mutations())).Equal(n)
	gt.V(t, report.Run.TasksFailed).Equal(0)
	gt.V(t, dumpStore(t, e.store)).Equal(after)
}

func TestRunCycleDryRun(t *testing.T) {
	s := newFleetScenario()
	ig := s.adapter.AddIntegration("scanner", model.IntegrationSnapshot{Name: "scanner", Kind: types.IntegrationCLITool})
	e := newEnv(t, nil, s.adapter)
	ctx := testContext()

	report := e.run(t, true)
	gt.A(t, s.adapter.Mutations()).Length(0)
	gt.True(t, report.Run.DryRun)
	gt.V(t, report.Run.TasksAttempted).Equal(4)
	gt.V(t, report.Run.TasksSkipped).Equal(4)
	for _, task := range report.Tasks {
		gt.V(t, task.Status).Equal(types.TaskSkipped)
	}

	// task targets are untouched
	gt.V(t, gt.R1(e.store.GetRepository(ctx, s.copy)).NoError(t).State).Equal(types.RepositoryActive)
	gt.V(t, gt.R1(e.store.GetPullRequest(ctx, s.partialPR)).NoError(t).State).Equal(types.PRDiscovered)
	gt.V(t, gt.R1(e.store.GetBranch(ctx, s.stale)).NoError(t).State).Equal(types.BranchActive)
	gt.V(t, gt.R1(e.store.GetIntegration(ctx, ig)).NoError(t).ActivationState).Equal(types.ActivationInactive)

	// the same plan is applied afterwards
	report = e.run(t, false)
	gt.V(t, report.Run.TasksSucceeded).Equal(4)
}

func TestRunCycleFailureIsolation(t *testing.T) {
	gh := fake.NewAdapter(types.ProviderGitHub)
	ghRepo := seedRepository(gh, "api", time.Time{})
	gh.AddBranch(ghRepo, model.BranchSnapshot{Name: "topic", HeadSHA: "1111", HasUnmergedWork: true})
	ghPR := gh.AddPullRequest(ghRepo, model.PullRequestSnapshot{
		Number: 7, SourceBranch: "topic", TargetBranch: "main", Open: true, Mergeable: true,
	})
	ghStale := gh.AddBranch(ghRepo, model.BranchSnapshot{Name: "done", HeadSHA: "2222"})
	gh.SetError(fake.OpMerge, "", goerr.Wrap(types.ErrAuth, "token revoked"), 0)

	local := fake.NewAdapter(types.ProviderLocalGit)
	localRepo := seedRepository(local, "tools", time.Time{})
	localStale := local.AddBranch(localRepo, model.BranchSnapshot{Name: "merged-work", HeadSHA: "3333"})

	e := newEnv(t, nil, gh, local)
	ctx := testContext()
	report := e.run(t, false)

	gt.V(t, report.Run.AuthFailures).Equal([]types.ProviderTag{types.ProviderGitHub})
	gt.V(t, report.Run.TasksAttempted).Equal(3)
	gt.V(t, report.Run.TasksFailed).Equal(1)
	gt.V(t, report.Run.TasksSkipped).Equal(1)
	gt.V(t, report.Run.TasksSucceeded).Equal(1)

	gt.V(t, taskOf(report, ghPR).ErrorClass).Equal(types.ErrorClassAuth)
	gt.V(t, taskOf(report, ghStale).Reason).Equal("adapter unavailable")
	gt.V(t, taskOf(report, localStale).Status).Equal(types.TaskSucceeded)

	record := gt.R1(e.store.GetIntegration(ctx, model.AdapterCapabilityID(types.ProviderGitHub))).NoError(t)
	gt.V(t, record.ActivationState).Equal(types.ActivationFailed)

	// the failed merge is kept for the next cycle
	pending := gt.R1(e.store.ListTasks(ctx)).NoError(t)
	gt.A(t, pending).Length(1)
	gt.V(t, pending[0].TargetEntityID).Equal(ghPR)
	gt.V(t, pending[0].Status).Equal(types.TaskPending)
}

func TestRunCycleDiscoveryFailure(t *testing.T) {
	broken := fake.NewAdapter(types.ProviderGCS)
	broken.SetError(fake.OpList, "", goerr.Wrap(types.ErrTransientNetwork, "connection reset"), 0)

	local := fake.NewAdapter(types.ProviderLocalGit)
	repo := seedRepository(local, "tools", time.Time{})
	stale := local.AddBranch(repo, model.BranchSnapshot{Name: "merged-work", HeadSHA: "3333"})

	e := newEnv(t, nil, broken, local)
	report := e.run(t, false)

	gt.V(t, report.Run.FatalError).Equal("")
	gt.True(t, len(report.Run.DiscoveryErrors) > 0)
	gt.V(t, taskOf(report, stale).Status).Equal(types.TaskSucceeded)

	record := gt.R1(e.store.GetIntegration(testContext(), model.AdapterCapabilityID(types.ProviderGCS))).NoError(t)
	gt.V(t, record.ActivationState).Equal(types.ActivationFailed)
}

func TestRunCycleTransientRetry(t *testing.T) {
	t.Run("succeeds within max attempts", func(t *testing.T) {
		a := fake.NewAdapter(types.ProviderGitHub)
		repo := seedRepository(a, "api", time.Time{})
		a.AddBranch(repo, model.BranchSnapshot{Name: "topic", HeadSHA: "1111", HasUnmergedWork: true})
		pr := a.AddPullRequest(repo, model.PullRequestSnapshot{
			Number: 3, SourceBranch: "topic", TargetBranch: "main", Open: true, Mergeable: true,
		})
		a.SetError(fake.OpMerge, pr, goerr.Wrap(types.ErrTransientNetwork, "502 bad gateway"), 2)

		e := newEnv(t, &model.FleetConfig{MaxAttempts: 3}, a)
		report := e.run(t, false)

		task := taskOf(report, pr)
		gt.V(t, task.Status).Equal(types.TaskSucceeded)
		gt.V(t, task.Attempts).Equal(3)
		gt.A(t, a.Mutations()).Length(1)

		entries := gt.R1(e.store.ListByRun(testContext(), report.Run.ID)).NoError(t)
		var attempts int
		for _, entry := range entries {
			if entry.Kind == model.AuditTaskAttempt && entry.Target == pr {
				attempts++
			}
		}
		gt.V(t, attempts).Equal(3)
	})

	t.Run("partial pull request keeps its gap notes across attempts", func(t *testing.T) {
		a := fake.NewAdapter(types.ProviderGitHub)
		repo := seedRepository(a, "api", time.Time{})
		a.AddBranch(repo, model.BranchSnapshot{Name: "topic", HeadSHA: "1111", HasUnmergedWork: true})
		pr := a.AddPullRequest(repo, model.PullRequestSnapshot{
			Number: 4, SourceBranch: "topic", TargetBranch: "main", Open: true, Mergeable: true,
			UnresolvedNotes: []string{"test X failing", "lint Y"},
		})
		a.SetError(fake.OpMerge, pr, goerr.Wrap(types.ErrTransientNetwork, "502 bad gateway"), 1)

		e := newEnv(t, &model.FleetConfig{MaxAttempts: 3}, a)
		report := e.run(t, false)

		task := taskOf(report, pr)
		gt.V(t, task.Status).Equal(types.TaskSucceeded)
		gt.V(t, task.Attempts).Equal(2)
		gt.V(t, task.GapNotes).Equal([]string{"test X failing", "lint Y"})
		gt.V(t, report.Run.GapNotes).Equal([]model.GapNote{
			{Target: pr, Note: "test X failing"},
			{Target: pr, Note: "lint Y"},
		})

		stored := gt.R1(e.store.GetPullRequest(testContext(), pr)).NoError(t)
		gt.V(t, stored.GapNotes).Equal([]string{"test X failing", "lint Y"})
	})

	t.Run("partial pull request merged in a later cycle reports its gap notes", func(t *testing.T) {
		a := fake.NewAdapter(types.ProviderGitHub)
		repo := seedRepository(a, "api", time.Time{})
		a.AddBranch(repo, model.BranchSnapshot{Name: "topic", HeadSHA: "1111", HasUnmergedWork: true})
		pr := a.AddPullRequest(repo, model.PullRequestSnapshot{
			Number: 5, SourceBranch: "topic", TargetBranch: "main", Open: true, Mergeable: true,
			UnresolvedNotes: []string{"docs not updated"},
		})
		a.SetError(fake.OpMerge, pr, goerr.Wrap(types.ErrTransientNetwork, "502 bad gateway"), 0)

		e := newEnv(t, &model.FleetConfig{MaxAttempts: 1}, a)
		gt.V(t, taskOf(e.run(t, false), pr).Status).Equal(types.TaskFailed)

		a.ClearErrors()
		report := e.run(t, false)
		task := taskOf(report, pr)
		gt.V(t, task.Status).Equal(types.TaskSucceeded)
		gt.V(t, report.Run.GapNotes).Equal([]model.GapNote{{Target: pr, Note: "docs not updated"}})
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		a := fake.NewAdapter(types.ProviderGitHub)
		repo := seedRepository(a, "api", time.Time{})
		a.AddBranch(repo, model.BranchSnapshot{Name: "topic", HeadSHA: "1111", HasUnmergedWork: true})
		pr := a.AddPullRequest(repo, model.PullRequestSnapshot{
			Number: 3, SourceBranch: "topic", TargetBranch: "main", Open: true, Mergeable: true,
		})
		a.SetError(fake.OpMerge, pr, goerr.Wrap(types.ErrTransientNetwork, "502 bad gateway"), 0)

		e := newEnv(t, &model.FleetConfig{MaxAttempts: 2}, a)
		report := e.run(t, false)

		task := taskOf(report, pr)
		gt.V(t, task.Status).Equal(types.TaskFailed)
		gt.V(t, task.Attempts).Equal(2)
		gt.V(t, task.ErrorClass).Equal(types.ErrorClassTransient)
		gt.A(t, a.Mutations()).Length(0)

		// next cycle retries and succeeds once the network is back
		a.ClearErrors()
		report = e.run(t, false)
		gt.V(t, taskOf(report, pr).Status).Equal(types.TaskSucceeded)
		gt.A(t, gt.R1(e.store.ListTasks(testContext())).NoError(t)).Length(0)
	})

	t.Run("conflict is not retried", func(t *testing.T) {
		a := fake.NewAdapter(types.ProviderGitHub)
		repo := seedRepository(a, "api", time.Time{})
		a.AddBranch(repo, model.BranchSnapshot{Name: "topic", HeadSHA: "1111", HasUnmergedWork: true})
		pr := a.AddPullRequest(repo, model.PullRequestSnapshot{
			Number: 3, SourceBranch: "topic", TargetBranch: "main", Open: true, Mergeable: true,
		})
		a.SetError(fake.OpMerge, pr, goerr.Wrap(types.ErrConflict, "head moved"), 0)

		e := newEnv(t, &model.FleetConfig{MaxAttempts: 3}, a)
		report := e.run(t, false)

		task := taskOf(report, pr)
		gt.V(t, task.Status).Equal(types.TaskSkipped)
		gt.V(t, task.Attempts).Equal(1)

		stored := gt.R1(e.store.GetPullRequest(testContext(), pr)).NoError(t)
		gt.A(t, stored.GapNotes).Length(1)
	})
}

// blockingAdapter never finishes a merge before the context is done.
type blockingAdapter struct {
	*fake.Adapter
}

func (x *blockingAdapter) Merge(ctx context.Context, ref model.EntityRef, opts model.MergeOptions) (*model.MergeResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunCycleClosesUnfinishedTasks(t *testing.T) {
	a := fake.NewAdapter(types.ProviderGitHub)
	repo := seedRepository(a, "api", time.Time{})
	a.AddBranch(repo, model.BranchSnapshot{Name: "topic", HeadSHA: "1111", HasUnmergedWork: true})
	pr := a.AddPullRequest(repo, model.PullRequestSnapshot{
		Number: 1, SourceBranch: "topic", TargetBranch: "main", Open: true, Mergeable: true,
	})
	stale := a.AddBranch(repo, model.BranchSnapshot{Name: "done", HeadSHA: "2222"})

	fleet := &model.FleetConfig{MaxAttempts: 1, CycleLockTimeout: "300ms"}
	e := newEnv(t, fleet, &blockingAdapter{Adapter: a})

	report := e.run(t, false)

	gt.False(t, report.Run.IsCurrentlyRunning)
	gt.V(t, report.Run.TasksAttempted).Equal(2)
	gt.V(t, report.Run.TasksFailed).Equal(2)
	gt.V(t, taskOf(report, pr).ErrorClass).Equal(types.ErrorClassTransient)
	gt.V(t, taskOf(report, stale).Reason).Equal("cycle closed")

	pending := gt.R1(e.store.ListTasks(testContext())).NoError(t)
	gt.A(t, pending).Length(2)
}

func TestRunCycleConfigError(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.uc.RunCycle(testContext(), &model.RunCycleInput{Trigger: types.TriggerManual})
	gt.Error(t, err)
	gt.True(t, types.Classify(err) == types.ErrorClassConfig)
}

func TestRunCycleAnnouncedRunID(t *testing.T) {
	a := fake.NewAdapter(types.ProviderGitHub)
	seedRepository(a, "api", time.Time{})
	e := newEnv(t, nil, a)

	runID := types.RunID("run-announced")
	report := gt.R1(e.uc.RunCycle(testContext(), &model.RunCycleInput{
		RunID:   runID,
		Trigger: types.TriggerTimer,
	})).NoError(t)
	gt.V(t, report.Run.ID).Equal(runID)

	latest := gt.R1(e.store.GetLatestRun(testContext())).NoError(t)
	gt.V(t, latest.ID).Equal(runID)
	entries := gt.R1(e.store.ListByRun(testContext(), runID)).NoError(t)
	gt.A(t, entries).Longer(0)
}
