package usecase_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	fake "github.com/m-mizutani/octomend/pkg/infra/memory"
)

func TestMergeOrClosePR(t *testing.T) {
	ctx := testContext()

	t.Run("partial diff keeps every unresolved part as a gap note", func(t *testing.T) {
		a := fake.NewAdapter(types.ProviderGitHub)
		repo := seedRepository(a, "api", time.Time{})
		a.AddBranch(repo, model.BranchSnapshot{Name: "topic", HeadSHA: "1111", HasUnmergedWork: true})
		pr := a.AddPullRequest(repo, model.PullRequestSnapshot{
			Number:             4,
			SourceBranch:       "topic",
			TargetBranch:       "main",
			Open:               true,
			Mergeable:          true,
			UnresolvedNotes:    []string{"docs not updated"},
			OpenRequiredChecks: []string{"integration-test"},
		})

		e := newEnv(t, nil, a)
		report := e.run(t, false)

		stored := gt.R1(e.store.GetPullRequest(ctx, pr)).NoError(t)
		gt.V(t, stored.State).Equal(types.PRMerged)
		gt.V(t, stored.DiffCompleteness).Equal(types.DiffPartial)
		gt.V(t, stored.GapNotes).Equal([]string{
			"docs not updated",
			"required check not passing: integration-test",
		})
		gt.A(t, report.Run.GapNotes).Length(2)

		mutations := a.Mutations()
		gt.A(t, mutations).Length(1)
		gt.True(t, mutations[0].Opts.Selective)

		// gap notes survive later cycles
		e.run(t, false)
		stored = gt.R1(e.store.GetPullRequest(ctx, pr)).NoError(t)
		gt.A(t, stored.GapNotes).Length(2)
	})

	t.Run("complete diff is merged whole", func(t *testing.T) {
		a := fake.NewAdapter(types.ProviderGitHub)
		repo := seedRepository(a, "api", time.Time{})
		a.AddBranch(repo, model.BranchSnapshot{Name: "topic", HeadSHA: "1111", HasUnmergedWork: true})
		pr := a.AddPullRequest(repo, model.PullRequestSnapshot{
			Number: 5, SourceBranch: "topic", TargetBranch: "main", Open: true, Mergeable: true,
		})

		e := newEnv(t, nil, a)
		report := e.run(t, false)

		gt.V(t, taskOf(report, pr).Reason).Equal("merged")
		stored := gt.R1(e.store.GetPullRequest(ctx, pr)).NoError(t)
		gt.V(t, stored.State).Equal(types.PRMerged)
		gt.A(t, stored.GapNotes).Length(0)
		gt.False(t, a.Mutations()[0].Opts.Selective)
	})

	t.Run("missing source branch abandons the pull request", func(t *testing.T) {
		a := fake.NewAdapter(types.ProviderGitHub)
		repo := seedRepository(a, "api", time.Time{})
		pr := a.AddPullRequest(repo, model.PullRequestSnapshot{
			Number: 6, SourceBranch: "gone", TargetBranch: "main", Open: true, Mergeable: true,
		})

		e := newEnv(t, nil, a)
		report := e.run(t, false)

		gt.V(t, taskOf(report, pr).Status).Equal(types.TaskSucceeded)
		stored := gt.R1(e.store.GetPullRequest(ctx, pr)).NoError(t)
		gt.V(t, stored.State).Equal(types.PRAbandoned)
		gt.A(t, a.Mutations()).Length(0)
	})

	t.Run("unmergeable diff waits", func(t *testing.T) {
		a := fake.NewAdapter(types.ProviderGitHub)
		repo := seedRepository(a, "api", time.Time{})
		a.AddBranch(repo, model.BranchSnapshot{Name: "topic", HeadSHA: "1111", HasUnmergedWork: true})
		pr := a.AddPullRequest(repo, model.PullRequestSnapshot{
			Number: 8, SourceBranch: "topic", TargetBranch: "main", Open: true,
		})

		e := newEnv(t, nil, a)
		report := e.run(t, false)

		gt.V(t, taskOf(report, pr).Status).Equal(types.TaskSkipped)
		stored := gt.R1(e.store.GetPullRequest(ctx, pr)).NoError(t)
		gt.V(t, stored.State).Equal(types.PRUnderReview)
		gt.V(t, stored.DiffCompleteness).Equal(types.DiffUnknown)
	})

	t.Run("merged upstream after discovery is observed without a merge call", func(t *testing.T) {
		a := fake.NewAdapter(types.ProviderGitHub)
		repo := seedRepository(a, "api", time.Time{})
		a.AddBranch(repo, model.BranchSnapshot{Name: "topic", HeadSHA: "1111"})
		pr := a.AddPullRequest(repo, model.PullRequestSnapshot{
			Number: 9, SourceBranch: "topic", TargetBranch: "main", Open: true, Mergeable: true,
		})

		e := newEnv(t, nil, a)
		e.run(t, true)

		// someone merges by hand between cycles
		a.AddPullRequest(repo, model.PullRequestSnapshot{
			Number: 9, SourceBranch: "topic", TargetBranch: "main", Merged: true, Mergeable: true,
		})
		e.run(t, false)

		stored := gt.R1(e.store.GetPullRequest(ctx, pr)).NoError(t)
		gt.V(t, stored.State).Equal(types.PRMerged)
		for _, m := range a.Mutations() {
			gt.V(t, m.Op).NotEqual(fake.OpMerge)
		}
	})
}
