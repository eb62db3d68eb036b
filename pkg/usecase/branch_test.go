package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	fake "github.com/m-mizutani/octomend/pkg/infra/memory"
)

// drifting reports unmerged work on a branch from its second read on, as if a
// commit was pushed after discovery.
type drifting struct {
	*fake.Adapter
	target types.EntityID
	reads  int
}

func (x *drifting) ReadState(ctx context.Context, ref model.EntityRef) (*model.EntitySnapshot, error) {
	snap, err := x.Adapter.ReadState(ctx, ref)
	if err != nil || ref.ID != x.target {
		return snap, err
	}
	x.reads++
	if x.reads > 1 {
		snap.Branch.HasUnmergedWork = true
	}
	return snap, nil
}

func TestDeleteStaleBranch(t *testing.T) {
	ctx := testContext()

	t.Run("branches with live work are never planned", func(t *testing.T) {
		a := fake.NewAdapter(types.ProviderGitHub)
		repo := seedRepository(a, "api", time.Time{})
		unmerged := a.AddBranch(repo, model.BranchSnapshot{Name: "wip", HeadSHA: "1111", HasUnmergedWork: true})
		target := a.AddBranch(repo, model.BranchSnapshot{Name: "release", HeadSHA: "2222"})
		source := a.AddBranch(repo, model.BranchSnapshot{Name: "topic", HeadSHA: "3333"})
		a.AddPullRequest(repo, model.PullRequestSnapshot{
			Number: 1, SourceBranch: "topic", TargetBranch: "release", Open: true,
		})

		e := newEnv(t, nil, a)
		report := e.run(t, false)

		for _, id := range []types.EntityID{unmerged, target, source, model.BranchID(repo, "main")} {
			gt.True(t, taskOf(report, id) == nil)
			gt.V(t, gt.R1(e.store.GetBranch(ctx, id)).NoError(t).State).Equal(types.BranchActive)
		}
		for _, m := range a.Mutations() {
			gt.V(t, m.Op).NotEqual(fake.OpDelete)
		}
	})

	t.Run("guard is checked again against live state", func(t *testing.T) {
		a := fake.NewAdapter(types.ProviderGitHub)
		repo := seedRepository(a, "api", time.Time{})
		branch := a.AddBranch(repo, model.BranchSnapshot{Name: "done", HeadSHA: "1111"})

		e := newEnv(t, nil, &drifting{Adapter: a, target: branch})
		report := e.run(t, false)

		task := taskOf(report, branch)
		gt.V(t, task.Status).Equal(types.TaskSkipped)
		gt.V(t, task.Reason).Equal("work not yet merged")
		gt.A(t, a.Mutations()).Length(0)
		_, exists := a.Branch(branch)
		gt.True(t, exists)
	})

	t.Run("branch already gone upstream settles as deleted", func(t *testing.T) {
		a := fake.NewAdapter(types.ProviderGitHub)
		repo := seedRepository(a, "api", time.Time{})
		branch := a.AddBranch(repo, model.BranchSnapshot{Name: "done", HeadSHA: "1111"})
		a.SetError(fake.OpDelete, branch, types.ErrNotFound, 1)

		e := newEnv(t, nil, a)
		report := e.run(t, false)

		task := taskOf(report, branch)
		gt.V(t, task.Status).Equal(types.TaskSucceeded)
		gt.V(t, gt.R1(e.store.GetBranch(ctx, branch)).NoError(t).State).Equal(types.BranchDeleted)
	})
}
