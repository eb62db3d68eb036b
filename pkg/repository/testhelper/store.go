package testhelper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/repository"
)

// TestAll runs all test cases for EntityStore and AuditSink.
// This is the main entry point for testing any store implementation
func TestAll(t *testing.T, store interfaces.EntityStore, sink interfaces.AuditSink) {
	t.Run("RepositoryCRUD", func(t *testing.T) {
		TestRepositoryCRUD(t, store)
	})
	t.Run("BranchCRUD", func(t *testing.T) {
		TestBranchCRUD(t, store)
	})
	t.Run("PullRequestGapNotes", func(t *testing.T) {
		TestPullRequestGapNotes(t, store)
	})
	t.Run("IntegrationCRUD", func(t *testing.T) {
		TestIntegrationCRUD(t, store)
	})
	t.Run("PendingTasks", func(t *testing.T) {
		TestPendingTasks(t, store)
	})
	t.Run("LatestRun", func(t *testing.T) {
		TestLatestRun(t, store)
	})
	t.Run("AuditAppend", func(t *testing.T) {
		TestAuditAppend(t, sink)
	})
}

func newRepoID() types.EntityID {
	return model.RepositoryID(types.ProviderGitHub,
		fmt.Sprintf("owner-%s/repo-%s", uuid.NewString()[:8], uuid.NewString()[:8]))
}

// TestRepositoryCRUD tests latest-wins writes of repositories
func TestRepositoryCRUD(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	repoID := newRepoID()
	now := time.Now().UTC().Truncate(time.Microsecond)

	repo := &model.Repository{
		ID:            repoID,
		Provider:      types.ProviderGitHub,
		Owner:         "owner",
		Name:          "repo",
		DefaultBranch: "main",
		State:         types.RepositoryActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	gt.NoError(t, store.PutRepository(ctx, repo))

	got, err := store.GetRepository(ctx, repoID)
	gt.NoError(t, err)
	gt.V(t, got.ID).Equal(repoID)
	gt.V(t, got.DefaultBranch).Equal(types.BranchName("main"))
	gt.True(t, got.CreatedAt.Equal(now))

	// Update overwrites
	repo.State = types.RepositoryConsolidated
	repo.IsDuplicateOf = "github:owner/canonical"
	gt.NoError(t, store.PutRepository(ctx, repo))

	got, err = store.GetRepository(ctx, repoID)
	gt.NoError(t, err)
	gt.V(t, got.State).Equal(types.RepositoryConsolidated)
	gt.V(t, got.IsDuplicateOf).Equal(types.EntityID("github:owner/canonical"))

	// Stored value is not shared with the caller
	got.Name = "modified"
	again, err := store.GetRepository(ctx, repoID)
	gt.NoError(t, err)
	gt.V(t, again.Name).Equal("repo")

	repos, err := store.ListRepositories(ctx)
	gt.NoError(t, err)
	found := false
	for _, r := range repos {
		if r.ID == repoID {
			found = true
		}
	}
	gt.True(t, found)

	_, err = store.GetRepository(ctx, newRepoID())
	gt.True(t, errors.Is(err, repository.ErrNotFound))
}

// TestBranchCRUD tests branches, including names with slashes
func TestBranchCRUD(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	repoID := newRepoID()
	otherRepoID := newRepoID()

	for _, name := range []types.BranchName{"main", "feature/nested/name"} {
		gt.NoError(t, store.PutBranch(ctx, &model.Branch{
			ID:              model.BranchID(repoID, name),
			RepositoryID:    repoID,
			Name:            name,
			HasUnmergedWork: name != "main",
			IsDefault:       name == "main",
			State:           types.BranchActive,
		}))
	}
	gt.NoError(t, store.PutBranch(ctx, &model.Branch{
		ID:           model.BranchID(otherRepoID, "main"),
		RepositoryID: otherRepoID,
		Name:         "main",
		State:        types.BranchActive,
	}))

	got, err := store.GetBranch(ctx, model.BranchID(repoID, "feature/nested/name"))
	gt.NoError(t, err)
	gt.V(t, got.Name).Equal(types.BranchName("feature/nested/name"))
	gt.True(t, got.HasUnmergedWork)

	branches, err := store.ListBranches(ctx, repoID)
	gt.NoError(t, err)
	gt.A(t, branches).Length(2)

	got.State = types.BranchDeleted
	gt.NoError(t, store.PutBranch(ctx, got))
	got, err = store.GetBranch(ctx, got.ID)
	gt.NoError(t, err)
	gt.True(t, got.IsTerminal())

	_, err = store.GetBranch(ctx, model.BranchID(repoID, "missing"))
	gt.True(t, errors.Is(err, repository.ErrNotFound))
}

// TestPullRequestGapNotes tests that gap notes survive state changes
func TestPullRequestGapNotes(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	repoID := newRepoID()

	pr := &model.PullRequest{
		ID:           model.PullRequestID(repoID, 7),
		RepositoryID: repoID,
		Number:       7,
		SourceBranch: "feature/x",
		TargetBranch: "main",
		State:        types.PRDiscovered,
	}
	gt.NoError(t, store.PutPullRequest(ctx, pr))

	gt.NoError(t, pr.Transition(types.PRUnderReview))
	gt.NoError(t, pr.Transition(types.PRPartial))
	pr.AppendGapNotes("tests for module X missing")
	gt.NoError(t, store.PutPullRequest(ctx, pr))

	gt.NoError(t, pr.Transition(types.PRMerged))
	gt.NoError(t, store.PutPullRequest(ctx, pr))

	got, err := store.GetPullRequest(ctx, pr.ID)
	gt.NoError(t, err)
	gt.V(t, got.State).Equal(types.PRMerged)
	gt.V(t, got.GapNotes).Equal([]string{"tests for module X missing"})
	gt.V(t, got.SourceBranch).Equal(types.BranchName("feature/x"))

	prs, err := store.ListPullRequests(ctx, repoID)
	gt.NoError(t, err)
	gt.A(t, prs).Length(1)

	_, err = store.GetPullRequest(ctx, model.PullRequestID(repoID, 8))
	gt.True(t, errors.Is(err, repository.ErrNotFound))
}

// TestIntegrationCRUD tests integration capability records
func TestIntegrationCRUD(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	id := types.NewEntityID(types.ProviderAPI, "conn-"+uuid.NewString()[:8])

	ig := &model.IntegrationCapability{
		ID:              id,
		Name:            "llm",
		Provider:        types.ProviderAPI,
		Kind:            types.IntegrationAPIConnection,
		ActivationState: types.ActivationInactive,
	}
	gt.NoError(t, store.PutIntegration(ctx, ig))

	ig.ActivationState = types.ActivationFailed
	ig.LastError = "token expired"
	gt.NoError(t, store.PutIntegration(ctx, ig))

	got, err := store.GetIntegration(ctx, id)
	gt.NoError(t, err)
	gt.V(t, got.ActivationState).Equal(types.ActivationFailed)
	gt.V(t, got.LastError).Equal("token expired")

	igs, err := store.ListIntegrations(ctx)
	gt.NoError(t, err)
	found := false
	for _, x := range igs {
		if x.ID == id {
			found = true
		}
	}
	gt.True(t, found)
}

// TestPendingTasks tests that failed tasks are kept by target until retired
func TestPendingTasks(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	repoID := newRepoID()
	target := model.BranchID(repoID, "stale")

	task := model.NewTask(types.TaskDeleteStaleBranch, target, repoID)
	task.Status = types.TaskFailed
	task.Attempts = 3
	task.ErrorClass = types.ErrorClassTransient
	gt.NoError(t, store.PutTask(ctx, task))

	// Same target replaces the previous task
	task2 := task.Copy()
	task2.Attempts = 1
	gt.NoError(t, store.PutTask(ctx, task2))

	tasks, err := store.ListTasks(ctx)
	gt.NoError(t, err)
	var matched []*model.RemediationTask
	for _, x := range tasks {
		if x.TargetEntityID == target {
			matched = append(matched, x)
		}
	}
	gt.A(t, matched).Length(1)
	gt.V(t, matched[0].Attempts).Equal(1)
	gt.V(t, matched[0].Kind).Equal(types.TaskDeleteStaleBranch)

	gt.NoError(t, store.DeleteTask(ctx, target))
	tasks, err = store.ListTasks(ctx)
	gt.NoError(t, err)
	for _, x := range tasks {
		gt.V(t, x.TargetEntityID).NotEqual(target)
	}
}

// TestLatestRun tests the run:latest record
func TestLatestRun(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	startedAt := time.Now().UTC().Truncate(time.Microsecond)

	run := model.NewScheduledRun(types.TriggerManual, startedAt, true)
	run.TasksAttempted = 3
	run.TasksSucceeded = 2
	run.TasksSkipped = 1
	run.GapNotes = []model.GapNote{{Target: "github:o/r#1", Note: "docs missing"}}
	run.Complete(startedAt.Add(time.Minute))
	gt.NoError(t, store.PutLatestRun(ctx, run))

	got, err := store.GetLatestRun(ctx)
	gt.NoError(t, err)
	gt.V(t, got.ID).Equal(run.ID)
	gt.V(t, got.TasksSucceeded).Equal(2)
	gt.False(t, got.IsCurrentlyRunning)
	gt.V(t, got.GapNotes).Equal(run.GapNotes)
	gt.True(t, got.CompletedAt.Equal(*run.CompletedAt))
}

// TestAuditAppend tests that entries are kept in append order per run
func TestAuditAppend(t *testing.T, sink interfaces.AuditSink) {
	ctx := context.Background()
	runID := types.NewRunID(time.Now())
	base := time.Now().UTC().Truncate(time.Microsecond)

	task := model.NewTask(types.TaskMergeOrClosePR, "github:o/r#1", "github:o/r")
	for i := 1; i <= 3; i++ {
		task.Attempts = i
		task.Status = types.TaskFailed
		task.ErrorClass = types.ErrorClassTransient
		if i == 3 {
			task.Status = types.TaskSucceeded
			task.ErrorClass = types.ErrorClassNone
		}
		gt.NoError(t, sink.Append(ctx, model.TaskAttemptEntry(runID, task, base.Add(time.Duration(i)*time.Second))))
	}
	gt.NoError(t, sink.Append(ctx, model.NewAuditEntry(model.AuditRunSummary, types.NewRunID(time.Now()), base)))

	entries, err := sink.ListByRun(ctx, runID)
	gt.NoError(t, err)
	gt.A(t, entries).Length(3)
	for i, entry := range entries {
		gt.V(t, entry.Attempt).Equal(i + 1)
		gt.V(t, entry.TaskID).Equal(task.ID)
	}
	gt.V(t, entries[2].Status).Equal(types.TaskSucceeded)

	// Append never overwrites an entry.
	again := *entries[0]
	again.Status = types.TaskSucceeded
	err = sink.Append(ctx, &again)
	gt.True(t, errors.Is(err, repository.ErrAlreadyExists))
	entries, err = sink.ListByRun(ctx, runID)
	gt.NoError(t, err)
	gt.A(t, entries).Length(3)
	gt.V(t, entries[0].Status).Equal(types.TaskFailed)
}
