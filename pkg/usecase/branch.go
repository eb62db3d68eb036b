package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

// deleteStaleBranch deletes a branch whose work is merged or abandoned. The
// guard is evaluated again against the store and the live branch, because
// pull requests may have changed since planning.
func (x *UseCase) deleteStaleBranch(ctx context.Context, c *cycle, adapter interfaces.Adapter, task *model.RemediationTask) error {
	store := x.clients.EntityStore()

	branch, err := store.GetBranch(ctx, task.TargetEntityID)
	if err != nil {
		return goerr.Wrap(err, "failed to get branch", goerr.V("id", task.TargetEntityID))
	}
	if branch.IsTerminal() {
		task.Status = types.TaskSkipped
		task.Reason = "already deleted"
		return nil
	}

	repo, err := store.GetRepository(ctx, branch.RepositoryID)
	if err != nil {
		return goerr.Wrap(err, "failed to get repository", goerr.V("id", branch.RepositoryID))
	}
	prs, err := store.ListPullRequests(ctx, branch.RepositoryID)
	if err != nil {
		return goerr.Wrap(err, "failed to list pull requests", goerr.V("repoID", branch.RepositoryID))
	}
	if !isStaleBranch(repo, branch, prs) {
		task.Status = types.TaskSkipped
		task.Reason = reasonWorkNotMerged
		return nil
	}

	snap, err := callAdapter(ctx, c.adapterTimeout(), func(ctx context.Context) (*model.EntitySnapshot, error) {
		return adapter.ReadState(ctx, refOf(task))
	})
	if err != nil {
		return err
	}
	if live := snap.Branch; live != nil {
		branch.HasUnmergedWork = live.HasUnmergedWork
		branch.IsDefault = live.IsDefault
		branch.LastCommitRef = live.HeadSHA
		if !isStaleBranch(repo, branch, prs) {
			task.Status = types.TaskSkipped
			task.Reason = reasonWorkNotMerged
			return nil
		}
	}

	if c.dryRun {
		task.Status = types.TaskSkipped
		task.Reason = "dry-run: would delete branch"
		return nil
	}

	if err := callAdapterErr(ctx, c.adapterTimeout(), func(ctx context.Context) error {
		return adapter.DeleteBranch(ctx, refOf(task))
	}); err != nil {
		return err
	}

	branch.State = types.BranchDeleted
	branch.UpdatedAt = logging.CtxTime(ctx)
	if err := store.PutBranch(ctx, branch); err != nil {
		return goerr.Wrap(err, "failed to save branch", goerr.V("id", branch.ID))
	}

	task.Status = types.TaskSucceeded
	task.Reason = "deleted"
	return nil
}
