package usecase

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

// consolidateDuplicateRepo folds a duplicate into its canonical repository.
// Pointers to the duplicate's unmerged branches and open pull requests are
// carried to the canonical repository and the duplicate becomes terminal. The
// remote duplicate is never deleted; that needs a human and is left as a gap
// note.
func (x *UseCase) consolidateDuplicateRepo(ctx context.Context, c *cycle, adapter interfaces.Adapter, task *model.RemediationTask) error {
	store := x.clients.EntityStore()

	dup, err := store.GetRepository(ctx, task.TargetEntityID)
	if err != nil {
		return goerr.Wrap(err, "failed to get repository", goerr.V("id", task.TargetEntityID))
	}
	if dup.IsTerminal() {
		task.Status = types.TaskSkipped
		task.Reason = "already " + string(dup.State)
		return nil
	}

	canonical, err := store.GetRepository(ctx, task.RelatedEntityID)
	if err != nil {
		return goerr.Wrap(err, "failed to get canonical repository", goerr.V("id", task.RelatedEntityID))
	}

	// Confirm the duplicate still exists; NotFound settles the task.
	if _, err := callAdapter(ctx, c.adapterTimeout(), func(ctx context.Context) (*model.EntitySnapshot, error) {
		return adapter.ReadState(ctx, refOf(task))
	}); err != nil {
		return err
	}

	if c.dryRun {
		task.Status = types.TaskSkipped
		task.Reason = "dry-run: would consolidate into " + canonical.ID.String()
		return nil
	}

	branches, err := store.ListBranches(ctx, dup.ID)
	if err != nil {
		return goerr.Wrap(err, "failed to list branches", goerr.V("repoID", dup.ID))
	}
	prs, err := store.ListPullRequests(ctx, dup.ID)
	if err != nil {
		return goerr.Wrap(err, "failed to list pull requests", goerr.V("repoID", dup.ID))
	}

	var carried []types.EntityID
	for _, b := range branches {
		if !b.IsTerminal() && !b.IsDefault && b.HasUnmergedWork {
			carried = append(carried, b.ID)
		}
	}
	for _, pr := range prs {
		if !pr.IsTerminal() {
			carried = append(carried, pr.ID)
		}
	}

	now := logging.CtxTime(ctx)
	note := fmt.Sprintf("duplicate %s consolidated into %s; remote deletion requires human confirmation", dup.FullName(), canonical.FullName())

	canonical.Canonical = true
	canonical.Carry(carried...)
	canonical.AppendGapNote(note)
	canonical.UpdatedAt = now
	if err := store.PutRepository(ctx, canonical); err != nil {
		return goerr.Wrap(err, "failed to save canonical repository", goerr.V("id", canonical.ID))
	}

	dup.State = types.RepositoryConsolidated
	dup.IsDuplicateOf = canonical.ID
	dup.Canonical = false
	dup.AppendGapNote(note)
	dup.UpdatedAt = now
	if err := store.PutRepository(ctx, dup); err != nil {
		return goerr.Wrap(err, "failed to save duplicate repository", goerr.V("id", dup.ID))
	}

	task.Status = types.TaskSucceeded
	task.Reason = fmt.Sprintf("consolidated into %s, %d entities carried", canonical.ID, len(carried))
	task.GapNotes = append(task.GapNotes, note)
	return nil
}
