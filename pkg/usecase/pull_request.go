package usecase

import (
	"context"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

// mergeOrClosePR drives one pull request through the remediation state
// machine: a complete diff is merged, a partial diff gets its unresolved parts
// recorded as gap notes and its mergeable subset merged, and a pull request
// whose source branch is gone is abandoned.
func (x *UseCase) mergeOrClosePR(ctx context.Context, c *cycle, adapter interfaces.Adapter, task *model.RemediationTask) error {
	store := x.clients.EntityStore()

	pr, err := store.GetPullRequest(ctx, task.TargetEntityID)
	if err != nil {
		return goerr.Wrap(err, "failed to get pull request", goerr.V("id", task.TargetEntityID))
	}
	if pr.IsTerminal() {
		task.Status = types.TaskSkipped
		task.Reason = "already " + string(pr.State)
		return nil
	}

	snap, err := callAdapter(ctx, c.adapterTimeout(), func(ctx context.Context) (*model.EntitySnapshot, error) {
		return adapter.ReadState(ctx, refOf(task))
	})
	if err != nil {
		return err
	}
	live := snap.PullRequest
	if live == nil {
		return goerr.Wrap(types.ErrValidationFailed, "snapshot is not a pull request", goerr.V("id", pr.ID))
	}

	save := func() error {
		if c.dryRun {
			return nil
		}
		pr.UpdatedAt = logging.CtxTime(ctx)
		if err := store.PutPullRequest(ctx, pr); err != nil {
			return goerr.Wrap(err, "failed to save pull request", goerr.V("id", pr.ID))
		}
		return nil
	}

	// Desired end state already observed upstream.
	switch {
	case live.Merged:
		pr.ObserveMerged()
		task.Status = types.TaskSucceeded
		task.Reason = "already merged upstream"
		return save()

	case !live.Open:
		if err := pr.Transition(types.PRAbandoned); err != nil {
			return err
		}
		task.Status = types.TaskSucceeded
		task.Reason = "closed upstream without merge"
		return save()

	case !live.SourceBranchExists:
		if err := pr.Transition(types.PRAbandoned); err != nil {
			return err
		}
		task.Status = types.TaskSucceeded
		task.Reason = "source branch no longer exists"
		return save()
	}

	if pr.State == types.PRDiscovered {
		if err := pr.Transition(types.PRUnderReview); err != nil {
			return err
		}
	}

	pr.DiffCompleteness = live.Completeness()
	var next types.PRState
	switch pr.DiffCompleteness {
	case types.DiffComplete:
		next = types.PRComplete
	case types.DiffPartial:
		next = types.PRPartial
		unresolved := live.Unresolved()
		pr.AppendGapNotes(unresolved...)
		task.GapNotes = appendNewNotes(task.GapNotes, unresolved...)
	default:
		task.Status = types.TaskSkipped
		task.Reason = "not mergeable yet"
		return save()
	}
	// A pull request classified in an earlier cycle keeps its state; only the
	// merge mode follows the live diff.
	if pr.State == types.PRUnderReview {
		if err := pr.Transition(next); err != nil {
			return err
		}
	}

	selective := pr.DiffCompleteness == types.DiffPartial
	if c.dryRun {
		task.Status = types.TaskSkipped
		task.Reason = "dry-run: would merge"
		if selective {
			task.Reason = "dry-run: would merge mergeable subset"
		}
		return nil
	}

	// Persist the classification so that a crash before the merge resumes
	// from the same state.
	if err := save(); err != nil {
		return err
	}

	result, err := callAdapter(ctx, c.adapterTimeout(), func(ctx context.Context) (*model.MergeResult, error) {
		return adapter.Merge(ctx, refOf(task), model.MergeOptions{Selective: selective})
	})
	if err != nil {
		return err
	}

	pr.AppendGapNotes(result.UnresolvedNotes...)
	task.GapNotes = appendNewNotes(task.GapNotes, result.UnresolvedNotes...)

	switch result.Outcome {
	case types.MergeOutcomeClosed:
		if err := pr.Transition(types.PRAbandoned); err != nil {
			return err
		}
		task.Reason = "closed"
	case types.MergeOutcomePartialMerged:
		if err := pr.Transition(types.PRMerged); err != nil {
			return err
		}
		task.Reason = "mergeable subset merged"
	case types.MergeOutcomeAlreadyMerged:
		pr.ObserveMerged()
		task.Reason = "already merged"
	default:
		if err := pr.Transition(types.PRMerged); err != nil {
			return err
		}
		task.Reason = "merged"
	}
	task.Status = types.TaskSucceeded
	return save()
}

// appendNewNotes appends the notes not yet in dst. The task reports every
// unresolved item of its attempt, including notes an earlier attempt already
// recorded on the pull request.
func appendNewNotes(dst []string, notes ...string) []string {
	for _, note := range notes {
		if note != "" && !slices.Contains(dst, note) {
			dst = append(dst, note)
		}
	}
	return dst
}
