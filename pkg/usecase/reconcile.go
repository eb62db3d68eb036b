package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cenkalti/backoff/v4"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

const (
	reasonAdapterUnavailable = "adapter unavailable"
	reasonCycleClosed        = "cycle closed"
	reasonWorkNotMerged      = "work not yet merged"
)

// taskHandler runs one attempt of a task. On success it sets the task status
// and reason; an error is turned into the outcome by reconcile.
type taskHandler func(ctx context.Context, c *cycle, adapter interfaces.Adapter, task *model.RemediationTask) error

func (x *UseCase) handlerOf(kind types.TaskKind) (taskHandler, error) {
	switch kind {
	case types.TaskConsolidateDuplicateRepo:
		return x.consolidateDuplicateRepo, nil
	case types.TaskMergeOrClosePR:
		return x.mergeOrClosePR, nil
	case types.TaskDeleteStaleBranch:
		return x.deleteStaleBranch, nil
	case types.TaskActivateIntegration:
		return x.activateIntegration, nil
	}
	return nil, goerr.Wrap(types.ErrValidationFailed, "unknown task kind", goerr.V("kind", kind))
}

// reconcile executes task to an outcome. It never returns an error: every
// failure becomes the task's status plus an audit entry, so one task cannot
// abort another.
func (x *UseCase) reconcile(ctx context.Context, c *cycle, task *model.RemediationTask) {
	logger := logging.From(ctx).With(
		slog.String("task_id", task.ID.String()),
		slog.String("kind", string(task.Kind)),
		slog.String("target", task.TargetEntityID.String()),
	)
	ctx = logging.With(ctx, logger)

	if c.adapterFailed(task.Provider) {
		task.Status = types.TaskSkipped
		task.Reason = reasonAdapterUnavailable
		x.recordAttempt(ctx, c, task)
		return
	}

	handler, err := x.handlerOf(task.Kind)
	if err == nil {
		var adapter interfaces.Adapter
		if adapter, err = x.clients.Registry().Get(task.Provider); err == nil {
			x.attemptWithRetry(ctx, c, adapter, handler, task)
			return
		}
	}

	task.Attempts++
	task.Status = types.TaskFailed
	task.Reason = err.Error()
	task.ErrorClass = types.Classify(err)
	x.recordAttempt(ctx, c, task)
}

func (x *UseCase) attemptWithRetry(ctx context.Context, c *cycle, adapter interfaces.Adapter, handler taskHandler, task *model.RemediationTask) {
	maxAttempts := x.fleet.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	op := func() error {
		task.Attempts++
		task.Status = types.TaskInFlight
		task.Reason = ""
		task.ErrorClass = types.ErrorClassNone
		task.GapNotes = nil

		err := handler(ctx, c, adapter, task)
		if err != nil {
			x.applyError(ctx, c, task, err)
		}
		x.recordAttempt(ctx, c, task)

		if err == nil || !errors.Is(err, types.ErrTransientNetwork) {
			return nil
		}
		if task.Attempts >= maxAttempts {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(x.newBackOff(), uint64(maxAttempts-1)), ctx)
	if err := backoff.Retry(op, bo); err != nil && task.Status == types.TaskInFlight {
		task.Status = types.TaskFailed
		task.Reason = err.Error()
		task.ErrorClass = types.Classify(err)
	}
}

// applyError maps an adapter error onto the outcome of task.
func (x *UseCase) applyError(ctx context.Context, c *cycle, task *model.RemediationTask, err error) {
	task.ErrorClass = types.Classify(err)

	switch task.ErrorClass {
	case types.ErrorClassAuth:
		task.Status = types.TaskFailed
		task.Reason = err.Error()
		c.failAdapter(ctx, task.Provider, err)

	case types.ErrorClassConflict:
		task.Status = types.TaskSkipped
		task.Reason = "conflict"
		note := "conflict: " + err.Error()
		task.GapNotes = append(task.GapNotes, note)
		if !c.dryRun {
			if perr := x.recordConflict(ctx, task, note); perr != nil {
				logging.From(ctx).Warn("failed to record conflict", slog.Any("error", perr))
			}
		}

	case types.ErrorClassNotFound:
		x.handleRemoved(ctx, c, task, err)

	case types.ErrorClassUnsupported:
		task.Status = types.TaskSkipped
		task.Reason = "capability not supported: " + err.Error()

	default:
		// transient, config and unknown errors
		task.Status = types.TaskFailed
		task.Reason = err.Error()
	}
}

// handleRemoved settles a task whose target is gone upstream: the desired
// end state is reached, so the entity becomes terminal and the task succeeds.
func (x *UseCase) handleRemoved(ctx context.Context, c *cycle, task *model.RemediationTask, cause error) {
	if task.Kind == types.TaskActivateIntegration {
		task.Status = types.TaskFailed
		task.Reason = cause.Error()
		if !c.dryRun {
			_ = x.setIntegrationFailed(ctx, task.TargetEntityID, cause)
		}
		return
	}

	if c.dryRun {
		task.Status = types.TaskSkipped
		task.Reason = "dry-run: would mark removed entity terminal"
		return
	}

	if err := x.markRemoved(ctx, model.EntityRef{ID: task.TargetEntityID, Kind: targetKind(task.Kind), Provider: task.Provider}); err != nil {
		task.Status = types.TaskFailed
		task.Reason = err.Error()
		task.ErrorClass = types.Classify(err)
		return
	}
	task.Status = types.TaskSucceeded
	task.Reason = "removed upstream"
}

// recordConflict keeps the conflict note on the target entity.
func (x *UseCase) recordConflict(ctx context.Context, task *model.RemediationTask, note string) error {
	store := x.clients.EntityStore()
	switch task.Kind {
	case types.TaskMergeOrClosePR:
		pr, err := store.GetPullRequest(ctx, task.TargetEntityID)
		if err != nil {
			return err
		}
		if pr.AppendGapNotes(note) > 0 {
			pr.UpdatedAt = logging.CtxTime(ctx)
			return store.PutPullRequest(ctx, pr)
		}
	case types.TaskConsolidateDuplicateRepo, types.TaskDeleteStaleBranch:
		repo, err := store.GetRepository(ctx, task.RepositoryID)
		if err != nil {
			return err
		}
		repo.AppendGapNote(note)
		return store.PutRepository(ctx, repo)
	}
	return nil
}

func (x *UseCase) recordAttempt(ctx context.Context, c *cycle, task *model.RemediationTask) {
	logging.From(ctx).Info("task attempt",
		slog.Int("attempt", task.Attempts),
		slog.String("status", string(task.Status)),
		slog.String("reason", task.Reason),
		slog.String("error_class", string(task.ErrorClass)),
	)

	c.mu.Lock()
	runID := c.run.ID
	c.mu.Unlock()
	c.appendAudit(ctx, model.TaskAttemptEntry(runID, task, logging.CtxTime(ctx)))
}

func targetKind(kind types.TaskKind) types.EntityKind {
	switch kind {
	case types.TaskConsolidateDuplicateRepo:
		return types.EntityRepository
	case types.TaskMergeOrClosePR:
		return types.EntityPullRequest
	case types.TaskDeleteStaleBranch:
		return types.EntityBranch
	default:
		return types.EntityIntegration
	}
}

func refOf(task *model.RemediationTask) model.EntityRef {
	return model.EntityRef{
		ID:           task.TargetEntityID,
		Kind:         targetKind(task.Kind),
		Provider:     task.Provider,
		RepositoryID: task.RepositoryID,
	}
}
