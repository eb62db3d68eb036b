package usecase

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/errutil"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

func (x *UseCase) validate() error {
	if x.clients.EntityStore() == nil {
		return goerr.Wrap(types.ErrConfig, "entity store is not configured")
	}
	if x.clients.AuditSink() == nil {
		return goerr.Wrap(types.ErrConfig, "audit sink is not configured")
	}
	if x.clients.Registry().Len() == 0 {
		return goerr.Wrap(types.ErrConfig, "no adapter is registered")
	}
	return nil
}

// RunCycle runs one reconciliation cycle: discover, plan, execute, report. An
// error is returned only for problems that prevent the cycle from starting;
// task failures are reported in the returned RunReport.
func (x *UseCase) RunCycle(ctx context.Context, input *model.RunCycleInput) (*model.RunReport, error) {
	if err := x.validate(); err != nil {
		return nil, err
	}

	run := model.NewScheduledRun(input.Trigger, logging.CtxTime(ctx), input.DryRun)
	if input.RunID != "" {
		run.ID = input.RunID
	}
	ctx = logging.CtxWithRunID(ctx, run.ID)
	logger := logging.From(ctx)
	logger.Info("cycle started", slog.String("trigger", string(input.Trigger)), slog.Bool("dry_run", input.DryRun))

	// Closing the cycle must survive the cycle deadline.
	closeCtx := context.WithoutCancel(ctx)
	cycleCtx, cancel := context.WithTimeout(ctx, x.fleet.CycleLockTimeoutDuration())
	defer cancel()

	c := x.newCycle(run)
	var tasks []*model.RemediationTask

	if err := x.discover(cycleCtx, c); err != nil {
		run.FatalError = err.Error()
	} else if plan, err := x.buildPlan(cycleCtx); err != nil {
		run.FatalError = err.Error()
	} else {
		tasks = plan.Tasks()
		if !input.DryRun {
			x.retirePendingTasks(closeCtx, tasks)
		}
		x.execute(cycleCtx, c, plan)
	}

	report := x.closeCycle(closeCtx, c, tasks)
	if run.FatalError != "" {
		logger.Error("cycle aborted", slog.String("error", run.FatalError))
	}
	return report, nil
}

// execute runs consolidations first, then the per-repository jobs in
// parallel up to the configured concurrency.
func (x *UseCase) execute(ctx context.Context, c *cycle, plan *Plan) {
	for _, task := range plan.Consolidations {
		if ctx.Err() != nil {
			return
		}
		unlock := c.locks.Lock(task.TargetEntityID, task.RelatedEntityID)
		x.reconcile(ctx, c, task)
		unlock()
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(x.fleet.Concurrency)
	for _, job := range plan.Jobs {
		eg.Go(func() error {
			unlock := c.locks.Lock(job.RepositoryID)
			defer unlock()

			for _, task := range job.Tasks {
				if ctx.Err() != nil {
					return nil
				}
				x.reconcile(ctx, c, task)
			}
			return nil
		})
	}
	_ = eg.Wait()
}

// closeCycle settles unfinished tasks, keeps failed ones for the next cycle
// and writes the run summary.
func (x *UseCase) closeCycle(ctx context.Context, c *cycle, tasks []*model.RemediationTask) *model.RunReport {
	store := x.clients.EntityStore()
	logger := logging.From(ctx)

	c.mu.Lock()
	run := c.run
	c.mu.Unlock()

	for _, task := range tasks {
		if !task.Status.IsDone() {
			task.Status = types.TaskFailed
			task.Reason = reasonCycleClosed
			task.ErrorClass = types.ErrorClassTransient
			c.appendAudit(ctx, model.TaskAttemptEntry(run.ID, task, logging.CtxTime(ctx)))
		}
		run.Record(task)

		if c.dryRun {
			continue
		}
		if task.Status == types.TaskFailed {
			pending := task.Copy()
			pending.Status = types.TaskPending
			if err := store.PutTask(ctx, pending); err != nil {
				errutil.HandleError(ctx, "failed to keep failed task", err)
			}
		} else if err := store.DeleteTask(ctx, task.TargetEntityID); err != nil {
			errutil.HandleError(ctx, "failed to retire task", err)
		}
	}

	run.Complete(logging.CtxTime(ctx))

	summary := model.NewAuditEntry(model.AuditRunSummary, run.ID, logging.CtxTime(ctx))
	summary.Run = run.Copy()
	c.appendAudit(ctx, summary)

	if err := store.PutLatestRun(ctx, run); err != nil {
		errutil.HandleError(ctx, "failed to save latest run", err)
	}
	if err := x.ExportRun(ctx, run); err != nil {
		errutil.HandleError(ctx, "failed to export run", err)
	}

	logger.Info("cycle completed",
		slog.Int("attempted", run.TasksAttempted),
		slog.Int("succeeded", run.TasksSucceeded),
		slog.Int("failed", run.TasksFailed),
		slog.Int("skipped", run.TasksSkipped),
		slog.Int("gap_notes", len(run.GapNotes)),
	)

	return &model.RunReport{Run: run.Copy(), Tasks: tasks}
}

// retirePendingTasks drops tasks kept from an earlier cycle whose target is
// not planned any more.
func (x *UseCase) retirePendingTasks(ctx context.Context, planned []*model.RemediationTask) {
	store := x.clients.EntityStore()
	pending, err := store.ListTasks(ctx)
	if err != nil {
		errutil.HandleError(ctx, "failed to list pending tasks", err)
		return
	}

	targets := make(map[types.EntityID]struct{}, len(planned))
	for _, task := range planned {
		targets[task.TargetEntityID] = struct{}{}
	}
	for _, task := range pending {
		if _, ok := targets[task.TargetEntityID]; ok {
			continue
		}
		if err := store.DeleteTask(ctx, task.TargetEntityID); err != nil {
			errutil.HandleError(ctx, "failed to retire task", err)
		}
	}
}
