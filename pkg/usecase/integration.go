package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

// activateIntegration runs the verify-then-activate sequence. An integration
// already active upstream is skipped.
func (x *UseCase) activateIntegration(ctx context.Context, c *cycle, adapter interfaces.Adapter, task *model.RemediationTask) error {
	store := x.clients.EntityStore()

	ig, err := store.GetIntegration(ctx, task.TargetEntityID)
	if err != nil {
		return goerr.Wrap(err, "failed to get integration", goerr.V("id", task.TargetEntityID))
	}

	save := func(state types.ActivationState, cause error) error {
		if c.dryRun {
			return nil
		}
		ig.ActivationState = state
		ig.LastError = ""
		if cause != nil {
			ig.LastError = cause.Error()
		}
		ig.UpdatedAt = logging.CtxTime(ctx)
		if err := store.PutIntegration(ctx, ig); err != nil {
			return goerr.Wrap(err, "failed to save integration", goerr.V("id", ig.ID))
		}
		return nil
	}

	snap, err := callAdapter(ctx, c.adapterTimeout(), func(ctx context.Context) (*model.EntitySnapshot, error) {
		return adapter.ReadState(ctx, refOf(task))
	})
	if err != nil {
		return err
	}
	if snap.Integration != nil && snap.Integration.Active {
		task.Status = types.TaskSkipped
		task.Reason = "already active"
		return save(types.ActivationActive, nil)
	}

	if c.dryRun {
		task.Status = types.TaskSkipped
		task.Reason = "dry-run: would activate"
		return nil
	}

	if err := save(types.ActivationVerifying, nil); err != nil {
		return err
	}

	if err := callAdapterErr(ctx, c.adapterTimeout(), func(ctx context.Context) error {
		return adapter.Verify(ctx, refOf(task))
	}); err != nil {
		_ = save(types.ActivationFailed, err)
		return err
	}

	if err := callAdapterErr(ctx, c.adapterTimeout(), func(ctx context.Context) error {
		return adapter.Activate(ctx, refOf(task))
	}); err != nil {
		_ = save(types.ActivationFailed, err)
		return err
	}

	task.Status = types.TaskSucceeded
	task.Reason = "activated"
	return save(types.ActivationActive, nil)
}

func (x *UseCase) setIntegrationFailed(ctx context.Context, id types.EntityID, cause error) error {
	store := x.clients.EntityStore()
	ig, err := store.GetIntegration(ctx, id)
	if err != nil {
		return err
	}
	ig.ActivationState = types.ActivationFailed
	ig.LastError = cause.Error()
	ig.UpdatedAt = logging.CtxTime(ctx)
	return store.PutIntegration(ctx, ig)
}
