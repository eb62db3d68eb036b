package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/errutil"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

// cycle is the state shared by the jobs of one reconciliation cycle.
type cycle struct {
	uc     *UseCase
	dryRun bool

	mu             sync.Mutex
	run            *model.ScheduledRun
	failedAdapters map[types.ProviderTag]error

	locks *keyedMutex
}

func (x *UseCase) newCycle(run *model.ScheduledRun) *cycle {
	return &cycle{
		uc:             x,
		dryRun:         run.DryRun,
		run:            run,
		failedAdapters: make(map[types.ProviderTag]error),
		locks:          newKeyedMutex(),
	}
}

func (c *cycle) adapterFailed(provider types.ProviderTag) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.failedAdapters[provider]
	return ok
}

// failAdapter takes the adapter of provider out of the rest of the cycle and
// records the failure on its capability record.
func (c *cycle) failAdapter(ctx context.Context, provider types.ProviderTag, cause error) {
	c.mu.Lock()
	if _, ok := c.failedAdapters[provider]; ok {
		c.mu.Unlock()
		return
	}
	c.failedAdapters[provider] = cause
	if errors.Is(cause, types.ErrAuth) {
		c.run.AddAuthFailure(provider)
	}
	c.mu.Unlock()

	logging.From(ctx).Warn("adapter disabled for the rest of the cycle",
		slog.String("provider", provider.String()),
		slog.Any("error", cause),
	)
	c.setAdapterState(ctx, provider, types.ActivationFailed, cause)
}

func (c *cycle) setAdapterState(ctx context.Context, provider types.ProviderTag, state types.ActivationState, cause error) {
	record := &model.IntegrationCapability{
		ID:              model.AdapterCapabilityID(provider),
		Name:            provider.String() + " adapter",
		Provider:        provider,
		Kind:            types.IntegrationAPIConnection,
		ActivationState: state,
		UpdatedAt:       logging.CtxTime(ctx),
	}
	if cause != nil {
		record.LastError = cause.Error()
	}
	if err := c.uc.clients.EntityStore().PutIntegration(ctx, record); err != nil {
		errutil.HandleError(ctx, "failed to save adapter capability", err)
	}
}

func (c *cycle) addDiscoveryError(ctx context.Context, provider types.ProviderTag, err error) {
	c.mu.Lock()
	c.run.DiscoveryErrors = append(c.run.DiscoveryErrors, provider.String()+": "+err.Error())
	runID := c.run.ID
	c.mu.Unlock()

	entry := model.NewAuditEntry(model.AuditDiscoveryError, runID, logging.CtxTime(ctx))
	entry.Target = model.AdapterCapabilityID(provider)
	entry.Reason = err.Error()
	entry.ErrorClass = types.Classify(err)
	c.appendAudit(ctx, entry)
}

func (c *cycle) appendAudit(ctx context.Context, entry *model.AuditEntry) {
	if err := c.uc.clients.AuditSink().Append(ctx, entry); err != nil {
		errutil.HandleError(ctx, "failed to append audit entry", err)
	}
}

func (c *cycle) adapterTimeout() time.Duration {
	return c.uc.fleet.AdapterTimeoutDuration()
}

// callAdapter runs fn under the adapter deadline. A call that runs out of
// time is a transient failure.
func callAdapter[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(callCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, types.ErrTransientNetwork) {
		return v, goerr.Wrap(types.ErrTransientNetwork, "adapter call timed out",
			goerr.V("timeout", timeout),
			goerr.V("cause", err.Error()),
		)
	}
	return v, err
}

func callAdapterErr(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	_, err := callAdapter(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// keyedMutex is the per-repository exclusive section.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[types.EntityID]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[types.EntityID]*sync.Mutex)}
}

// Lock locks every key in ID order and returns the unlock function.
func (x *keyedMutex) Lock(keys ...types.EntityID) func() {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	x.mu.Lock()
	held := make([]*sync.Mutex, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		m, ok := x.locks[key]
		if !ok {
			m = &sync.Mutex{}
			x.locks[key] = m
		}
		held = append(held, m)
	}
	x.mu.Unlock()

	for _, m := range held {
		m.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
