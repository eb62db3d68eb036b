package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/repository"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

// discover refreshes the entity store from every registered adapter. Adapter
// errors are recorded against the adapter and never stop discovery of other
// adapters. Entities an adapter stops listing are left as they are.
func (x *UseCase) discover(ctx context.Context, c *cycle) error {
	if err := x.seedIntegrations(ctx); err != nil {
		return err
	}

	registry := x.clients.Registry()
	for _, provider := range registry.Providers() {
		adapter, err := registry.Get(provider)
		if err != nil {
			return err
		}

		failed := x.discoverAdapter(ctx, c, adapter)
		if !failed {
			c.setAdapterState(ctx, provider, types.ActivationActive, nil)
		}
	}

	return nil
}

// seedIntegrations stores integrations declared in the fleet file that have
// not been seen yet, so that they are activated even before any adapter lists
// them.
func (x *UseCase) seedIntegrations(ctx context.Context) error {
	store := x.clients.EntityStore()
	for _, cfg := range x.fleet.Integrations {
		_, err := store.GetIntegration(ctx, cfg.EntityID())
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return goerr.Wrap(err, "failed to get integration", goerr.V("id", cfg.EntityID()))
		}

		ig := &model.IntegrationCapability{
			ID:              cfg.EntityID(),
			Name:            cfg.Name,
			Provider:        cfg.Provider,
			Kind:            cfg.Kind,
			ActivationState: types.ActivationInactive,
			UpdatedAt:       logging.CtxTime(ctx),
		}
		if err := store.PutIntegration(ctx, ig); err != nil {
			return goerr.Wrap(err, "failed to save integration", goerr.V("id", ig.ID))
		}
	}
	return nil
}

// discoverAdapter returns true if the adapter reported any error.
func (x *UseCase) discoverAdapter(ctx context.Context, c *cycle, adapter interfaces.Adapter) bool {
	provider := adapter.Provider()
	logger := logging.From(ctx).With(slog.String("provider", provider.String()))
	timeout := c.adapterTimeout()
	failed := false

	for _, kind := range types.AllEntityKinds {
		refs, err := callAdapter(ctx, timeout, func(ctx context.Context) ([]model.EntityRef, error) {
			return adapter.ListEntities(ctx, kind)
		})
		if errors.Is(err, types.ErrUnsupported) {
			continue
		}
		if err != nil {
			failed = true
			logger.Warn("failed to list entities", slog.String("kind", string(kind)), slog.Any("error", err))
			c.addDiscoveryError(ctx, provider, err)
			if errors.Is(err, types.ErrAuth) {
				c.failAdapter(ctx, provider, err)
				return true
			}
			c.setAdapterState(ctx, provider, types.ActivationFailed, err)
			continue
		}

		for _, ref := range refs {
			if !x.isManaged(ref) {
				continue
			}
			if ref.Kind == "" {
				ref.Kind = kind
			}
			if ref.Provider == "" {
				ref.Provider = provider
			}

			snap, err := callAdapter(ctx, timeout, func(ctx context.Context) (*model.EntitySnapshot, error) {
				return adapter.ReadState(ctx, ref)
			})
			if errors.Is(err, types.ErrNotFound) {
				if err := x.markRemoved(ctx, ref); err != nil {
					logger.Warn("failed to mark removed entity", slog.Any("ref", ref), slog.Any("error", err))
				}
				continue
			}
			if err != nil {
				failed = true
				logger.Warn("failed to read entity state", slog.Any("ref", ref), slog.Any("error", err))
				c.addDiscoveryError(ctx, provider, goerr.Wrap(err, "read state", goerr.V("id", ref.ID)))
				if errors.Is(err, types.ErrAuth) {
					c.failAdapter(ctx, provider, err)
					return true
				}
				c.setAdapterState(ctx, provider, types.ActivationFailed, err)
				continue
			}

			if err := x.upsertSnapshot(ctx, snap); err != nil {
				failed = true
				c.addDiscoveryError(ctx, provider, err)
			}
		}
	}

	return failed
}

func (x *UseCase) isManaged(ref model.EntityRef) bool {
	switch ref.Kind {
	case types.EntityRepository:
		return x.fleet.IsManaged(ref.ID)
	case types.EntityBranch, types.EntityPullRequest:
		return ref.RepositoryID == "" || x.fleet.IsManaged(ref.RepositoryID)
	default:
		return true
	}
}

// upsertSnapshot merges a live snapshot into the stored entity. Observed
// attributes are overwritten; reconciliation state (PR state, gap notes,
// duplicate bookkeeping) is kept.
func (x *UseCase) upsertSnapshot(ctx context.Context, snap *model.EntitySnapshot) error {
	store := x.clients.EntityStore()
	now := logging.CtxTime(ctx)
	ref := snap.Ref

	switch {
	case snap.Repository != nil:
		s := snap.Repository
		repo, err := store.GetRepository(ctx, ref.ID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return goerr.Wrap(err, "failed to get repository", goerr.V("id", ref.ID))
			}
			repo = &model.Repository{
				ID:       ref.ID,
				Provider: ref.Provider,
				State:    types.RepositoryActive,
			}
		}
		repo.Owner = s.Owner
		repo.Name = s.Name
		repo.DefaultBranch = s.DefaultBranch
		repo.HistoryFingerprint = s.HistoryFingerprint
		repo.CreatedAt = s.CreatedAt
		repo.DuplicateGroup = ""
		if cfg, ok := x.fleet.Repository(ref.ID); ok {
			repo.DuplicateGroup = cfg.DuplicateGroup
			if cfg.CreatedAt != "" {
				if t, err := time.Parse(time.RFC3339, cfg.CreatedAt); err == nil {
					repo.CreatedAt = t
				}
			}
		}
		repo.LastAuditedAt = now
		repo.UpdatedAt = now
		return store.PutRepository(ctx, repo)

	case snap.Branch != nil:
		s := snap.Branch
		branch, err := store.GetBranch(ctx, ref.ID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return goerr.Wrap(err, "failed to get branch", goerr.V("id", ref.ID))
			}
			branch = &model.Branch{ID: ref.ID}
		}
		branch.RepositoryID = ref.RepositoryID
		branch.Name = s.Name
		branch.HasUnmergedWork = s.HasUnmergedWork
		branch.LastCommitRef = s.HeadSHA
		branch.IsDefault = s.IsDefault
		// Listed again means it exists again upstream.
		branch.State = types.BranchActive
		branch.UpdatedAt = now
		return store.PutBranch(ctx, branch)

	case snap.PullRequest != nil:
		s := snap.PullRequest
		pr, err := store.GetPullRequest(ctx, ref.ID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return goerr.Wrap(err, "failed to get pull request", goerr.V("id", ref.ID))
			}
			pr = &model.PullRequest{
				ID:    ref.ID,
				State: types.PRDiscovered,
			}
		}
		pr.RepositoryID = ref.RepositoryID
		pr.Number = s.Number
		pr.SourceBranch = s.SourceBranch
		pr.TargetBranch = s.TargetBranch
		if !pr.IsTerminal() {
			pr.DiffCompleteness = s.Completeness()
			// Settled upstream before the orchestrator acted on it.
			switch {
			case s.Merged:
				pr.ObserveMerged()
			case !s.Open:
				pr.State = types.PRAbandoned
			}
		}
		pr.UpdatedAt = now
		return store.PutPullRequest(ctx, pr)

	case snap.Integration != nil:
		s := snap.Integration
		ig, err := store.GetIntegration(ctx, ref.ID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return goerr.Wrap(err, "failed to get integration", goerr.V("id", ref.ID))
			}
			ig = &model.IntegrationCapability{
				ID:              ref.ID,
				Provider:        ref.Provider,
				ActivationState: types.ActivationInactive,
			}
		}
		if s.Name != "" {
			ig.Name = s.Name
		}
		if s.Kind != "" {
			ig.Kind = s.Kind
		}
		if s.Active {
			ig.ActivationState = types.ActivationActive
			ig.LastError = ""
		} else if ig.ActivationState == types.ActivationActive {
			ig.ActivationState = types.ActivationInactive
		}
		ig.UpdatedAt = now
		return store.PutIntegration(ctx, ig)
	}

	return goerr.Wrap(types.ErrValidationFailed, "snapshot has no state", goerr.V("ref", ref))
}

// markRemoved marks a stored entity terminal after its adapter reported it as
// not found. Unknown entities are ignored.
func (x *UseCase) markRemoved(ctx context.Context, ref model.EntityRef) error {
	store := x.clients.EntityStore()
	now := logging.CtxTime(ctx)

	switch ref.Kind {
	case types.EntityRepository:
		repo, err := store.GetRepository(ctx, ref.ID)
		if err != nil {
			return ignoreNotFound(err)
		}
		if repo.State == types.RepositoryActive {
			repo.State = types.RepositoryDeleted
			repo.UpdatedAt = now
			return store.PutRepository(ctx, repo)
		}

	case types.EntityBranch:
		branch, err := store.GetBranch(ctx, ref.ID)
		if err != nil {
			return ignoreNotFound(err)
		}
		if !branch.IsTerminal() {
			branch.State = types.BranchDeleted
			branch.UpdatedAt = now
			return store.PutBranch(ctx, branch)
		}

	case types.EntityPullRequest:
		pr, err := store.GetPullRequest(ctx, ref.ID)
		if err != nil {
			return ignoreNotFound(err)
		}
		if !pr.IsTerminal() {
			if err := pr.Transition(types.PRAbandoned); err != nil {
				return err
			}
			pr.UpdatedAt = now
			return store.PutPullRequest(ctx, pr)
		}

	case types.EntityIntegration:
		ig, err := store.GetIntegration(ctx, ref.ID)
		if err != nil {
			return ignoreNotFound(err)
		}
		ig.ActivationState = types.ActivationFailed
		ig.LastError = "integration not found upstream"
		ig.UpdatedAt = now
		return store.PutIntegration(ctx, ig)
	}

	return nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}
