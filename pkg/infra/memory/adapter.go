// Package memory is test support: a scripted in-process Adapter whose external
// state is held in maps, with injectable errors per operation and target. Use
// case tests drive whole cycles against it the way repository/testhelper
// drives every store backend. It is not selectable from the command line.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
)

// Op names an adapter capability for error injection.
type Op string

const (
	OpList     Op = "list"
	OpRead     Op = "read"
	OpMerge    Op = "merge"
	OpDelete   Op = "delete"
	OpVerify   Op = "verify"
	OpActivate Op = "activate"
)

type injectedError struct {
	err error
	// remaining is the number of calls that still fail; negative is forever.
	remaining int
}

type owned[T any] struct {
	repoID types.EntityID
	snap   T
}

type Adapter struct {
	provider types.ProviderTag

	mu           sync.Mutex
	repos        map[types.EntityID]model.RepositorySnapshot
	branches     map[types.EntityID]owned[model.BranchSnapshot]
	pullRequests map[types.EntityID]owned[model.PullRequestSnapshot]
	integrations map[types.EntityID]model.IntegrationSnapshot
	errors       map[Op]map[types.EntityID]*injectedError

	mutations []Mutation
}

// Mutation records one successful mutating call.
type Mutation struct {
	Op     Op
	Target types.EntityID
	Opts   model.MergeOptions
}

var _ interfaces.Adapter = (*Adapter)(nil)

func NewAdapter(provider types.ProviderTag) *Adapter {
	return &Adapter{
		provider:     provider,
		repos:        make(map[types.EntityID]model.RepositorySnapshot),
		branches:     make(map[types.EntityID]owned[model.BranchSnapshot]),
		pullRequests: make(map[types.EntityID]owned[model.PullRequestSnapshot]),
		integrations: make(map[types.EntityID]model.IntegrationSnapshot),
		errors:       make(map[Op]map[types.EntityID]*injectedError),
	}
}

func (x *Adapter) Provider() types.ProviderTag { return x.provider }

// Seeding

func (x *Adapter) AddRepository(snap model.RepositorySnapshot) types.EntityID {
	x.mu.Lock()
	defer x.mu.Unlock()

	fullName := snap.Name
	if snap.Owner != "" {
		fullName = snap.Owner + "/" + snap.Name
	}
	id := model.RepositoryID(x.provider, fullName)
	x.repos[id] = snap
	return id
}

func (x *Adapter) AddBranch(repoID types.EntityID, snap model.BranchSnapshot) types.EntityID {
	x.mu.Lock()
	defer x.mu.Unlock()

	id := model.BranchID(repoID, snap.Name)
	x.branches[id] = owned[model.BranchSnapshot]{repoID: repoID, snap: snap}
	return id
}

func (x *Adapter) AddPullRequest(repoID types.EntityID, snap model.PullRequestSnapshot) types.EntityID {
	x.mu.Lock()
	defer x.mu.Unlock()

	id := model.PullRequestID(repoID, snap.Number)
	x.pullRequests[id] = owned[model.PullRequestSnapshot]{repoID: repoID, snap: snap}
	return id
}

func (x *Adapter) AddIntegration(externalID string, snap model.IntegrationSnapshot) types.EntityID {
	x.mu.Lock()
	defer x.mu.Unlock()

	id := types.NewEntityID(x.provider, externalID)
	x.integrations[id] = snap
	return id
}

// RemoveBranch drops a branch upstream, as if someone deleted it by hand.
func (x *Adapter) RemoveBranch(id types.EntityID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.branches, id)
}

// SetError makes calls of op fail with err. An empty target matches every
// entity. times limits how many calls fail; zero or negative fails forever.
func (x *Adapter) SetError(op Op, target types.EntityID, err error, times int) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if times <= 0 {
		times = -1
	}
	if x.errors[op] == nil {
		x.errors[op] = make(map[types.EntityID]*injectedError)
	}
	x.errors[op][target] = &injectedError{err: err, remaining: times}
}

func (x *Adapter) ClearErrors() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.errors = make(map[Op]map[types.EntityID]*injectedError)
}

// Mutations returns the successful mutating calls in call order.
func (x *Adapter) Mutations() []Mutation {
	x.mu.Lock()
	defer x.mu.Unlock()
	return slices.Clone(x.mutations)
}

func (x *Adapter) PullRequest(id types.EntityID) (model.PullRequestSnapshot, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	pr, ok := x.pullRequests[id]
	return pr.snap, ok
}

func (x *Adapter) Branch(id types.EntityID) (model.BranchSnapshot, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	b, ok := x.branches[id]
	return b.snap, ok
}

func (x *Adapter) Integration(id types.EntityID) (model.IntegrationSnapshot, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	ig, ok := x.integrations[id]
	return ig, ok
}

// must be called with lock held
func (x *Adapter) injected(op Op, target types.EntityID) error {
	for _, key := range []types.EntityID{target, ""} {
		e, ok := x.errors[op][key]
		if !ok || e.remaining == 0 {
			continue
		}
		if e.remaining > 0 {
			e.remaining--
		}
		return e.err
	}
	return nil
}

func notFound(ref model.EntityRef) error {
	return goerr.Wrap(types.ErrNotFound, "entity not found", goerr.V("id", ref.ID), goerr.V("kind", ref.Kind))
}

// Capabilities

func (x *Adapter) ListEntities(ctx context.Context, kind types.EntityKind) ([]model.EntityRef, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.injected(OpList, ""); err != nil {
		return nil, err
	}

	var refs []model.EntityRef
	switch kind {
	case types.EntityRepository:
		for id := range x.repos {
			refs = append(refs, model.EntityRef{ID: id, Kind: kind, Provider: x.provider})
		}
	case types.EntityBranch:
		for id, b := range x.branches {
			refs = append(refs, model.EntityRef{ID: id, Kind: kind, Provider: x.provider, RepositoryID: b.repoID})
		}
	case types.EntityPullRequest:
		for id, pr := range x.pullRequests {
			refs = append(refs, model.EntityRef{ID: id, Kind: kind, Provider: x.provider, RepositoryID: pr.repoID})
		}
	case types.EntityIntegration:
		for id := range x.integrations {
			refs = append(refs, model.EntityRef{ID: id, Kind: kind, Provider: x.provider})
		}
	default:
		return nil, goerr.Wrap(types.ErrUnsupported, "unknown entity kind", goerr.V("kind", kind))
	}

	slices.SortFunc(refs, func(a, b model.EntityRef) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return refs, nil
}

func (x *Adapter) ReadState(ctx context.Context, ref model.EntityRef) (*model.EntitySnapshot, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.injected(OpRead, ref.ID); err != nil {
		return nil, err
	}

	snap := &model.EntitySnapshot{Ref: ref}
	switch ref.Kind {
	case types.EntityRepository:
		repo, ok := x.repos[ref.ID]
		if !ok {
			return nil, notFound(ref)
		}
		snap.Repository = &repo
	case types.EntityBranch:
		b, ok := x.branches[ref.ID]
		if !ok {
			return nil, notFound(ref)
		}
		snap.Ref.RepositoryID = b.repoID
		branch := b.snap
		snap.Branch = &branch
	case types.EntityPullRequest:
		p, ok := x.pullRequests[ref.ID]
		if !ok {
			return nil, notFound(ref)
		}
		snap.Ref.RepositoryID = p.repoID
		pr := p.snap
		pr.OpenRequiredChecks = slices.Clone(pr.OpenRequiredChecks)
		pr.UnresolvedNotes = slices.Clone(pr.UnresolvedNotes)
		_, pr.SourceBranchExists = x.branches[model.BranchID(p.repoID, pr.SourceBranch)]
		snap.PullRequest = &pr
	case types.EntityIntegration:
		ig, ok := x.integrations[ref.ID]
		if !ok {
			return nil, notFound(ref)
		}
		snap.Integration = &ig
	default:
		return nil, goerr.Wrap(types.ErrUnsupported, "unknown entity kind", goerr.V("kind", ref.Kind))
	}
	return snap, nil
}

// Merge merges the whole diff, or with opts.Selective only its mergeable part.
// The unresolved items of a selective merge are returned as notes.
func (x *Adapter) Merge(ctx context.Context, ref model.EntityRef, opts model.MergeOptions) (*model.MergeResult, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.injected(OpMerge, ref.ID); err != nil {
		return nil, err
	}

	p, ok := x.pullRequests[ref.ID]
	if !ok {
		return nil, notFound(ref)
	}
	if p.snap.Merged {
		return &model.MergeResult{Outcome: types.MergeOutcomeAlreadyMerged}, nil
	}
	if !p.snap.Mergeable {
		return nil, goerr.Wrap(types.ErrConflict, "pull request is not mergeable", goerr.V("id", ref.ID))
	}

	result := &model.MergeResult{Outcome: types.MergeOutcomeMerged}
	if unresolved := p.snap.Unresolved(); len(unresolved) > 0 || p.snap.HasConflicts {
		if !opts.Selective {
			return nil, goerr.Wrap(types.ErrConflict, "diff has unresolved parts", goerr.V("id", ref.ID))
		}
		result.Outcome = types.MergeOutcomePartialMerged
		result.UnresolvedNotes = unresolved
	}

	p.snap.Merged = true
	p.snap.Open = false
	x.pullRequests[ref.ID] = p

	branchID := model.BranchID(p.repoID, p.snap.SourceBranch)
	if b, ok := x.branches[branchID]; ok {
		b.snap.HasUnmergedWork = false
		x.branches[branchID] = b
	}

	x.mutations = append(x.mutations, Mutation{Op: OpMerge, Target: ref.ID, Opts: opts})
	return result, nil
}

func (x *Adapter) DeleteBranch(ctx context.Context, ref model.EntityRef) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.injected(OpDelete, ref.ID); err != nil {
		return err
	}

	b, ok := x.branches[ref.ID]
	if !ok {
		return notFound(ref)
	}
	if b.snap.IsDefault {
		return goerr.Wrap(types.ErrConflict, "default branch cannot be deleted", goerr.V("id", ref.ID))
	}

	delete(x.branches, ref.ID)
	x.mutations = append(x.mutations, Mutation{Op: OpDelete, Target: ref.ID})
	return nil
}

func (x *Adapter) Verify(ctx context.Context, ref model.EntityRef) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.injected(OpVerify, ref.ID); err != nil {
		return err
	}
	if _, ok := x.integrations[ref.ID]; !ok {
		return notFound(ref)
	}
	return nil
}

func (x *Adapter) Activate(ctx context.Context, ref model.EntityRef) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.injected(OpActivate, ref.ID); err != nil {
		return err
	}

	ig, ok := x.integrations[ref.ID]
	if !ok {
		return notFound(ref)
	}
	ig.Active = true
	x.integrations[ref.ID] = ig
	x.mutations = append(x.mutations, Mutation{Op: OpActivate, Target: ref.ID})
	return nil
}
