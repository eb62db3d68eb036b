// Package localgit is an adapter over local clones kept under one root
// directory. Every direct subdirectory that is a git repository is a
// repository of the fleet.
package localgit

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

const DefaultOwner = "local"

type Adapter struct {
	root  string
	owner string
}

var _ interfaces.Adapter = (*Adapter)(nil)

type Option func(*Adapter)

// WithOwner sets the owner part of repository IDs.
func WithOwner(owner string) Option {
	return func(x *Adapter) {
		x.owner = owner
	}
}

func New(root string, options ...Option) (*Adapter, error) {
	if root == "" {
		return nil, goerr.Wrap(types.ErrConfig, "repos root is empty")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, goerr.Wrap(types.ErrConfig, "repos root is not accessible", goerr.V("root", root), goerr.V("cause", err.Error()))
	}
	if !info.IsDir() {
		return nil, goerr.Wrap(types.ErrConfig, "repos root is not a directory", goerr.V("root", root))
	}

	adapter := &Adapter{root: root, owner: DefaultOwner}
	for _, opt := range options {
		opt(adapter)
	}
	return adapter, nil
}

func (x *Adapter) Provider() types.ProviderTag { return types.ProviderLocalGit }

func (x *Adapter) repositoryID(dir string) types.EntityID {
	return model.RepositoryID(types.ProviderLocalGit, x.owner+"/"+dir)
}

// open resolves a repository ID to its clone.
func (x *Adapter) open(repoID types.EntityID) (*git.Repository, error) {
	owner, dir, ok := strings.Cut(repoID.ExternalID(), "/")
	if !ok || owner != x.owner || dir == "" || strings.ContainsAny(dir, `/\`) || dir == ".." {
		return nil, goerr.Wrap(types.ErrNotFound, "repository is not under this root", goerr.V("id", repoID))
	}

	repo, err := git.PlainOpen(filepath.Join(x.root, dir))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, goerr.Wrap(types.ErrNotFound, "repository does not exist", goerr.V("id", repoID))
		}
		return nil, goerr.Wrap(err, "failed to open git repository", goerr.V("id", repoID))
	}
	return repo, nil
}

// ListEntities implements interfaces.Adapter. Local clones have no pull
// requests or integrations.
func (x *Adapter) ListEntities(ctx context.Context, kind types.EntityKind) ([]model.EntityRef, error) {
	switch kind {
	case types.EntityRepository, types.EntityBranch:
	default:
		return nil, goerr.Wrap(types.ErrUnsupported, "local git lists no such entity", goerr.V("kind", kind))
	}

	dirs, err := x.listRepositoryDirs(ctx)
	if err != nil {
		return nil, err
	}

	var refs []model.EntityRef
	for _, dir := range dirs {
		repoID := x.repositoryID(dir)
		if kind == types.EntityRepository {
			refs = append(refs, model.EntityRef{ID: repoID, Kind: kind, Provider: types.ProviderLocalGit})
			continue
		}

		repo, err := x.open(repoID)
		if err != nil {
			return nil, err
		}
		names, err := branchNames(repo)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list branches", goerr.V("id", repoID))
		}
		for _, name := range names {
			refs = append(refs, model.EntityRef{
				ID:           model.BranchID(repoID, name),
				Kind:         kind,
				Provider:     types.ProviderLocalGit,
				RepositoryID: repoID,
			})
		}
	}
	return refs, nil
}

func (x *Adapter) listRepositoryDirs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(x.root)
	if err != nil {
		return nil, goerr.Wrap(types.ErrConfig, "failed to read repos root", goerr.V("root", x.root), goerr.V("cause", err.Error()))
	}

	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, err := git.PlainOpen(filepath.Join(x.root, entry.Name())); err != nil {
			logging.From(ctx).Debug("skip non-git directory", slog.String("dir", entry.Name()))
			continue
		}
		dirs = append(dirs, entry.Name())
	}
	return dirs, nil
}

func branchNames(repo *git.Repository) ([]types.BranchName, error) {
	iter, err := repo.Branches()
	if err != nil {
		return nil, err
	}
	var names []types.BranchName
	if err := iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, types.BranchName(ref.Name().Short()))
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, nil
}

// ReadState implements interfaces.Adapter.
func (x *Adapter) ReadState(ctx context.Context, ref model.EntityRef) (*model.EntitySnapshot, error) {
	switch ref.Kind {
	case types.EntityRepository:
		repo, err := x.open(ref.ID)
		if err != nil {
			return nil, err
		}
		snap, err := readRepository(repo)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read repository", goerr.V("id", ref.ID))
		}
		_, snap.Name, _ = strings.Cut(ref.ID.ExternalID(), "/")
		snap.Owner = x.owner
		return &model.EntitySnapshot{Ref: ref, Repository: snap}, nil

	case types.EntityBranch:
		repoID, name, ok := model.SplitBranchID(ref.ID)
		if !ok {
			return nil, goerr.Wrap(types.ErrValidationFailed, "malformed branch id", goerr.V("id", ref.ID))
		}
		repo, err := x.open(repoID)
		if err != nil {
			return nil, err
		}
		snap, err := readBranch(repo, name)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read branch", goerr.V("id", ref.ID))
		}
		return &model.EntitySnapshot{Ref: ref, Branch: snap}, nil
	}

	return nil, goerr.Wrap(types.ErrUnsupported, "local git has no such entity", goerr.V("ref", ref))
}

func defaultBranch(repo *git.Repository) (*plumbing.Reference, error) {
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, goerr.Wrap(types.ErrNotFound, "repository has no commits")
		}
		return nil, err
	}
	if !head.Name().IsBranch() {
		return nil, goerr.Wrap(types.ErrConflict, "HEAD is detached")
	}
	return head, nil
}

// readRepository fingerprints the history by its root commit, which clones
// of one repository share.
func readRepository(repo *git.Repository) (*model.RepositorySnapshot, error) {
	head, err := defaultBranch(repo)
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to walk history")
	}
	var root *object.Commit
	if err := iter.ForEach(func(c *object.Commit) error {
		if c.NumParents() == 0 {
			root = c
		}
		return nil
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to walk history")
	}
	if root == nil {
		return nil, goerr.New("no root commit found", goerr.V("head", head.Hash().String()))
	}

	return &model.RepositorySnapshot{
		DefaultBranch:      types.BranchName(head.Name().Short()),
		HistoryFingerprint: "git:" + root.Hash.String(),
		CreatedAt:          root.Committer.When.UTC(),
	}, nil
}

func readBranch(repo *git.Repository, name types.BranchName) (*model.BranchSnapshot, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(string(name)), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, goerr.Wrap(types.ErrNotFound, "branch does not exist", goerr.V("branch", name))
		}
		return nil, err
	}

	head, err := defaultBranch(repo)
	if err != nil {
		return nil, err
	}

	snap := &model.BranchSnapshot{
		Name:      name,
		HeadSHA:   types.CommitSHA(ref.Hash().String()),
		IsDefault: head.Name() == ref.Name(),
	}
	if snap.IsDefault {
		return snap, nil
	}

	branchCommit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get branch commit")
	}
	headCommit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get default branch commit")
	}
	merged, err := branchCommit.IsAncestor(headCommit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compare branch with default branch")
	}
	snap.HasUnmergedWork = !merged

	return snap, nil
}

func (x *Adapter) Merge(ctx context.Context, pr model.EntityRef, opts model.MergeOptions) (*model.MergeResult, error) {
	return nil, goerr.Wrap(types.ErrUnsupported, "local git has no pull requests", goerr.V("id", pr.ID))
}

// DeleteBranch implements interfaces.Adapter. The checked out branch is
// never deleted.
func (x *Adapter) DeleteBranch(ctx context.Context, ref model.EntityRef) error {
	repoID, name, ok := model.SplitBranchID(ref.ID)
	if !ok {
		return goerr.Wrap(types.ErrValidationFailed, "malformed branch id", goerr.V("id", ref.ID))
	}
	repo, err := x.open(repoID)
	if err != nil {
		return err
	}

	refName := plumbing.NewBranchReferenceName(string(name))
	if _, err := repo.Reference(refName, false); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return goerr.Wrap(types.ErrNotFound, "branch does not exist", goerr.V("id", ref.ID))
		}
		return goerr.Wrap(err, "failed to get branch", goerr.V("id", ref.ID))
	}

	head, err := repo.Head()
	if err == nil && head.Name() == refName {
		return goerr.Wrap(types.ErrConflict, "branch is checked out", goerr.V("id", ref.ID))
	}

	if err := repo.Storer.RemoveReference(refName); err != nil {
		return goerr.Wrap(err, "failed to delete branch", goerr.V("id", ref.ID))
	}

	logging.From(ctx).Info("deleted local branch", slog.Any("id", ref.ID))
	return nil
}

func (x *Adapter) Verify(ctx context.Context, ref model.EntityRef) error {
	return goerr.Wrap(types.ErrUnsupported, "local git has no integrations", goerr.V("id", ref.ID))
}

func (x *Adapter) Activate(ctx context.Context, ref model.EntityRef) error {
	return goerr.Wrap(types.ErrUnsupported, "local git has no integrations", goerr.V("id", ref.ID))
}
