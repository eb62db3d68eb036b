package model

import (
	"time"

	"github.com/m-mizutani/octomend/pkg/domain/types"
)

// EntityRef points at one external object through its adapter.
type EntityRef struct {
	ID       types.EntityID
	Kind     types.EntityKind
	Provider types.ProviderTag
	// RepositoryID is set for branches and pull requests.
	RepositoryID types.EntityID
}

// EntitySnapshot is the live state of one external object. Exactly one of the
// typed fields is set, matching Ref.Kind.
type EntitySnapshot struct {
	Ref         EntityRef
	Repository  *RepositorySnapshot
	Branch      *BranchSnapshot
	PullRequest *PullRequestSnapshot
	Integration *IntegrationSnapshot
}

type RepositorySnapshot struct {
	Owner              string
	Name               string
	DefaultBranch      types.BranchName
	HistoryFingerprint string
	CreatedAt          time.Time
	Archived           bool
}

type BranchSnapshot struct {
	Name            types.BranchName
	HeadSHA         types.CommitSHA
	HasUnmergedWork bool
	IsDefault       bool
}

type PullRequestSnapshot struct {
	Number       int
	SourceBranch types.BranchName
	TargetBranch types.BranchName
	Open         bool
	Merged       bool
	// Mergeable is true when at least part of the diff can be merged.
	Mergeable    bool
	HasConflicts bool
	// OpenRequiredChecks are required status checks that have not passed.
	OpenRequiredChecks []string
	// UnresolvedNotes describe the parts of the diff that are not complete,
	// as reported by the provider.
	UnresolvedNotes    []string
	SourceBranchExists bool
}

// Completeness derives the diff completeness of the pull request.
func (x *PullRequestSnapshot) Completeness() types.DiffCompleteness {
	switch {
	case !x.Mergeable:
		return types.DiffUnknown
	case !x.HasConflicts && len(x.OpenRequiredChecks) == 0 && len(x.UnresolvedNotes) == 0:
		return types.DiffComplete
	default:
		return types.DiffPartial
	}
}

// Unresolved lists every unresolved item: reported notes first, then
// required checks that have not passed.
func (x *PullRequestSnapshot) Unresolved() []string {
	out := append([]string(nil), x.UnresolvedNotes...)
	for _, c := range x.OpenRequiredChecks {
		out = append(out, "required check not passing: "+c)
	}
	return out
}

type IntegrationSnapshot struct {
	Name   string
	Kind   types.IntegrationKind
	Active bool
}

// MergeOptions controls an adapter merge call.
type MergeOptions struct {
	// Selective merges only the mergeable subset of the diff.
	Selective bool
}

type MergeResult struct {
	Outcome         types.MergeOutcome
	UnresolvedNotes []string
}
