package model

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/types"
)

// PullRequest is owned by exactly one Repository and references one source
// Branch. Its State moves through the remediation state machine:
//
//	discovered -> under_review -> {complete, partial} -> merged
//	any non-terminal state -> abandoned
//
// GapNotes is append-only and survives every transition.
type PullRequest struct {
	ID               types.EntityID
	RepositoryID     types.EntityID
	Number           int
	SourceBranch     types.BranchName
	TargetBranch     types.BranchName
	DiffCompleteness types.DiffCompleteness
	State            types.PRState
	GapNotes         []string
	UpdatedAt        time.Time
}

var prTransitions = map[types.PRState][]types.PRState{
	types.PRDiscovered:  {types.PRUnderReview},
	types.PRUnderReview: {types.PRComplete, types.PRPartial},
	types.PRComplete:    {types.PRMerged},
	types.PRPartial:     {types.PRMerged},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to types.PRState) bool {
	if from.IsTerminal() {
		return false
	}
	if to == types.PRAbandoned {
		return true
	}
	return slices.Contains(prTransitions[from], to)
}

// Transition moves the pull request to state to. Transitions to the current
// state are no-ops so that replaying a step is harmless.
func (x *PullRequest) Transition(to types.PRState) error {
	if x.State == to {
		return nil
	}
	if !CanTransition(x.State, to) {
		return goerr.Wrap(types.ErrValidationFailed, "invalid pull request transition",
			goerr.V("id", x.ID),
			goerr.V("from", x.State),
			goerr.V("to", to),
		)
	}
	x.State = to
	return nil
}

// ObserveMerged records that the pull request has been merged upstream,
// whatever the local state was. Terminal states are left untouched.
func (x *PullRequest) ObserveMerged() bool {
	if x.State.IsTerminal() {
		return false
	}
	x.State = types.PRMerged
	return true
}

// AppendGapNotes appends notes that are not recorded yet, keeping their order.
// It returns the number of notes added.
func (x *PullRequest) AppendGapNotes(notes ...string) int {
	added := 0
	for _, note := range notes {
		if note == "" || slices.Contains(x.GapNotes, note) {
			continue
		}
		x.GapNotes = append(x.GapNotes, note)
		added++
	}
	return added
}

func (x *PullRequest) IsTerminal() bool {
	return x.State.IsTerminal()
}

// SourceBranchID is the EntityID of the branch the pull request merges from.
func (x *PullRequest) SourceBranchID() types.EntityID {
	return BranchID(x.RepositoryID, x.SourceBranch)
}

func (x *PullRequest) Copy() *PullRequest {
	if x == nil {
		return nil
	}
	c := *x
	c.GapNotes = slices.Clone(x.GapNotes)
	return &c
}

// RepositoryID builds the EntityID of a repository.
func RepositoryID(provider types.ProviderTag, fullName string) types.EntityID {
	return types.NewEntityID(provider, fullName)
}

// BranchID builds the EntityID of a branch from its repository.
func BranchID(repoID types.EntityID, name types.BranchName) types.EntityID {
	return types.EntityID(string(repoID) + "@" + string(name))
}

// PullRequestID builds the EntityID of a pull request from its repository.
func PullRequestID(repoID types.EntityID, number int) types.EntityID {
	return types.EntityID(string(repoID) + "#" + strconv.Itoa(number))
}

// SplitBranchID is the inverse of BranchID. Repository names never contain
// "@", so the first "@" separates the repository from the branch name.
func SplitBranchID(id types.EntityID) (types.EntityID, types.BranchName, bool) {
	repo, branch, ok := strings.Cut(string(id), "@")
	if !ok || branch == "" {
		return "", "", false
	}
	return types.EntityID(repo), types.BranchName(branch), true
}

// SplitPullRequestID is the inverse of PullRequestID.
func SplitPullRequestID(id types.EntityID) (types.EntityID, int, bool) {
	repo, num, ok := strings.Cut(string(id), "#")
	if !ok {
		return "", 0, false
	}
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return types.EntityID(repo), n, true
}
