package model

import (
	"slices"
	"time"

	"github.com/m-mizutani/octomend/pkg/domain/types"
)

// Repository is the orchestrator's view of one source repository.
type Repository struct {
	ID            types.EntityID
	Provider      types.ProviderTag
	Owner         string
	Name          string
	DefaultBranch types.BranchName

	// HistoryFingerprint identifies the repository's history (the root commit
	// for git based providers). Two repositories with the same fingerprint share
	// history.
	HistoryFingerprint string

	// DuplicateGroup is the explicit grouping override from the fleet file.
	DuplicateGroup string
	IsDuplicateOf  types.EntityID
	Canonical      bool

	// CarriedEntities are unmerged branches and open pull requests of
	// consolidated duplicates, recorded on the canonical repository.
	CarriedEntities []types.EntityID
	GapNotes        []string

	State         types.RepositoryState
	CreatedAt     time.Time
	LastAuditedAt time.Time
	UpdatedAt     time.Time
}

func (x *Repository) FullName() string {
	if x.Owner == "" {
		return x.Name
	}
	return x.Owner + "/" + x.Name
}

func (x *Repository) IsTerminal() bool {
	return x.State.IsTerminal()
}

func (x *Repository) Copy() *Repository {
	if x == nil {
		return nil
	}
	c := *x
	c.CarriedEntities = slices.Clone(x.CarriedEntities)
	c.GapNotes = slices.Clone(x.GapNotes)
	return &c
}

// Carry records pointers to entities of a consolidated duplicate. It returns
// the number of pointers added.
func (x *Repository) Carry(ids ...types.EntityID) int {
	added := 0
	for _, id := range ids {
		if !slices.Contains(x.CarriedEntities, id) {
			x.CarriedEntities = append(x.CarriedEntities, id)
			added++
		}
	}
	return added
}

func (x *Repository) AppendGapNote(note string) {
	if note != "" && !slices.Contains(x.GapNotes, note) {
		x.GapNotes = append(x.GapNotes, note)
	}
}
