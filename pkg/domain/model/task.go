package model

import (
	"slices"

	"github.com/m-mizutani/octomend/pkg/domain/types"
)

// RemediationTask is one corrective action planned for one entity in one
// cycle. It is created by the planner and mutated only by the reconciler.
type RemediationTask struct {
	ID             types.TaskID   `json:"id"`
	Kind           types.TaskKind `json:"kind"`
	TargetEntityID types.EntityID `json:"target"`
	// RepositoryID is the job the task is serialized in. Integration tasks have
	// no repository and run in their own job.
	RepositoryID types.EntityID `json:"repository_id,omitempty"`
	// RelatedEntityID is the canonical repository of a consolidation.
	RelatedEntityID types.EntityID    `json:"related,omitempty"`
	Provider        types.ProviderTag `json:"provider"`
	Attempts        int               `json:"attempts"`
	Status          types.TaskStatus  `json:"status"`
	Reason          string            `json:"reason,omitempty"`
	ErrorClass      types.ErrorClass  `json:"error_class,omitempty"`
	GapNotes        []string          `json:"gap_notes,omitempty"`
}

func NewTask(kind types.TaskKind, target, repoID types.EntityID) *RemediationTask {
	return &RemediationTask{
		ID:             types.NewTaskID(),
		Kind:           kind,
		TargetEntityID: target,
		RepositoryID:   repoID,
		Provider:       target.Provider(),
		Status:         types.TaskPending,
	}
}

// Less orders tasks by kind priority, then by target ID.
func (x *RemediationTask) Less(y *RemediationTask) bool {
	if px, py := x.Kind.Priority(), y.Kind.Priority(); px != py {
		return px < py
	}
	return x.TargetEntityID < y.TargetEntityID
}

func (x *RemediationTask) Copy() *RemediationTask {
	if x == nil {
		return nil
	}
	c := *x
	c.GapNotes = slices.Clone(x.GapNotes)
	return &c
}

// SortTasks sorts tasks in dispatch order.
func SortTasks(tasks []*RemediationTask) {
	slices.SortStableFunc(tasks, func(a, b *RemediationTask) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
}
