package model

import (
	"slices"
	"time"

	"github.com/m-mizutani/octomend/pkg/domain/types"
)

// GapNote is a gap note attributed to the entity it was recorded for.
type GapNote struct {
	Target types.EntityID `json:"target"`
	Note   string         `json:"note"`
}

// ScheduledRun is one reconciliation cycle. At most one run is running at any
// time in a process.
type ScheduledRun struct {
	ID                 types.RunID         `json:"id"`
	Trigger            types.TriggerSource `json:"trigger"`
	DryRun             bool                `json:"dry_run"`
	StartedAt          time.Time           `json:"started_at"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	TasksAttempted     int                 `json:"tasks_attempted"`
	TasksSucceeded     int                 `json:"tasks_succeeded"`
	TasksFailed        int                 `json:"tasks_failed"`
	TasksSkipped       int                 `json:"tasks_skipped"`
	IsCurrentlyRunning bool                `json:"is_currently_running"`

	GapNotes        []GapNote           `json:"gap_notes,omitempty"`
	AuthFailures    []types.ProviderTag `json:"auth_failures,omitempty"`
	DiscoveryErrors []string            `json:"discovery_errors,omitempty"`
	FatalError      string              `json:"fatal_error,omitempty"`
}

func NewScheduledRun(trigger types.TriggerSource, startedAt time.Time, dryRun bool) *ScheduledRun {
	return &ScheduledRun{
		ID:                 types.NewRunID(startedAt),
		Trigger:            trigger,
		DryRun:             dryRun,
		StartedAt:          startedAt,
		IsCurrentlyRunning: true,
	}
}

// Record counts a finished task. Every task counted here has been attempted.
func (x *ScheduledRun) Record(task *RemediationTask) {
	x.TasksAttempted++
	switch task.Status {
	case types.TaskSucceeded:
		x.TasksSucceeded++
	case types.TaskSkipped:
		x.TasksSkipped++
	default:
		x.TasksFailed++
	}
	for _, note := range task.GapNotes {
		x.GapNotes = append(x.GapNotes, GapNote{Target: task.TargetEntityID, Note: note})
	}
}

func (x *ScheduledRun) AddAuthFailure(provider types.ProviderTag) {
	if !slices.Contains(x.AuthFailures, provider) {
		x.AuthFailures = append(x.AuthFailures, provider)
	}
}

// Complete closes the run.
func (x *ScheduledRun) Complete(at time.Time) {
	x.CompletedAt = &at
	x.IsCurrentlyRunning = false
}

func (x *ScheduledRun) Copy() *ScheduledRun {
	if x == nil {
		return nil
	}
	c := *x
	if x.CompletedAt != nil {
		t := *x.CompletedAt
		c.CompletedAt = &t
	}
	c.GapNotes = slices.Clone(x.GapNotes)
	c.AuthFailures = slices.Clone(x.AuthFailures)
	c.DiscoveryErrors = slices.Clone(x.DiscoveryErrors)
	return &c
}

// RunReport is a finished run together with the tasks it executed.
type RunReport struct {
	Run   *ScheduledRun      `json:"run"`
	Tasks []*RemediationTask `json:"tasks"`
}

// RunRecord is the row exported to BigQuery for each finished run.
type RunRecord struct {
	ID             string        `bigquery:"id" json:"id"`
	Trigger        string        `bigquery:"trigger" json:"trigger"`
	DryRun         bool          `bigquery:"dry_run" json:"dry_run"`
	StartedAt      int64         `bigquery:"started_at" json:"started_at"`
	CompletedAt    int64         `bigquery:"completed_at" json:"completed_at"`
	TasksAttempted int64         `bigquery:"tasks_attempted" json:"tasks_attempted"`
	TasksSucceeded int64         `bigquery:"tasks_succeeded" json:"tasks_succeeded"`
	TasksFailed    int64         `bigquery:"tasks_failed" json:"tasks_failed"`
	TasksSkipped   int64         `bigquery:"tasks_skipped" json:"tasks_skipped"`
	AuthFailures   []string      `bigquery:"auth_failures" json:"auth_failures"`
	GapNotes       []GapNoteItem `bigquery:"gap_notes" json:"gap_notes"`
}

type GapNoteItem struct {
	Target string `bigquery:"target" json:"target"`
	Note   string `bigquery:"note" json:"note"`
}

// NewRunRecord flattens run for export. Timestamps are microseconds since epoch.
func NewRunRecord(run *ScheduledRun) *RunRecord {
	rec := &RunRecord{
		ID:             run.ID.String(),
		Trigger:        string(run.Trigger),
		DryRun:         run.DryRun,
		StartedAt:      run.StartedAt.UnixMicro(),
		TasksAttempted: int64(run.TasksAttempted),
		TasksSucceeded: int64(run.TasksSucceeded),
		TasksFailed:    int64(run.TasksFailed),
		TasksSkipped:   int64(run.TasksSkipped),
		AuthFailures:   []string{},
		GapNotes:       []GapNoteItem{},
	}
	if run.CompletedAt != nil {
		rec.CompletedAt = run.CompletedAt.UnixMicro()
	}
	for _, p := range run.AuthFailures {
		rec.AuthFailures = append(rec.AuthFailures, p.String())
	}
	for _, n := range run.GapNotes {
		rec.GapNotes = append(rec.GapNotes, GapNoteItem{Target: n.Target.String(), Note: n.Note})
	}
	return rec
}
