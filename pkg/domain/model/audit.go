package model

import (
	"time"

	"github.com/m-mizutani/octomend/pkg/domain/types"
)

// AuditEntryKind distinguishes task attempts from cycle level records.
type AuditEntryKind string

const (
	AuditTaskAttempt    AuditEntryKind = "task_attempt"
	AuditRunSummary     AuditEntryKind = "run_summary"
	AuditTriggerDropped AuditEntryKind = "trigger_dropped"
	AuditDiscoveryError AuditEntryKind = "discovery_error"
)

// AuditEntry is one append-only record of the audit sink.
type AuditEntry struct {
	ID         types.AuditID    `json:"id"`
	RunID      types.RunID      `json:"run_id"`
	Kind       AuditEntryKind   `json:"kind"`
	TaskID     types.TaskID     `json:"task_id,omitempty"`
	TaskKind   types.TaskKind   `json:"task_kind,omitempty"`
	Target     types.EntityID   `json:"target,omitempty"`
	Attempt    int              `json:"attempt,omitempty"`
	Status     types.TaskStatus `json:"status,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	ErrorClass types.ErrorClass `json:"error_class,omitempty"`
	GapNotes   []string         `json:"gap_notes,omitempty"`
	Run        *ScheduledRun    `json:"run,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

func NewAuditEntry(kind AuditEntryKind, runID types.RunID, at time.Time) *AuditEntry {
	return &AuditEntry{
		ID:        types.NewAuditID(),
		RunID:     runID,
		Kind:      kind,
		Timestamp: at,
	}
}

// TaskAttemptEntry records the outcome of one attempt of task.
func TaskAttemptEntry(runID types.RunID, task *RemediationTask, at time.Time) *AuditEntry {
	entry := NewAuditEntry(AuditTaskAttempt, runID, at)
	entry.TaskID = task.ID
	entry.TaskKind = task.Kind
	entry.Target = task.TargetEntityID
	entry.Attempt = task.Attempts
	entry.Status = task.Status
	entry.Reason = task.Reason
	entry.ErrorClass = task.ErrorClass
	entry.GapNotes = append([]string(nil), task.GapNotes...)
	return entry
}
