package model

import (
	"time"

	"github.com/m-mizutani/octomend/pkg/domain/types"
)

type RunCycleInput struct {
	// RunID names the run when the caller has already announced it. Empty
	// means a new ID is generated.
	RunID   types.RunID
	Trigger types.TriggerSource
	DryRun  bool
}

// RepositoryHealth summarizes one repository in an audit report.
type RepositoryHealth struct {
	ID                       types.EntityID        `json:"id"`
	Name                     string                `json:"name"`
	State                    types.RepositoryState `json:"state"`
	Canonical                bool                  `json:"canonical,omitempty"`
	DuplicateOf              types.EntityID        `json:"duplicate_of,omitempty"`
	OpenPullRequests         int                   `json:"open_pull_requests"`
	BranchesWithUnmergedWork int                   `json:"branches_with_unmerged_work"`
	StaleBranches            int                   `json:"stale_branches"`
}

// AuditReport is the read-only result of discovery and planning.
type AuditReport struct {
	GeneratedAt     time.Time                `json:"generated_at"`
	Repositories    []RepositoryHealth       `json:"repositories"`
	Integrations    []*IntegrationCapability `json:"integrations"`
	PlannedTasks    []*RemediationTask       `json:"planned_tasks"`
	AuthFailures    []types.ProviderTag      `json:"auth_failures,omitempty"`
	DiscoveryErrors []string                 `json:"discovery_errors,omitempty"`
}
