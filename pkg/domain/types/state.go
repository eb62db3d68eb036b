package types

// EntityKind is the kind of object an adapter can list.
type EntityKind string

const (
	EntityRepository  EntityKind = "repository"
	EntityBranch      EntityKind = "branch"
	EntityPullRequest EntityKind = "pull_request"
	EntityIntegration EntityKind = "integration"
)

// AllEntityKinds is the discovery order: owners before the entities they own.
var AllEntityKinds = []EntityKind{
	EntityRepository,
	EntityBranch,
	EntityPullRequest,
	EntityIntegration,
}

type RepositoryState string

const (
	RepositoryActive       RepositoryState = "active"
	RepositoryConsolidated RepositoryState = "consolidated"
	RepositoryDeleted      RepositoryState = "deleted"
)

func (x RepositoryState) IsTerminal() bool {
	return x == RepositoryConsolidated || x == RepositoryDeleted
}

type BranchState string

const (
	BranchActive  BranchState = "active"
	BranchDeleted BranchState = "deleted"
)

type DiffCompleteness string

const (
	DiffComplete DiffCompleteness = "complete"
	DiffPartial  DiffCompleteness = "partial"
	DiffUnknown  DiffCompleteness = "unknown"
)

// PRState is the state of a pull request in the remediation state machine.
type PRState string

const (
	PRDiscovered  PRState = "discovered"
	PRUnderReview PRState = "under_review"
	PRComplete    PRState = "complete"
	PRPartial     PRState = "partial"
	PRMerged      PRState = "merged"
	PRAbandoned   PRState = "abandoned"
)

func (x PRState) IsTerminal() bool {
	return x == PRMerged || x == PRAbandoned
}

type IntegrationKind string

const (
	IntegrationCLITool       IntegrationKind = "cli_tool"
	IntegrationAPIConnection IntegrationKind = "api_connection"
)

type ActivationState string

const (
	ActivationInactive  ActivationState = "inactive"
	ActivationVerifying ActivationState = "verifying"
	ActivationActive    ActivationState = "active"
	ActivationFailed    ActivationState = "failed"
)

// TaskKind is the kind of remediation task. Declaration order is not the
// priority order; use Priority.
type TaskKind string

const (
	TaskConsolidateDuplicateRepo TaskKind = "consolidate_duplicate_repo"
	TaskMergeOrClosePR           TaskKind = "merge_or_close_pr"
	TaskDeleteStaleBranch        TaskKind = "delete_stale_branch"
	TaskActivateIntegration      TaskKind = "activate_integration"
)

// Priority returns the fixed dispatch priority; lower runs first.
func (x TaskKind) Priority() int {
	switch x {
	case TaskConsolidateDuplicateRepo:
		return 1
	case TaskMergeOrClosePR:
		return 2
	case TaskDeleteStaleBranch:
		return 3
	case TaskActivateIntegration:
		return 4
	default:
		return 99
	}
}

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskInFlight  TaskStatus = "in_flight"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

func (x TaskStatus) IsDone() bool {
	return x == TaskSucceeded || x == TaskFailed || x == TaskSkipped
}

// MergeOutcome is the result kind reported by an adapter merge call.
type MergeOutcome string

const (
	MergeOutcomeMerged        MergeOutcome = "merged"
	MergeOutcomePartialMerged MergeOutcome = "partial_merged"
	MergeOutcomeAlreadyMerged MergeOutcome = "already_merged"
	MergeOutcomeClosed        MergeOutcome = "closed"
)

// TriggerSource names what fired a scheduler cycle.
type TriggerSource string

const (
	TriggerTimer   TriggerSource = "timer"
	TriggerManual  TriggerSource = "manual"
	TriggerWebhook TriggerSource = "webhook"
)
