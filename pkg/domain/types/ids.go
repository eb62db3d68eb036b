package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProviderTag identifies the external system an entity lives in. It is also
// the key of the adapter registry.
type ProviderTag string

const (
	ProviderGitHub   ProviderTag = "github"
	ProviderLocalGit ProviderTag = "localgit"
	ProviderGCS      ProviderTag = "gcs"
	ProviderAPI      ProviderTag = "api"
)

func (x ProviderTag) String() string { return string(x) }

// EntityID is "<provider>:<external id>".
type EntityID string

func NewEntityID(provider ProviderTag, externalID string) EntityID {
	return EntityID(string(provider) + ":" + externalID)
}

func (x EntityID) String() string { return string(x) }

// Provider returns the provider part of the ID, or empty if the ID is malformed.
func (x EntityID) Provider() ProviderTag {
	p, _, ok := strings.Cut(string(x), ":")
	if !ok {
		return ""
	}
	return ProviderTag(p)
}

// ExternalID returns the provider-local part of the ID.
func (x EntityID) ExternalID() string {
	_, ext, ok := strings.Cut(string(x), ":")
	if !ok {
		return string(x)
	}
	return ext
}

type (
	RunID     string
	TaskID    string
	AuditID   string
	RequestID string
)

// NewRunID builds a run ID from the start time so that runs sort
// chronologically, with a random suffix to keep it unique.
func NewRunID(startedAt time.Time) RunID {
	return RunID(startedAt.UTC().Format("20060102_150405") + "_" + uuid.NewString()[:8])
}

func (x RunID) String() string { return string(x) }

func NewTaskID() TaskID { return TaskID(uuid.NewString()) }

func (x TaskID) String() string { return string(x) }

func NewAuditID() AuditID { return AuditID(uuid.NewString()) }

func (x AuditID) String() string { return string(x) }

func NewRequestID() RequestID { return RequestID(uuid.NewString()) }

func (x RequestID) String() string { return string(x) }
