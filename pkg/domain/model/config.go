package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/types"
)

const (
	DefaultMaxAttempts      = 3
	DefaultCycleLockTimeout = 30 * time.Minute
	DefaultAdapterTimeout   = time.Minute
	DefaultConcurrency      = 4
)

// FleetConfig is the declarative list of repositories and integrations the
// orchestrator manages, with the recognized reconciliation options.
type FleetConfig struct {
	Repositories     []RepositoryConfig  `json:"repositories"`
	Integrations     []IntegrationConfig `json:"integrations"`
	MaxAttempts      int                 `json:"maxAttempts"`
	CycleLockTimeout string              `json:"cycleLockTimeout"`
	AdapterTimeout   string              `json:"adapterTimeout"`
	Concurrency      int                 `json:"concurrency"`

	cycleLockTimeout time.Duration
	adapterTimeout   time.Duration
}

type RepositoryConfig struct {
	Provider types.ProviderTag `json:"provider"`
	Owner    string            `json:"owner"`
	Name     string            `json:"name"`
	// DuplicateGroup overrides duplicate detection: repositories sharing a
	// group name are duplicates of each other.
	DuplicateGroup string `json:"duplicateGroup"`
	// CreatedAt overrides the creation time reported by the provider.
	CreatedAt string `json:"createdAt"`
}

func (x RepositoryConfig) ID() types.EntityID {
	name := x.Name
	if x.Owner != "" {
		name = x.Owner + "/" + x.Name
	}
	return RepositoryID(x.Provider, name)
}

type IntegrationConfig struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	Provider types.ProviderTag     `json:"provider"`
	Kind     types.IntegrationKind `json:"kind"`
}

func (x IntegrationConfig) EntityID() types.EntityID {
	return types.NewEntityID(x.Provider, x.ID)
}

// Normalize fills defaults and validates the configuration. Any problem is an
// ErrConfig, which is fatal before a cycle starts.
func (x *FleetConfig) Normalize() error {
	if x.MaxAttempts == 0 {
		x.MaxAttempts = DefaultMaxAttempts
	}
	if x.MaxAttempts < 1 {
		return goerr.Wrap(types.ErrConfig, "maxAttempts must be positive", goerr.V("maxAttempts", x.MaxAttempts))
	}
	if x.Concurrency == 0 {
		x.Concurrency = DefaultConcurrency
	}
	if x.Concurrency < 1 {
		return goerr.Wrap(types.ErrConfig, "concurrency must be positive", goerr.V("concurrency", x.Concurrency))
	}

	var err error
	if x.cycleLockTimeout, err = parseDuration(x.CycleLockTimeout, DefaultCycleLockTimeout); err != nil {
		return goerr.Wrap(err, "invalid cycleLockTimeout")
	}
	if x.adapterTimeout, err = parseDuration(x.AdapterTimeout, DefaultAdapterTimeout); err != nil {
		return goerr.Wrap(err, "invalid adapterTimeout")
	}

	seen := make(map[types.EntityID]struct{})
	for i, repo := range x.Repositories {
		if repo.Provider == "" || repo.Name == "" {
			return goerr.Wrap(types.ErrConfig, "repository requires provider and name", goerr.V("index", i))
		}
		if repo.CreatedAt != "" {
			if _, err := time.Parse(time.RFC3339, repo.CreatedAt); err != nil {
				return goerr.Wrap(types.ErrConfig, "repository createdAt must be RFC3339",
					goerr.V("index", i), goerr.V("createdAt", repo.CreatedAt))
			}
		}
		if _, ok := seen[repo.ID()]; ok {
			return goerr.Wrap(types.ErrConfig, "repository listed twice", goerr.V("id", repo.ID()))
		}
		seen[repo.ID()] = struct{}{}
	}

	for i, ig := range x.Integrations {
		if ig.ID == "" || ig.Provider == "" {
			return goerr.Wrap(types.ErrConfig, "integration requires id and provider", goerr.V("index", i))
		}
		switch ig.Kind {
		case types.IntegrationCLITool, types.IntegrationAPIConnection:
		case "":
			x.Integrations[i].Kind = types.IntegrationAPIConnection
		default:
			return goerr.Wrap(types.ErrConfig, "unknown integration kind", goerr.V("kind", ig.Kind))
		}
		if ig.Name == "" {
			x.Integrations[i].Name = ig.ID
		}
		if _, ok := seen[ig.EntityID()]; ok {
			return goerr.Wrap(types.ErrConfig, "integration listed twice", goerr.V("id", ig.EntityID()))
		}
		seen[ig.EntityID()] = struct{}{}
	}

	return nil
}

func (x *FleetConfig) CycleLockTimeoutDuration() time.Duration {
	if x.cycleLockTimeout == 0 {
		return DefaultCycleLockTimeout
	}
	return x.cycleLockTimeout
}

func (x *FleetConfig) AdapterTimeoutDuration() time.Duration {
	if x.adapterTimeout == 0 {
		return DefaultAdapterTimeout
	}
	return x.adapterTimeout
}

// Repository returns the configuration of the repository with id.
func (x *FleetConfig) Repository(id types.EntityID) (RepositoryConfig, bool) {
	for _, repo := range x.Repositories {
		if repo.ID() == id {
			return repo, true
		}
	}
	return RepositoryConfig{}, false
}

// IsManaged reports whether the repository is listed in the fleet file. An
// empty repository list manages every discovered repository.
func (x *FleetConfig) IsManaged(id types.EntityID) bool {
	if len(x.Repositories) == 0 {
		return true
	}
	_, ok := x.Repository(id)
	return ok
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, goerr.Wrap(types.ErrConfig, "invalid duration", goerr.V("value", s))
	}
	if d <= 0 {
		return 0, goerr.Wrap(types.ErrConfig, "duration must be positive", goerr.V("value", s))
	}
	return d, nil
}
