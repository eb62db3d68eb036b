package model

import (
	"time"

	"github.com/m-mizutani/octomend/pkg/domain/types"
)

// IntegrationCapability is an external integration the orchestrator keeps
// activated. Every registered adapter also has one capability record of its
// own (see AdapterCapabilityID) where discovery errors are recorded.
type IntegrationCapability struct {
	ID              types.EntityID        `json:"id"`
	Name            string                `json:"name"`
	Provider        types.ProviderTag     `json:"provider"`
	Kind            types.IntegrationKind `json:"kind"`
	ActivationState types.ActivationState `json:"activation_state"`
	LastError       string                `json:"last_error,omitempty"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// AdapterCapabilityID returns the ID of the capability record that tracks the
// health of the adapter registered for provider.
func AdapterCapabilityID(provider types.ProviderTag) types.EntityID {
	return types.NewEntityID(provider, "adapter")
}

func (x *IntegrationCapability) IsAdapterRecord() bool {
	return x.ID == AdapterCapabilityID(x.Provider)
}

func (x *IntegrationCapability) Copy() *IntegrationCapability {
	if x == nil {
		return nil
	}
	c := *x
	return &c
}
