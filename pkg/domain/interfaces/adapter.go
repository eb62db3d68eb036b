package interfaces

//go:generate moq -out ../mock/adapter.go -pkg mock . Adapter

import (
	"context"

	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
)

// Adapter is the capability contract every external system implements. The
// orchestrator core depends only on this interface. Errors are wrapped
// sentinels of the types package (ErrAuth, ErrTransientNetwork, ErrNotFound,
// ErrConflict, ErrConfig); a capability an adapter does not offer returns
// ErrUnsupported.
type Adapter interface {
	Provider() types.ProviderTag

	ListEntities(ctx context.Context, kind types.EntityKind) ([]model.EntityRef, error)
	ReadState(ctx context.Context, ref model.EntityRef) (*model.EntitySnapshot, error)

	Merge(ctx context.Context, pr model.EntityRef, opts model.MergeOptions) (*model.MergeResult, error)
	DeleteBranch(ctx context.Context, branch model.EntityRef) error

	Verify(ctx context.Context, integration model.EntityRef) error
	Activate(ctx context.Context, integration model.EntityRef) error
}
