package interfaces

//go:generate moq -out ../mock/usecase.go -pkg mock . UseCase Trigger

import (
	"context"

	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
)

type UseCase interface {
	Audit(ctx context.Context) (*model.AuditReport, error)
	RunCycle(ctx context.Context, input *model.RunCycleInput) (*model.RunReport, error)
}

// Trigger is what the HTTP server needs from the scheduler.
type Trigger interface {
	Trigger(ctx context.Context, source types.TriggerSource) bool
	Latest() *model.ScheduledRun
}
