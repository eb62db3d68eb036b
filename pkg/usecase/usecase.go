package usecase

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/infra"
)

type UseCase struct {
	clients         *infra.Clients
	fleet           *model.FleetConfig
	duplicatePolicy DuplicatePolicy
	newBackOff      func() backoff.BackOff
}

type Option func(*UseCase)

// WithFleetConfig sets the declarative fleet. The config must already be
// normalized.
func WithFleetConfig(fleet *model.FleetConfig) Option {
	return func(x *UseCase) {
		x.fleet = fleet
	}
}

// WithDuplicatePolicy replaces the policy that decides whether two
// repositories without an explicit duplicate group are duplicates.
func WithDuplicatePolicy(policy DuplicatePolicy) Option {
	return func(x *UseCase) {
		x.duplicatePolicy = policy
	}
}

// WithBackOff sets the factory of the back-off between attempts of a task.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(x *UseCase) {
		x.newBackOff = f
	}
}

func New(clients *infra.Clients, options ...Option) *UseCase {
	uc := &UseCase{
		clients:         clients,
		duplicatePolicy: DefaultDuplicatePolicy,
		newBackOff:      defaultBackOff,
	}
	for _, opt := range options {
		opt(uc)
	}

	if uc.fleet == nil {
		uc.fleet = &model.FleetConfig{}
		_ = uc.fleet.Normalize()
	}

	return uc
}

func (x *UseCase) Fleet() *model.FleetConfig {
	return x.fleet
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}
