package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
)

func TestFleetConfigNormalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := &model.FleetConfig{}
		gt.NoError(t, cfg.Normalize())
		gt.V(t, cfg.MaxAttempts).Equal(model.DefaultMaxAttempts)
		gt.V(t, cfg.Concurrency).Equal(model.DefaultConcurrency)
		gt.V(t, cfg.CycleLockTimeoutDuration()).Equal(model.DefaultCycleLockTimeout)
		gt.V(t, cfg.AdapterTimeoutDuration()).Equal(model.DefaultAdapterTimeout)
	})

	t.Run("durations", func(t *testing.T) {
		cfg := &model.FleetConfig{CycleLockTimeout: "10m", AdapterTimeout: "5s"}
		gt.NoError(t, cfg.Normalize())
		gt.V(t, cfg.CycleLockTimeoutDuration()).Equal(10 * time.Minute)
		gt.V(t, cfg.AdapterTimeoutDuration()).Equal(5 * time.Second)
	})

	t.Run("integration defaults", func(t *testing.T) {
		cfg := &model.FleetConfig{
			Integrations: []model.IntegrationConfig{{ID: "sync", Provider: types.ProviderGCS}},
		}
		gt.NoError(t, cfg.Normalize())
		gt.V(t, cfg.Integrations[0].Kind).Equal(types.IntegrationAPIConnection)
		gt.V(t, cfg.Integrations[0].Name).Equal("sync")
	})

	invalid := map[string]*model.FleetConfig{
		"negative attempts": {MaxAttempts: -1},
		"bad duration":      {CycleLockTimeout: "soon"},
		"zero duration":     {AdapterTimeout: "0s"},
		"repo without name": {Repositories: []model.RepositoryConfig{{Provider: types.ProviderGitHub}}},
		"duplicate repo": {Repositories: []model.RepositoryConfig{
			{Provider: types.ProviderGitHub, Owner: "o", Name: "r"},
			{Provider: types.ProviderGitHub, Owner: "o", Name: "r"},
		}},
		"bad createdAt": {Repositories: []model.RepositoryConfig{
			{Provider: types.ProviderGitHub, Owner: "o", Name: "r", CreatedAt: "yesterday"},
		}},
		"bad integration kind": {Integrations: []model.IntegrationConfig{
			{ID: "x", Provider: types.ProviderAPI, Kind: "plugin"},
		}},
	}
	for name, cfg := range invalid {
		t.Run(name, func(t *testing.T) {
			err := cfg.Normalize()
			gt.Error(t, err)
			gt.True(t, errors.Is(err, types.ErrConfig))
		})
	}
}

func TestFleetConfigIsManaged(t *testing.T) {
	cfg := &model.FleetConfig{}
	gt.True(t, cfg.IsManaged("github:any/repo"))

	cfg.Repositories = []model.RepositoryConfig{{Provider: types.ProviderGitHub, Owner: "o", Name: "r"}}
	gt.True(t, cfg.IsManaged("github:o/r"))
	gt.False(t, cfg.IsManaged("github:o/other"))
}
