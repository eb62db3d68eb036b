package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octomend/pkg/cli/config"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
)

const fleetCUE = `
repositories: [
	{provider: "github", owner: "acme", name: "service"},
	{provider: "github", owner: "acme", name: "service-copy", duplicateGroup: "service"},
	{provider: "localgit", owner: "local", name: "tools", createdAt: "2024-01-02T03:04:05Z"},
]
integrations: [
	{id: "sync", provider: "gcs", kind: "cli_tool"},
	{id: "assistant", name: "Assistant API", provider: "api"},
]
maxAttempts:      5
cycleLockTimeout: "10m"
`

func TestParseFleet(t *testing.T) {
	fleet := gt.R1(config.ParseFleet([]byte(fleetCUE), "fleet.cue")).NoError(t)

	gt.A(t, fleet.Repositories).Length(3)
	gt.V(t, fleet.Repositories[1].DuplicateGroup).Equal("service")
	gt.V(t, fleet.Repositories[1].ID()).Equal(types.EntityID("github:acme/service-copy"))
	gt.A(t, fleet.Integrations).Length(2)
	gt.V(t, fleet.Integrations[1].Kind).Equal(types.IntegrationAPIConnection)
	gt.V(t, fleet.Integrations[0].Name).Equal("sync")
	gt.V(t, fleet.MaxAttempts).Equal(5)
	gt.V(t, fleet.Concurrency).Equal(model.DefaultConcurrency)
	gt.V(t, fleet.CycleLockTimeoutDuration()).Equal(10 * time.Minute)
	gt.V(t, fleet.AdapterTimeoutDuration()).Equal(model.DefaultAdapterTimeout)
}

func TestParseFleetJSON(t *testing.T) {
	data := []byte(`{"repositories": [{"provider": "github", "owner": "acme", "name": "api"}], "concurrency": 2}`)
	fleet := gt.R1(config.ParseFleet(data, "fleet.json")).NoError(t)
	gt.A(t, fleet.Repositories).Length(1)
	gt.V(t, fleet.Concurrency).Equal(2)
	gt.V(t, fleet.MaxAttempts).Equal(model.DefaultMaxAttempts)
}

func TestParseFleetInvalid(t *testing.T) {
	testCases := map[string]string{
		"syntax":            `repositories: [`,
		"unknown field":     `retries: 3`,
		"zero max attempts": `maxAttempts: 0`,
		"missing name":      `repositories: [{provider: "github"}]`,
		"unknown kind":      `integrations: [{id: "x", provider: "api", kind: "plugin"}]`,
		"bad duration":      `cycleLockTimeout: "soon"`,
		"bad created at":    `repositories: [{provider: "github", name: "r", createdAt: "yesterday"}]`,
		"duplicate entry":   `repositories: [{provider: "github", name: "r"}, {provider: "github", name: "r"}]`,
	}

	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := config.ParseFleet([]byte(data), "fleet.cue")
			gt.V(t, types.Classify(err)).Equal(types.ErrorClassConfig)
		})
	}
}

func TestFleetLoad(t *testing.T) {
	t.Run("no file gives defaults", func(t *testing.T) {
		var fleet config.Fleet
		cfg := gt.R1(fleet.Load()).NoError(t)
		gt.V(t, cfg.MaxAttempts).Equal(model.DefaultMaxAttempts)
		gt.True(t, cfg.IsManaged("github:any/repo"))
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fleet.cue")
		gt.NoError(t, os.WriteFile(path, []byte(fleetCUE), 0600))

		var fleet config.Fleet
		var cfg *model.FleetConfig
		cmd := flagCommand(fleet.Flags(), func() error {
			var err error
			cfg, err = fleet.Load()
			return err
		})
		gt.NoError(t, cmd.Run(t.Context(), []string{"test", "--config", path}))
		gt.A(t, cfg.Repositories).Length(3)
	})

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "none.cue")
		var fleet config.Fleet
		cmd := flagCommand(fleet.Flags(), func() error {
			_, err := fleet.Load()
			gt.V(t, types.Classify(err)).Equal(types.ErrorClassConfig)
			return nil
		})
		gt.NoError(t, cmd.Run(t.Context(), []string{"test", "--config", path}))
	})
}
