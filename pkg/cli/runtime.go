package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gots/slice"
	"github.com/m-mizutani/octomend/pkg/cli/config"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/infra"
	"github.com/m-mizutani/octomend/pkg/usecase"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// components holds the flag groups shared by every command that runs against
// the fleet.
type components struct {
	githubApp config.GitHubApp
	localGit  config.LocalGit
	gcs       config.GCS
	apiConn   config.APIConn
	store     config.StoreBackend
	bigQuery  config.BigQuery
	sentry    config.Sentry
	fleet     config.Fleet
}

func (x *components) Flags() []cli.Flag {
	return slice.Flatten(
		x.fleet.Flags(),
		x.githubApp.Flags(),
		x.localGit.Flags(),
		x.gcs.Flags(),
		x.apiConn.Flags(),
		x.store.Flags(),
		x.bigQuery.Flags(),
		x.sentry.Flags(),
	)
}

func (x *components) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("Fleet", &x.fleet),
		slog.Any("GitHubApp", &x.githubApp),
		slog.Any("LocalGit", &x.localGit),
		slog.Any("GCS", &x.gcs),
		slog.Any("APIConn", &x.apiConn),
		slog.Any("Store", &x.store),
		slog.Any("BigQuery", &x.bigQuery),
		slog.Any("Sentry", &x.sentry),
	)
}

// runtime is the assembled orchestrator of one command invocation.
type runtime struct {
	uc       *usecase.UseCase
	store    config.Store
	releases []func()
}

func (x *runtime) Close() {
	for i := len(x.releases) - 1; i >= 0; i-- {
		x.releases[i]()
	}
}

// build loads configuration and wires adapters, store and exporter. Any
// problem is a config error raised before a cycle starts.
func (x *components) build(ctx context.Context) (*runtime, error) {
	if err := x.sentry.Configure(ctx); err != nil {
		return nil, goerr.Wrap(types.ErrConfig, "failed to configure sentry", goerr.V("cause", err.Error()))
	}

	fleet, err := x.fleet.Load()
	if err != nil {
		return nil, err
	}

	rt := &runtime{}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	adapters, err := x.adapters(ctx, rt)
	if err != nil {
		return nil, err
	}
	if len(adapters) == 0 {
		return nil, goerr.Wrap(types.ErrConfig, "no adapter is configured; set --github-app-id, --repos-root, --gcs-integration or --api-connection")
	}

	registry := infra.NewRegistry()
	for _, adapter := range adapters {
		if err := registry.Register(adapter); err != nil {
			return nil, err
		}
	}

	store, release, err := x.store.New(ctx)
	if err != nil {
		return nil, err
	}
	rt.store = store
	rt.releases = append(rt.releases, release)

	options := []infra.Option{
		infra.WithRegistry(registry),
		infra.WithEntityStore(store),
		infra.WithAuditSink(store),
	}

	bqClient, release, err := x.bigQuery.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	rt.releases = append(rt.releases, release)
	if bqClient != nil {
		options = append(options, infra.WithBigQuery(bqClient))
	}

	rt.uc = usecase.New(infra.New(options...), usecase.WithFleetConfig(fleet))
	logging.From(ctx).Debug("orchestrator assembled",
		slog.Any("providers", registry.Providers()),
		slog.Int("repositories", len(fleet.Repositories)),
		slog.Int("integrations", len(fleet.Integrations)),
	)

	ok = true
	return rt, nil
}

func (x *components) adapters(ctx context.Context, rt *runtime) ([]interfaces.Adapter, error) {
	var adapters []interfaces.Adapter

	if x.githubApp.Enabled() {
		adapter, err := x.githubApp.NewAdapter()
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}

	if x.localGit.Enabled() {
		adapter, err := x.localGit.NewAdapter()
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}

	if x.gcs.Enabled() {
		adapter, err := x.gcs.NewAdapter(ctx)
		if err != nil {
			return nil, err
		}
		rt.releases = append(rt.releases, func() { _ = adapter.Close() })
		adapters = append(adapters, adapter)
	}

	if x.apiConn.Enabled() {
		adapter, err := x.apiConn.NewAdapter()
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}

	return adapters, nil
}
