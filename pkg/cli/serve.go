package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gots/slice"
	"github.com/m-mizutani/octomend/pkg/controller/scheduler"
	"github.com/m-mizutani/octomend/pkg/controller/server"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/errutil"
	"github.com/m-mizutani/octomend/pkg/utils/logging"

	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		addr     string
		interval time.Duration

		comp components
		m    mode
	)
	serveFlags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Binding address",
			Value:       "127.0.0.1:8000",
			Sources:     cli.EnvVars("OCTOMEND_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "interval",
			Usage:       "Period of scheduled cycles",
			Value:       24 * time.Hour,
			Sources:     cli.EnvVars("OCTOMEND_INTERVAL"),
			Destination: &interval,
		},
	}

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Server mode: scheduled cycles plus manual and webhook triggers",
		Flags: slice.Flatten(
			serveFlags,
			m.Flags(),
			comp.Flags(),
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			dryRun, err := m.DryRun()
			if err != nil {
				return err
			}
			if interval <= 0 {
				return goerr.Wrap(types.ErrInvalidOption, "interval must be positive", goerr.V("interval", interval))
			}

			logging.Default().Info("starting serve",
				slog.Any("Addr", addr),
				slog.Duration("Interval", interval),
				slog.Bool("DryRun", dryRun),
				slog.Any("Config", &comp),
			)

			rt, err := comp.build(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			options := []scheduler.Option{
				scheduler.WithDryRun(dryRun),
				scheduler.WithOnComplete(func(report *model.RunReport) {
					logging.Default().Info("cycle completed",
						slog.Any("run_id", report.Run.ID),
						slog.Int("attempted", report.Run.TasksAttempted),
						slog.Int("failed", report.Run.TasksFailed),
					)
				}),
			}
			if latest, err := rt.store.GetLatestRun(ctx); err != nil {
				errutil.HandleError(ctx, "failed to load latest run", err)
			} else if latest != nil {
				options = append(options, scheduler.WithLatest(latest))
			}
			sched := scheduler.New(rt.uc, rt.store, options...)

			s := server.New(sched, server.WithGitHubSecret(comp.githubApp.Secret()))

			runCtx, stop := context.WithCancel(ctx)
			defer stop()
			schedDone := make(chan error, 1)
			go func() {
				schedDone <- sched.Run(runCtx, scheduler.TickerTrigger(runCtx, interval))
			}()

			serverErr := make(chan error, 1)
			httpServer := &http.Server{
				Addr:    addr,
				Handler: s.Mux(),

				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
			}

			go func() {
				logging.Default().Info("starting http server", "addr", addr)
				if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
					serverErr <- goerr.Wrap(err, "failed to listen and serve")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			var result error
			select {
			case err := <-serverErr:
				result = err

			case sig := <-quit:
				logging.Default().Info("shutting down server", "signal", sig)

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := httpServer.Shutdown(ctx); err != nil {
					result = goerr.Wrap(err, "failed to shutdown server")
				}
			}

			// The cycle in flight, if any, finishes before the store closes.
			stop()
			if err := <-schedDone; err != nil && result == nil {
				result = err
			}
			return result
		},
	}
}
