package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gots/slice"
	"github.com/m-mizutani/octomend/pkg/controller/scheduler"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// mode holds the mutually exclusive --dry-run and --apply flags.
type mode struct {
	dryRun bool
	apply  bool
}

func (x *mode) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Report what would change without mutating anything (default)",
			Destination: &x.dryRun,
		},
		&cli.BoolFlag{
			Name:        "apply",
			Usage:       "Execute remediation tasks",
			Sources:     cli.EnvVars("OCTOMEND_APPLY"),
			Destination: &x.apply,
		},
	}
}

// DryRun resolves the flags. Without either flag the run is a dry run.
func (x *mode) DryRun() (bool, error) {
	if x.dryRun && x.apply {
		return false, goerr.Wrap(types.ErrInvalidOption, "--dry-run and --apply are exclusive")
	}
	return !x.apply, nil
}

func remediateCommand(out *output) *cli.Command {
	return cycleCommand(out, "remediate", types.TriggerManual,
		"Run one reconciliation cycle now")
}

func nightlyRunCommand(out *output) *cli.Command {
	return cycleCommand(out, "nightly-run", types.TriggerTimer,
		"Run the scheduled reconciliation cycle, e.g. from cron")
}

func cycleCommand(out *output, name string, source types.TriggerSource, usage string) *cli.Command {
	var (
		comp components
		m    mode
	)

	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: slice.Flatten(m.Flags(), out.Flags(), comp.Flags()),
		Action: func(ctx context.Context, c *cli.Command) error {
			dryRun, err := m.DryRun()
			if err != nil {
				return err
			}
			if err := out.validate(); err != nil {
				return err
			}
			logging.From(ctx).Info("starting cycle",
				slog.String("command", name),
				slog.Bool("dry_run", dryRun),
				slog.Any("config", &comp),
			)

			rt, err := comp.build(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			sched := scheduler.New(rt.uc, rt.store, scheduler.WithDryRun(dryRun))
			report, err := sched.RunOnce(ctx, source)
			if err != nil {
				return err
			}

			summary := &runSummary{
				Run:             report.Run,
				Tasks:           report.Tasks,
				DroppedTriggers: sched.DroppedTriggers(),
			}
			if err := out.write(summary, func(w io.Writer) { printRunSummary(w, summary) }); err != nil {
				return err
			}

			run := report.Run
			if run.TasksFailed > 0 || run.FatalError != "" {
				return goerr.Wrap(ErrTasksFailed, "cycle completed with failures",
					goerr.V("run_id", run.ID),
					goerr.V("failed", run.TasksFailed),
					goerr.V("fatal", run.FatalError),
				)
			}
			return nil
		},
	}
}
