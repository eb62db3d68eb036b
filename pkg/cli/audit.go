package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gots/slice"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func auditCommand(out *output) *cli.Command {
	var comp components

	return &cli.Command{
		Name:  "audit",
		Usage: "Discover the fleet and report its health and planned tasks without changing anything",
		Flags: slice.Flatten(out.Flags(), comp.Flags()),
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := out.validate(); err != nil {
				return err
			}
			logging.From(ctx).Info("starting audit", slog.Any("config", &comp))

			rt, err := comp.build(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.uc.Audit(ctx)
			if err != nil {
				return err
			}
			if err := out.write(report, func(w io.Writer) { printAuditReport(w, report) }); err != nil {
				return err
			}

			if len(report.AuthFailures) > 0 {
				return goerr.Wrap(ErrAdapterAuth, "audit found adapters with rejected credentials",
					goerr.V("providers", report.AuthFailures))
			}
			return nil
		},
	}
}
