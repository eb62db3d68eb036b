package cli

import (
	"context"
	"errors"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// ConfigureLogging is exported for testing purposes
var ConfigureLogging = logging.Configure

type CLI struct {
	out output
}

type Option func(*CLI)

// WithOutput replaces stdout as the destination of reports.
func WithOutput(w io.Writer) Option {
	return func(x *CLI) {
		x.out.writer = w
	}
}

func New(options ...Option) *CLI {
	c := &CLI{}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func onUsageError(ctx context.Context, c *cli.Command, err error, isSubcommand bool) error {
	return goerr.Wrap(types.ErrInvalidOption, "invalid usage", goerr.V("cause", err.Error()))
}

func (x *CLI) Run(argv []string) error {
	var (
		logLevel  string
		logFormat string
		logOutput string
	)

	app := &cli.Command{
		Name:  "octomend",
		Usage: "Remediation orchestrator for repository fleets and their integrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level [debug|info|warn|error]",
				Aliases:     []string{"l"},
				Sources:     cli.EnvVars("OCTOMEND_LOG_LEVEL"),
				Destination: &logLevel,
				Value:       "info",
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "Log format [text|json]",
				Aliases:     []string{"f"},
				Sources:     cli.EnvVars("OCTOMEND_LOG_FORMAT"),
				Destination: &logFormat,
				Value:       "text",
			},
			&cli.StringFlag{
				Name:        "log-output",
				Usage:       "Log output [-|stdout|stderr|<file>]",
				Aliases:     []string{"o"},
				Sources:     cli.EnvVars("OCTOMEND_LOG_OUTPUT"),
				Destination: &logOutput,
				Value:       "stderr",
			},
		},
		Commands: []*cli.Command{
			auditCommand(&x.out),
			remediateCommand(&x.out),
			nightlyRunCommand(&x.out),
			serveCommand(),
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := ConfigureLogging(logFormat, logLevel, logOutput); err != nil {
				return ctx, err
			}
			return ctx, nil
		},
		OnUsageError: onUsageError,
	}
	for _, cmd := range app.Commands {
		cmd.OnUsageError = onUsageError
	}

	if err := app.Run(context.Background(), argv); err != nil {
		if errors.Is(err, ErrTasksFailed) || errors.Is(err, ErrAdapterAuth) {
			logging.Default().Warn("completed with failures", "error", err)
		} else {
			logging.Default().Error("fatal error", "error", err)
		}
		return err
	}

	return nil
}
