package config_test

import (
	"context"

	"github.com/urfave/cli/v3"
)

// flagCommand returns a command that parses flags and then calls action.
func flagCommand(flags []cli.Flag, action func() error) *cli.Command {
	return &cli.Command{
		Name:  "test",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			return action()
		},
	}
}
