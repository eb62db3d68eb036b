package main

import (
	"os"

	"github.com/m-mizutani/octomend/pkg/cli"
)

func main() {
	if err := cli.New().Run(os.Args); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
