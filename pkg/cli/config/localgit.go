package config

import (
	"log/slog"

	"github.com/m-mizutani/octomend/pkg/infra/localgit"
	"github.com/urfave/cli/v3"
)

// LocalGit configures the adapter over local clones under one directory.
type LocalGit struct {
	root  string
	owner string
}

func (x *LocalGit) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repos-root",
			Usage:       "Directory holding local clones. The local git adapter is enabled when set",
			Category:    "Local git",
			Destination: &x.root,
			Sources:     cli.EnvVars("OCTOMEND_REPOS_ROOT"),
		},
		&cli.StringFlag{
			Name:        "repos-owner",
			Usage:       "Owner name used in IDs of local repositories",
			Category:    "Local git",
			Value:       localgit.DefaultOwner,
			Destination: &x.owner,
			Sources:     cli.EnvVars("OCTOMEND_REPOS_OWNER"),
		},
	}
}

func (x *LocalGit) Enabled() bool {
	return x.root != ""
}

func (x *LocalGit) NewAdapter() (*localgit.Adapter, error) {
	return localgit.New(x.root, localgit.WithOwner(x.owner))
}

func (x *LocalGit) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("Root", x.root),
		slog.String("Owner", x.owner),
	)
}
