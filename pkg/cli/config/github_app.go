package config

import (
	"log/slog"

	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/infra/github"
	"github.com/urfave/cli/v3"
)

type GitHubApp struct {
	id           types.GitHubAppID
	installID    types.GitHubAppInstallID
	secret       types.GitHubAppSecret     `masq:"secret"`
	privateKey   types.GitHubAppPrivateKey `masq:"secret"`
	repositories []string
	rateLimit    float64
}

func (x *GitHubApp) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID. The GitHub adapter is enabled when set",
			Category:    "GitHub App",
			Destination: (*int64)(&x.id),
			Sources:     cli.EnvVars("OCTOMEND_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-app-install-id",
			Usage:       "GitHub App installation ID",
			Category:    "GitHub App",
			Destination: (*int64)(&x.installID),
			Sources:     cli.EnvVars("OCTOMEND_GITHUB_APP_INSTALL_ID"),
		},
		&cli.StringFlag{
			Name:        "github-app-private-key",
			Usage:       "GitHub App Private Key",
			Category:    "GitHub App",
			Destination: (*string)(&x.privateKey),
			Sources:     cli.EnvVars("OCTOMEND_GITHUB_APP_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-app-secret",
			Usage:       "GitHub App Webhook Secret",
			Category:    "GitHub App",
			Destination: (*string)(&x.secret),
			Sources:     cli.EnvVars("OCTOMEND_GITHUB_APP_SECRET"),
		},
		&cli.StringSliceFlag{
			Name:        "github-repository",
			Usage:       "Limit the fleet to these owner/name repositories (default: all repositories of the installation)",
			Category:    "GitHub App",
			Destination: &x.repositories,
			Sources:     cli.EnvVars("OCTOMEND_GITHUB_REPOSITORIES"),
		},
		&cli.FloatFlag{
			Name:        "github-rate-limit",
			Usage:       "Maximum GitHub API requests per second",
			Category:    "GitHub App",
			Value:       10,
			Destination: &x.rateLimit,
			Sources:     cli.EnvVars("OCTOMEND_GITHUB_RATE_LIMIT"),
		},
	}
}

func (x *GitHubApp) Enabled() bool {
	return x.id != 0
}

func (x *GitHubApp) NewAdapter() (*github.Client, error) {
	options := []github.Option{github.WithRepositories(x.repositories...)}
	if x.rateLimit > 0 {
		options = append(options, github.WithRateLimit(x.rateLimit, 1))
	}
	return github.New(x.id, x.installID, x.privateKey, options...)
}

func (x *GitHubApp) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("ID", int64(x.id)),
		slog.Int64("InstallID", int64(x.installID)),
		slog.Int("Secret.len", len(x.secret)),
		slog.Int("privateKey.len", len(x.privateKey)),
		slog.Any("Repositories", x.repositories),
		slog.Float64("RateLimit", x.rateLimit),
	)
}

func (x *GitHubApp) Secret() types.GitHubAppSecret {
	return x.secret
}
