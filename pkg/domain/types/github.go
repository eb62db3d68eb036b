package types

import "log/slog"

type (
	GitHubAppID         int64
	GitHubAppInstallID  int64
	GitHubAppSecret     string
	GitHubAppPrivateKey string
	BranchName          string
	CommitSHA           string
)

func (x GitHubAppSecret) LogValue() slog.Value {
	return slog.StringValue("***********")
}

func (x GitHubAppSecret) String() string {
	return "***********"
}

func (x GitHubAppPrivateKey) LogValue() slog.Value {
	return slog.StringValue("***********")
}

func (x GitHubAppPrivateKey) String() string {
	return "***********"
}

// APIToken is a bearer credential of an API-connection integration.
type APIToken string

func (x APIToken) LogValue() slog.Value {
	return slog.StringValue("***********")
}

func (x APIToken) String() string {
	return "***********"
}
