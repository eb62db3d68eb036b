package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/infra/apiconn"
	"github.com/urfave/cli/v3"
)

// APITokenEnvPrefix prefixes the environment variable holding the credential
// of an API connection, e.g. OCTOMEND_API_TOKEN_ASSISTANT for "assistant".
const APITokenEnvPrefix = "OCTOMEND_API_TOKEN_"

// APIConn configures API-connection integrations.
type APIConn struct {
	connections []string
	rateLimit   float64
}

func (x *APIConn) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "api-connection",
			Usage:       "API connection as id=verify-url (repeatable). The credential is read from " + APITokenEnvPrefix + "<ID>",
			Category:    "API connections",
			Destination: &x.connections,
			Sources:     cli.EnvVars("OCTOMEND_API_CONNECTIONS"),
		},
		&cli.FloatFlag{
			Name:        "api-rate-limit",
			Usage:       "Maximum verify requests per second",
			Category:    "API connections",
			Value:       5,
			Destination: &x.rateLimit,
			Sources:     cli.EnvVars("OCTOMEND_API_RATE_LIMIT"),
		},
	}
}

func (x *APIConn) Enabled() bool {
	return len(x.connections) > 0
}

// TokenEnvName returns the environment variable of the credential of id.
func TokenEnvName(id string) string {
	name := strings.ToUpper(id)
	name = strings.NewReplacer("-", "_", ".", "_").Replace(name)
	return APITokenEnvPrefix + name
}

// Connections parses the id=url pairs and resolves their credentials. A
// missing credential is allowed; the integration then fails verification.
func (x *APIConn) Connections() ([]apiconn.Connection, error) {
	conns := make([]apiconn.Connection, 0, len(x.connections))
	for _, pair := range x.connections {
		id, url, ok := strings.Cut(pair, "=")
		if !ok || id == "" || url == "" {
			return nil, goerr.Wrap(types.ErrConfig, "api connection must be id=verify-url", goerr.V("value", pair))
		}
		token := os.Getenv(TokenEnvName(id))
		conns = append(conns, apiconn.Connection{
			ID:        id,
			VerifyURL: url,
			Token:     types.APIToken(token),
		})
	}
	return conns, nil
}

func (x *APIConn) NewAdapter() (*apiconn.Adapter, error) {
	conns, err := x.Connections()
	if err != nil {
		return nil, err
	}
	var options []apiconn.Option
	if x.rateLimit > 0 {
		options = append(options, apiconn.WithRateLimit(x.rateLimit, 1))
	}
	return apiconn.New(conns, options...)
}

func (x *APIConn) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("Connections", x.connections),
		slog.Float64("RateLimit", x.rateLimit),
	)
}
