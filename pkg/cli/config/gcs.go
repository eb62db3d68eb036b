package config

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/infra/gcs"
	"github.com/urfave/cli/v3"
)

// GCS configures cloud-storage sync integrations, each bound to a bucket.
type GCS struct {
	integrations []string
	markerPrefix string
}

func (x *GCS) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "gcs-integration",
			Usage:       "Cloud storage sync integration as id=bucket (repeatable)",
			Category:    "Cloud Storage",
			Destination: &x.integrations,
			Sources:     cli.EnvVars("OCTOMEND_GCS_INTEGRATIONS"),
		},
		&cli.StringFlag{
			Name:        "gcs-marker-prefix",
			Usage:       "Object name prefix of activation markers",
			Category:    "Cloud Storage",
			Value:       gcs.DefaultMarkerPrefix,
			Destination: &x.markerPrefix,
			Sources:     cli.EnvVars("OCTOMEND_GCS_MARKER_PREFIX"),
		},
	}
}

func (x *GCS) Enabled() bool {
	return len(x.integrations) > 0
}

// Buckets parses the id=bucket pairs.
func (x *GCS) Buckets() (map[string]string, error) {
	buckets := make(map[string]string, len(x.integrations))
	for _, pair := range x.integrations {
		id, bucket, ok := strings.Cut(pair, "=")
		if !ok || id == "" || bucket == "" {
			return nil, goerr.Wrap(types.ErrConfig, "gcs integration must be id=bucket", goerr.V("value", pair))
		}
		buckets[id] = bucket
	}
	return buckets, nil
}

func (x *GCS) NewAdapter(ctx context.Context) (*gcs.Adapter, error) {
	buckets, err := x.Buckets()
	if err != nil {
		return nil, err
	}
	return gcs.New(ctx, buckets, nil, gcs.WithMarkerPrefix(x.markerPrefix))
}

func (x *GCS) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("Integrations", x.integrations),
		slog.String("MarkerPrefix", x.markerPrefix),
	)
}
