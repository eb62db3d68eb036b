package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/infra/bq"
	"github.com/urfave/cli/v3"
)

type BigQuery struct {
	projectID types.GoogleProjectID
	datasetID types.BQDatasetID
	tableID   types.BQTableID
}

func (x *BigQuery) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bigquery-project-id",
			Usage:       "BigQuery project ID. Run summaries are exported when set",
			Category:    "BigQuery",
			Destination: (*string)(&x.projectID),
			Sources:     cli.EnvVars("OCTOMEND_BIGQUERY_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "bigquery-dataset-id",
			Usage:       "BigQuery dataset ID",
			Category:    "BigQuery",
			Destination: (*string)(&x.datasetID),
			Sources:     cli.EnvVars("OCTOMEND_BIGQUERY_DATASET_ID"),
		},
		&cli.StringFlag{
			Name:        "bigquery-table-id",
			Usage:       "BigQuery table ID of run summaries",
			Category:    "BigQuery",
			Value:       "runs",
			Destination: (*string)(&x.tableID),
			Sources:     cli.EnvVars("OCTOMEND_BIGQUERY_TABLE_ID"),
		},
	}
}

func (x *BigQuery) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("ProjectID", x.projectID),
		slog.Any("DatasetID", x.datasetID),
		slog.Any("TableID", x.tableID),
	)
}

// NewClient returns nil without error when BigQuery is not configured.
func (x *BigQuery) NewClient(ctx context.Context) (*bq.Client, func(), error) {
	if x.projectID == "" {
		return nil, func() {}, nil
	}
	if x.datasetID == "" {
		return nil, nil, goerr.Wrap(types.ErrConfig, "bigquery-dataset-id is required with bigquery-project-id")
	}

	client, err := bq.New(ctx, x.projectID, x.datasetID, x.tableID, nil)
	if err != nil {
		return nil, nil, err
	}
	return client, closer(ctx, client.Close), nil
}
