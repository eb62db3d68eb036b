// Package bq writes run records into a BigQuery table through the Storage
// Write API.
package bq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/bigquery/storage/managedwriter"
	"cloud.google.com/go/bigquery/storage/managedwriter/adapt"
	"github.com/cenkalti/backoff/v4"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
	"github.com/m-mizutani/octomend/pkg/utils/safe"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// DefaultSchemaWait bounds how long Insert waits for a just updated table
// schema to reach the write API.
const DefaultSchemaWait = 2 * time.Minute

type Client struct {
	bqClient   *bigquery.Client
	mwClient   *managedwriter.Client
	project    string
	dataset    string
	tableID    types.BQTableID
	schemaWait time.Duration
}

var _ interfaces.BigQuery = (*Client)(nil)

type Option func(*Client)

// WithSchemaWait overrides DefaultSchemaWait. Zero disables waiting.
func WithSchemaWait(d time.Duration) Option {
	return func(x *Client) {
		x.schemaWait = d
	}
}

func New(ctx context.Context, projectID types.GoogleProjectID, datasetID types.BQDatasetID, tableID types.BQTableID, clientOptions []option.ClientOption, options ...Option) (*Client, error) {
	if projectID == "" || datasetID == "" || tableID == "" {
		return nil, goerr.Wrap(types.ErrConfig, "bigquery project, dataset and table are required",
			goerr.V("projectID", projectID), goerr.V("datasetID", datasetID), goerr.V("tableID", tableID))
	}

	mwClient, err := managedwriter.NewClient(ctx, projectID.String(), clientOptions...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create managed writer client", goerr.V("projectID", projectID))
	}

	bqClient, err := bigquery.NewClient(ctx, projectID.String(), clientOptions...)
	if err != nil {
		safe.Close(mwClient)
		return nil, goerr.Wrap(err, "failed to create BigQuery client", goerr.V("projectID", projectID))
	}

	client := &Client{
		bqClient:   bqClient,
		mwClient:   mwClient,
		project:    projectID.String(),
		dataset:    datasetID.String(),
		tableID:    tableID,
		schemaWait: DefaultSchemaWait,
	}
	for _, opt := range options {
		opt(client)
	}
	return client, nil
}

func (x *Client) Close() error {
	return errors.Join(x.mwClient.Close(), x.bqClient.Close())
}

func (x *Client) table() *bigquery.Table {
	return x.bqClient.Dataset(x.dataset).Table(x.tableID.String())
}

// CreateTable implements interfaces.BigQuery.
func (x *Client) CreateTable(ctx context.Context, md *bigquery.TableMetadata) error {
	if err := x.table().Create(ctx, md); err != nil {
		return goerr.Wrap(err, "failed to create table", goerr.V("dataset", x.dataset), goerr.V("table", x.tableID))
	}
	logging.From(ctx).Info("created run table", slog.String("dataset", x.dataset), slog.Any("table", x.tableID))
	return nil
}

// GetMetadata implements interfaces.BigQuery. A missing table is nil, not an
// error.
func (x *Client) GetMetadata(ctx context.Context) (*bigquery.TableMetadata, error) {
	md, err := x.table().Metadata(ctx)
	if err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) && gErr.Code == 404 {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get table metadata", goerr.V("dataset", x.dataset), goerr.V("table", x.tableID))
	}
	return md, nil
}

// UpdateTable implements interfaces.BigQuery.
func (x *Client) UpdateTable(ctx context.Context, md bigquery.TableMetadataToUpdate, eTag string) error {
	if _, err := x.table().Update(ctx, md, eTag); err != nil {
		return goerr.Wrap(err, "failed to update table", goerr.V("dataset", x.dataset), goerr.V("table", x.tableID))
	}
	return nil
}

// Insert implements interfaces.BigQuery. The write API sees a schema update
// with a delay; while it still rejects the new fields, Insert retries until
// the schema wait elapses.
func (x *Client) Insert(ctx context.Context, schema bigquery.Schema, data any) error {
	descriptor, row, err := encodeRow(schema, data)
	if err != nil {
		return err
	}

	attempt := 0
	insert := func() error {
		attempt++
		err := x.appendRow(ctx, descriptor, row)
		if err == nil {
			return nil
		}
		if IsSchemaNotFoundError(err) && x.schemaWait > 0 {
			logging.From(ctx).Debug("table schema not propagated yet", slog.Int("attempt", attempt))
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = x.schemaWait
	if err := backoff.Retry(insert, backoff.WithContext(policy, ctx)); err != nil {
		return goerr.Wrap(err, "failed to insert row", goerr.V("table", x.tableID), goerr.V("attempts", attempt))
	}
	return nil
}

// encodeRow converts data into a proto row matching schema. data is
// marshalled to JSON first, so its JSON names must equal the column names.
func encodeRow(schema bigquery.Schema, data any) (*descriptorpb.DescriptorProto, []byte, error) {
	storageSchema, err := adapt.BQSchemaToStorageTableSchema(schema)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to convert schema")
	}
	descriptor, err := adapt.StorageSchemaToProto2Descriptor(storageSchema, "root")
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to convert schema to descriptor")
	}
	messageDescriptor, ok := descriptor.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, nil, goerr.New("adapted descriptor is not a message descriptor")
	}
	normalized, err := adapt.NormalizeDescriptor(messageDescriptor)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to normalize descriptor")
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal row")
	}
	message := dynamicpb.NewMessage(messageDescriptor)
	if err := protojson.Unmarshal(raw, message); err != nil {
		return nil, nil, goerr.Wrap(err, "row does not match table schema", goerr.V("raw", string(raw)))
	}
	row, err := proto.Marshal(message)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal proto row")
	}

	return normalized, row, nil
}

func (x *Client) appendRow(ctx context.Context, descriptor *descriptorpb.DescriptorProto, row []byte) error {
	ms, err := x.mwClient.NewManagedStream(ctx,
		managedwriter.WithDestinationTable(managedwriter.TableParentFromParts(x.project, x.dataset, x.tableID.String())),
		managedwriter.WithSchemaDescriptor(descriptor),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to create managed stream")
	}
	defer safe.Close(ms)

	result, err := ms.AppendRows(ctx, [][]byte{row})
	if err != nil {
		return goerr.Wrap(err, "failed to append rows")
	}
	if _, err := result.FullResponse(ctx); err != nil {
		return goerr.Wrap(err, "failed to get append result")
	}
	return nil
}

// IsSchemaNotFoundError reports whether err is the write API rejecting
// fields that the table schema does not have (yet).
func IsSchemaNotFoundError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	return st.Code() == codes.InvalidArgument &&
		strings.Contains(st.Message(), "Input schema has more fields than BigQuery schema")
}
