// Package gcs is the adapter of cloud-storage sync integrations. An
// integration is bound to a bucket; it is verified by reading the bucket and
// activated by writing a marker object into it.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"time"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const DefaultMarkerPrefix = "octomend/integrations/"

type Adapter struct {
	client *storage.Client
	// buckets maps an integration ID (without provider) to its bucket.
	buckets map[string]string
	prefix  string
}

var _ interfaces.Adapter = (*Adapter)(nil)

type Option func(*Adapter)

func WithMarkerPrefix(prefix string) Option {
	return func(x *Adapter) {
		x.prefix = prefix
	}
}

// New creates the adapter. buckets maps integration IDs to bucket names.
func New(ctx context.Context, buckets map[string]string, clientOptions []option.ClientOption, options ...Option) (*Adapter, error) {
	if len(buckets) == 0 {
		return nil, goerr.Wrap(types.ErrConfig, "no gcs integration is configured")
	}
	for id, bucket := range buckets {
		if id == "" || bucket == "" {
			return nil, goerr.Wrap(types.ErrConfig, "gcs integration requires id and bucket", goerr.V("id", id), goerr.V("bucket", bucket))
		}
	}

	client, err := storage.NewClient(ctx, clientOptions...)
	if err != nil {
		return nil, goerr.Wrap(types.ErrConfig, "failed to create storage client", goerr.V("cause", err.Error()))
	}

	adapter := &Adapter{
		client:  client,
		buckets: buckets,
		prefix:  DefaultMarkerPrefix,
	}
	for _, opt := range options {
		opt(adapter)
	}
	return adapter, nil
}

func (x *Adapter) Close() error {
	return x.client.Close()
}

func (x *Adapter) Provider() types.ProviderTag { return types.ProviderGCS }

func (x *Adapter) bucketOf(ref model.EntityRef) (string, string, error) {
	id := ref.ID.ExternalID()
	bucket, ok := x.buckets[id]
	if !ok {
		return "", "", goerr.Wrap(types.ErrNotFound, "integration is not bound to a bucket", goerr.V("id", ref.ID))
	}
	return id, bucket, nil
}

func (x *Adapter) markerName(id string) string {
	return x.prefix + id + ".json"
}

// ListEntities implements interfaces.Adapter.
func (x *Adapter) ListEntities(ctx context.Context, kind types.EntityKind) ([]model.EntityRef, error) {
	if kind != types.EntityIntegration {
		return nil, goerr.Wrap(types.ErrUnsupported, "gcs lists integrations only", goerr.V("kind", kind))
	}

	ids := make([]string, 0, len(x.buckets))
	for id := range x.buckets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	refs := make([]model.EntityRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, model.EntityRef{
			ID:       types.NewEntityID(types.ProviderGCS, id),
			Kind:     types.EntityIntegration,
			Provider: types.ProviderGCS,
		})
	}
	return refs, nil
}

// ReadState implements interfaces.Adapter. An integration is active when its
// marker object exists.
func (x *Adapter) ReadState(ctx context.Context, ref model.EntityRef) (*model.EntitySnapshot, error) {
	if ref.Kind != types.EntityIntegration {
		return nil, goerr.Wrap(types.ErrUnsupported, "gcs has integrations only", goerr.V("ref", ref))
	}
	id, bucket, err := x.bucketOf(ref)
	if err != nil {
		return nil, err
	}

	active := true
	if _, err := x.client.Bucket(bucket).Object(x.markerName(id)).Attrs(ctx); err != nil {
		if !errors.Is(err, storage.ErrObjectNotExist) {
			return nil, wrapError(err, "failed to read activation marker", goerr.V("id", ref.ID), goerr.V("bucket", bucket))
		}
		active = false
	}

	return &model.EntitySnapshot{
		Ref: ref,
		Integration: &model.IntegrationSnapshot{
			Name:   id,
			Kind:   types.IntegrationCLITool,
			Active: active,
		},
	}, nil
}

func (x *Adapter) Merge(ctx context.Context, pr model.EntityRef, opts model.MergeOptions) (*model.MergeResult, error) {
	return nil, goerr.Wrap(types.ErrUnsupported, "gcs has no pull requests", goerr.V("id", pr.ID))
}

func (x *Adapter) DeleteBranch(ctx context.Context, branch model.EntityRef) error {
	return goerr.Wrap(types.ErrUnsupported, "gcs has no branches", goerr.V("id", branch.ID))
}

// Verify implements interfaces.Adapter by reading the bucket metadata with
// the configured credentials.
func (x *Adapter) Verify(ctx context.Context, ref model.EntityRef) error {
	_, bucket, err := x.bucketOf(ref)
	if err != nil {
		return err
	}

	if _, err := x.client.Bucket(bucket).Attrs(ctx); err != nil {
		return wrapError(err, "failed to verify bucket", goerr.V("id", ref.ID), goerr.V("bucket", bucket))
	}
	return nil
}

type marker struct {
	Integration types.EntityID `json:"integration"`
	ActivatedAt time.Time      `json:"activated_at"`
	RunID       types.RunID    `json:"run_id,omitempty"`
}

// Activate implements interfaces.Adapter. The marker is created only if it
// does not exist, so activating twice is a no-op.
func (x *Adapter) Activate(ctx context.Context, ref model.EntityRef) error {
	id, bucket, err := x.bucketOf(ref)
	if err != nil {
		return err
	}

	// Cancelling the writer context aborts the upload.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	obj := x.client.Bucket(bucket).Object(x.markerName(id)).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(wctx)
	w.ContentType = "application/json"
	// The marker is tiny; upload it in a single request.
	w.ChunkSize = 0

	body := marker{
		Integration: ref.ID,
		ActivatedAt: logging.CtxTime(ctx),
		RunID:       logging.CtxRunID(ctx),
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		cancel()
		return goerr.Wrap(err, "failed to write activation marker", goerr.V("id", ref.ID))
	}
	if err := w.Close(); err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) && gErr.Code == http.StatusPreconditionFailed {
			logging.From(ctx).Debug("integration already active", slog.Any("id", ref.ID))
			return nil
		}
		return wrapError(err, "failed to write activation marker", goerr.V("id", ref.ID), goerr.V("bucket", bucket))
	}

	logging.From(ctx).Info("activated gcs integration", slog.Any("id", ref.ID), slog.String("bucket", bucket))
	return nil
}

func wrapError(err error, msg string, values ...goerr.Option) error {
	values = append(values, goerr.V("cause", err.Error()))

	var gErr *googleapi.Error
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return goerr.Wrap(err, msg, values...)
	case errors.Is(err, storage.ErrBucketNotExist), errors.Is(err, storage.ErrObjectNotExist):
		return goerr.Wrap(types.ErrNotFound, msg, values...)
	case errors.As(err, &gErr):
		switch {
		case gErr.Code == http.StatusUnauthorized, gErr.Code == http.StatusForbidden:
			return goerr.Wrap(types.ErrAuth, msg, values...)
		case gErr.Code == http.StatusNotFound:
			return goerr.Wrap(types.ErrNotFound, msg, values...)
		case gErr.Code == http.StatusConflict, gErr.Code == http.StatusPreconditionFailed:
			return goerr.Wrap(types.ErrConflict, msg, values...)
		case gErr.Code == http.StatusTooManyRequests, gErr.Code >= 500:
			return goerr.Wrap(types.ErrTransientNetwork, msg, values...)
		}
	case errors.As(err, &netErr):
		return goerr.Wrap(types.ErrTransientNetwork, msg, values...)
	}
	return goerr.Wrap(err, msg, values...)
}
