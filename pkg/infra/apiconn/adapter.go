// Package apiconn is the adapter of API-connection integrations: external
// APIs reached with a bearer credential. A connection is active when its
// credential is accepted by the connection's verify endpoint.
package apiconn

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/infra"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
	"github.com/m-mizutani/octomend/pkg/utils/safe"
	"golang.org/x/time/rate"
)

// Connection is one API connection.
type Connection struct {
	ID        string
	Name      string
	VerifyURL string
	Token     types.APIToken
}

type Adapter struct {
	connections map[string]Connection
	httpClient  infra.HTTPClient
	limiter     *rate.Limiter
}

var _ interfaces.Adapter = (*Adapter)(nil)

type Option func(*Adapter)

func WithHTTPClient(client infra.HTTPClient) Option {
	return func(x *Adapter) {
		x.httpClient = client
	}
}

// WithRateLimit limits verify calls to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(x *Adapter) {
		x.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func New(connections []Connection, options ...Option) (*Adapter, error) {
	if len(connections) == 0 {
		return nil, goerr.Wrap(types.ErrConfig, "no api connection is configured")
	}

	adapter := &Adapter{
		connections: make(map[string]Connection, len(connections)),
		httpClient:  http.DefaultClient,
		limiter:     rate.NewLimiter(rate.Inf, 1),
	}
	for _, conn := range connections {
		if conn.ID == "" {
			return nil, goerr.Wrap(types.ErrConfig, "api connection requires id")
		}
		u, err := url.Parse(conn.VerifyURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, goerr.Wrap(types.ErrConfig, "api connection requires http(s) verify URL",
				goerr.V("id", conn.ID), goerr.V("url", conn.VerifyURL))
		}
		if _, ok := adapter.connections[conn.ID]; ok {
			return nil, goerr.Wrap(types.ErrConfig, "api connection listed twice", goerr.V("id", conn.ID))
		}
		if conn.Name == "" {
			conn.Name = conn.ID
		}
		adapter.connections[conn.ID] = conn
	}

	for _, opt := range options {
		opt(adapter)
	}
	return adapter, nil
}

func (x *Adapter) Provider() types.ProviderTag { return types.ProviderAPI }

func (x *Adapter) connectionOf(ref model.EntityRef) (Connection, error) {
	conn, ok := x.connections[ref.ID.ExternalID()]
	if !ok {
		return Connection{}, goerr.Wrap(types.ErrNotFound, "api connection is not configured", goerr.V("id", ref.ID))
	}
	return conn, nil
}

// ListEntities implements interfaces.Adapter.
func (x *Adapter) ListEntities(ctx context.Context, kind types.EntityKind) ([]model.EntityRef, error) {
	if kind != types.EntityIntegration {
		return nil, goerr.Wrap(types.ErrUnsupported, "api connections list integrations only", goerr.V("kind", kind))
	}

	ids := make([]string, 0, len(x.connections))
	for id := range x.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	refs := make([]model.EntityRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, model.EntityRef{
			ID:       types.NewEntityID(types.ProviderAPI, id),
			Kind:     types.EntityIntegration,
			Provider: types.ProviderAPI,
		})
	}
	return refs, nil
}

// ReadState implements interfaces.Adapter. A rejected credential reads as
// inactive; only failures to reach the endpoint are errors.
func (x *Adapter) ReadState(ctx context.Context, ref model.EntityRef) (*model.EntitySnapshot, error) {
	if ref.Kind != types.EntityIntegration {
		return nil, goerr.Wrap(types.ErrUnsupported, "api connections have integrations only", goerr.V("ref", ref))
	}
	conn, err := x.connectionOf(ref)
	if err != nil {
		return nil, err
	}

	active := false
	if conn.Token != "" {
		err := x.probe(ctx, conn)
		switch {
		case err == nil:
			active = true
		case errors.Is(err, types.ErrAuth), errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrConflict):
		default:
			return nil, err
		}
	}

	return &model.EntitySnapshot{
		Ref: ref,
		Integration: &model.IntegrationSnapshot{
			Name:   conn.Name,
			Kind:   types.IntegrationAPIConnection,
			Active: active,
		},
	}, nil
}

func (x *Adapter) Merge(ctx context.Context, pr model.EntityRef, opts model.MergeOptions) (*model.MergeResult, error) {
	return nil, goerr.Wrap(types.ErrUnsupported, "api connections have no pull requests", goerr.V("id", pr.ID))
}

func (x *Adapter) DeleteBranch(ctx context.Context, branch model.EntityRef) error {
	return goerr.Wrap(types.ErrUnsupported, "api connections have no branches", goerr.V("id", branch.ID))
}

// Verify implements interfaces.Adapter.
func (x *Adapter) Verify(ctx context.Context, ref model.EntityRef) error {
	conn, err := x.connectionOf(ref)
	if err != nil {
		return err
	}
	if conn.Token == "" {
		return goerr.Wrap(types.ErrConfig, "api connection has no credential", goerr.V("id", ref.ID))
	}
	return x.probe(ctx, conn)
}

// Activate implements interfaces.Adapter. The connection holds no remote
// state of its own; activation is an accepted credential, so it probes once
// more and reports the result.
func (x *Adapter) Activate(ctx context.Context, ref model.EntityRef) error {
	if err := x.Verify(ctx, ref); err != nil {
		return err
	}
	logging.From(ctx).Info("activated api connection", slog.Any("id", ref.ID))
	return nil
}

func (x *Adapter) probe(ctx context.Context, conn Connection) error {
	if err := x.limiter.Wait(ctx); err != nil {
		return goerr.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, conn.VerifyURL, nil)
	if err != nil {
		return goerr.Wrap(types.ErrConfig, "failed to build verify request", goerr.V("id", conn.ID), goerr.V("cause", err.Error()))
	}
	req.Header.Set("Authorization", "Bearer "+string(conn.Token))
	req.Header.Set("Accept", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return goerr.Wrap(err, "verify request aborted", goerr.V("id", conn.ID))
		}
		return goerr.Wrap(types.ErrTransientNetwork, "verify request failed", goerr.V("id", conn.ID), goerr.V("cause", err.Error()))
	}
	defer safe.Close(resp.Body)
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	values := []goerr.Option{goerr.V("id", conn.ID), goerr.V("status", resp.StatusCode)}
	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return goerr.Wrap(types.ErrAuth, "credential rejected", values...)
	case code == http.StatusNotFound:
		return goerr.Wrap(types.ErrNotFound, "verify endpoint not found", values...)
	case code == http.StatusConflict:
		return goerr.Wrap(types.ErrConflict, "verify endpoint reported conflict", values...)
	case code == http.StatusTooManyRequests, code >= 500:
		return goerr.Wrap(types.ErrTransientNetwork, "verify endpoint unavailable", values...)
	default:
		return goerr.New("unexpected verify response", values...)
	}
}
