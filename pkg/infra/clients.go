package infra

import (
	"net/http"

	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
)

type Clients struct {
	registry    *Registry
	httpClient  HTTPClient
	bqClient    interfaces.BigQuery
	entityStore interfaces.EntityStore
	auditSink   interfaces.AuditSink
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Option func(*Clients)

func New(options ...Option) *Clients {
	client := &Clients{
		registry:   NewRegistry(),
		httpClient: http.DefaultClient,
	}

	for _, opt := range options {
		opt(client)
	}

	return client
}

func (x *Clients) Registry() *Registry {
	return x.registry
}
func (x *Clients) HTTPClient() HTTPClient {
	return x.httpClient
}
func (x *Clients) BigQuery() interfaces.BigQuery {
	return x.bqClient
}
func (x *Clients) EntityStore() interfaces.EntityStore {
	return x.entityStore
}
func (x *Clients) AuditSink() interfaces.AuditSink {
	return x.auditSink
}

// WithAdapter registers adapter. Registering two adapters for the same
// provider keeps the last one.
func WithAdapter(adapter interfaces.Adapter) Option {
	return func(x *Clients) {
		x.registry.mu.Lock()
		defer x.registry.mu.Unlock()
		x.registry.adapters[adapter.Provider()] = adapter
	}
}

func WithRegistry(registry *Registry) Option {
	return func(x *Clients) {
		x.registry = registry
	}
}

func WithHTTPClient(client HTTPClient) Option {
	return func(x *Clients) {
		x.httpClient = client
	}
}

func WithBigQuery(client interfaces.BigQuery) Option {
	return func(x *Clients) {
		x.bqClient = client
	}
}

func WithEntityStore(store interfaces.EntityStore) Option {
	return func(x *Clients) {
		x.entityStore = store
	}
}

func WithAuditSink(sink interfaces.AuditSink) Option {
	return func(x *Clients) {
		x.auditSink = sink
	}
}
