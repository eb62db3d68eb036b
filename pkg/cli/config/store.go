package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/repository/firestore"
	"github.com/m-mizutani/octomend/pkg/repository/memory"
	"github.com/m-mizutani/octomend/pkg/repository/postgres"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Store is a backend holding both the entity store and the audit sink.
type Store interface {
	interfaces.EntityStore
	interfaces.AuditSink
}

// StoreBackend selects where entities and audit entries persist: Firestore,
// PostgreSQL, or process memory when neither is configured.
type StoreBackend struct {
	firestoreProjectID  types.GoogleProjectID
	firestoreDatabaseID string
	postgresDSN         string `masq:"secret"`
}

func (x *StoreBackend) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore project ID of the entity store and audit sink",
			Category:    "Store",
			Sources:     cli.EnvVars("OCTOMEND_FIRESTORE_PROJECT_ID"),
			Destination: (*string)(&x.firestoreProjectID),
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			Category:    "Store",
			Sources:     cli.EnvVars("OCTOMEND_FIRESTORE_DATABASE_ID"),
			Value:       "(default)",
			Destination: &x.firestoreDatabaseID,
		},
		&cli.StringFlag{
			Name:        "postgres-dsn",
			Usage:       "PostgreSQL connection string of the entity store and audit sink",
			Category:    "Store",
			Sources:     cli.EnvVars("OCTOMEND_POSTGRES_DSN"),
			Destination: &x.postgresDSN,
		},
	}
}

func (x *StoreBackend) backend() string {
	switch {
	case x.firestoreProjectID != "":
		return "firestore"
	case x.postgresDSN != "":
		return "postgres"
	default:
		return "memory"
	}
}

// New opens the configured store. The returned function releases it.
func (x *StoreBackend) New(ctx context.Context) (Store, func(), error) {
	if x.firestoreProjectID != "" && x.postgresDSN != "" {
		return nil, nil, goerr.Wrap(types.ErrConfig, "firestore and postgres are exclusive")
	}

	switch x.backend() {
	case "firestore":
		store, err := firestore.New(ctx, x.firestoreProjectID.String(), x.firestoreDatabaseID)
		if err != nil {
			return nil, nil, goerr.Wrap(types.ErrConfig, "failed to open firestore",
				goerr.V("projectID", x.firestoreProjectID), goerr.V("cause", err.Error()))
		}
		return store, closer(ctx, store.Close), nil

	case "postgres":
		store, err := postgres.New(ctx, x.postgresDSN)
		if err != nil {
			return nil, nil, goerr.Wrap(types.ErrConfig, "failed to open postgres", goerr.V("cause", err.Error()))
		}
		return store, closer(ctx, store.Close), nil

	default:
		logging.From(ctx).Warn("no persistent store configured, state is kept in memory")
		return memory.New(), func() {}, nil
	}
}

func (x *StoreBackend) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("Backend", x.backend()),
		slog.Any("FirestoreProjectID", x.firestoreProjectID),
		slog.String("FirestoreDatabaseID", x.firestoreDatabaseID),
		slog.Int("PostgresDSN.len", len(x.postgresDSN)),
	)
}
