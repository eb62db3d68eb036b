package firestore

import (
	"context"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/repository"
)

const (
	collectionRepo        = "repository"
	collectionBranch      = "branch"
	collectionPullRequest = "pull_request"
	collectionIntegration = "integration"
	collectionTask        = "task"
	collectionRun         = "run"
	collectionAudit       = "audit"

	latestRunDocID = "latest"
)

// Store is a Firestore-backed EntityStore and AuditSink. Entities are
// latest-wins documents keyed by EntityID; audit entries are an append-only
// collection.
type Store struct {
	client *firestore.Client
}

var (
	_ interfaces.EntityStore = (*Store)(nil)
	_ interfaces.AuditSink   = (*Store)(nil)
)

// New creates a new Firestore-based store
func New(ctx context.Context, projectID, databaseID string) (*Store, error) {
	var client *firestore.Client
	var err error

	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}

	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID),
		)
	}

	return &Store{
		client: client,
	}, nil
}

func (x *Store) Close() error {
	return x.client.Close()
}

// ToDocID converts an EntityID to a Firestore-safe document ID. "/" is not
// allowed in document IDs and is replaced with ":". Neither owner nor git ref
// names can contain ":", so the replacement does not collide.
func ToDocID(id types.EntityID) (string, error) {
	if id == "" || id.Provider() == "" {
		return "", goerr.Wrap(repository.ErrInvalidInput, "malformed entity ID", goerr.V("id", id))
	}
	return strings.ReplaceAll(string(id), "/", ":"), nil
}
