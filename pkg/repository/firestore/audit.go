package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/repository"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Append creates the entry document. Create fails if the ID already exists,
// so entries are never overwritten.
func (x *Store) Append(ctx context.Context, entry *model.AuditEntry) error {
	if _, err := x.client.Collection(collectionAudit).Doc(entry.ID.String()).Create(ctx, entry); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return goerr.Wrap(repository.ErrAlreadyExists, "audit entry appended twice", goerr.V("id", entry.ID))
		}
		return goerr.Wrap(err, "failed to append audit entry",
			goerr.V("id", entry.ID),
			goerr.V("runID", entry.RunID),
		)
	}
	return nil
}

func (x *Store) ListByRun(ctx context.Context, runID types.RunID) ([]*model.AuditEntry, error) {
	iter := x.client.Collection(collectionAudit).
		Where("RunID", "==", string(runID)).
		OrderBy("Timestamp", firestore.Asc).
		Documents(ctx)
	return list[model.AuditEntry](iter, collectionAudit)
}
