package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/repository"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func put(ctx context.Context, client *firestore.Client, collection string, id types.EntityID, v any) error {
	docID, err := ToDocID(id)
	if err != nil {
		return err
	}
	if _, err := client.Collection(collection).Doc(docID).Set(ctx, v); err != nil {
		return goerr.Wrap(err, "failed to put document",
			goerr.V("collection", collection),
			goerr.V("id", id),
		)
	}
	return nil
}

func get[T any](ctx context.Context, client *firestore.Client, collection string, id types.EntityID) (*T, error) {
	docID, err := ToDocID(id)
	if err != nil {
		return nil, err
	}

	snap, err := client.Collection(collection).Doc(docID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(repository.ErrNotFound, "document not found",
				goerr.V("collection", collection),
				goerr.V("id", id),
			)
		}
		return nil, goerr.Wrap(err, "failed to get document",
			goerr.V("collection", collection),
			goerr.V("id", id),
		)
	}

	var v T
	if err := snap.DataTo(&v); err != nil {
		return nil, goerr.Wrap(err, "failed to decode document",
			goerr.V("collection", collection),
			goerr.V("id", id),
		)
	}
	return &v, nil
}

func list[T any](iter *firestore.DocumentIterator, collection string) ([]*T, error) {
	defer iter.Stop()

	var out []*T
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents", goerr.V("collection", collection))
		}

		var v T
		if err := snap.DataTo(&v); err != nil {
			return nil, goerr.Wrap(err, "failed to decode document",
				goerr.V("collection", collection),
				goerr.V("docID", snap.Ref.ID),
			)
		}
		out = append(out, &v)
	}
	return out, nil
}

// Repository operations

func (x *Store) PutRepository(ctx context.Context, repo *model.Repository) error {
	return put(ctx, x.client, collectionRepo, repo.ID, repo)
}

func (x *Store) GetRepository(ctx context.Context, id types.EntityID) (*model.Repository, error) {
	return get[model.Repository](ctx, x.client, collectionRepo, id)
}

func (x *Store) ListRepositories(ctx context.Context) ([]*model.Repository, error) {
	iter := x.client.Collection(collectionRepo).OrderBy("ID", firestore.Asc).Documents(ctx)
	return list[model.Repository](iter, collectionRepo)
}

// Branch operations

func (x *Store) PutBranch(ctx context.Context, branch *model.Branch) error {
	return put(ctx, x.client, collectionBranch, branch.ID, branch)
}

func (x *Store) GetBranch(ctx context.Context, id types.EntityID) (*model.Branch, error) {
	return get[model.Branch](ctx, x.client, collectionBranch, id)
}

func (x *Store) ListBranches(ctx context.Context, repoID types.EntityID) ([]*model.Branch, error) {
	iter := x.client.Collection(collectionBranch).Where("RepositoryID", "==", string(repoID)).Documents(ctx)
	return list[model.Branch](iter, collectionBranch)
}

// Pull request operations

func (x *Store) PutPullRequest(ctx context.Context, pr *model.PullRequest) error {
	return put(ctx, x.client, collectionPullRequest, pr.ID, pr)
}

func (x *Store) GetPullRequest(ctx context.Context, id types.EntityID) (*model.PullRequest, error) {
	return get[model.PullRequest](ctx, x.client, collectionPullRequest, id)
}

func (x *Store) ListPullRequests(ctx context.Context, repoID types.EntityID) ([]*model.PullRequest, error) {
	iter := x.client.Collection(collectionPullRequest).Where("RepositoryID", "==", string(repoID)).Documents(ctx)
	return list[model.PullRequest](iter, collectionPullRequest)
}

// Integration operations

func (x *Store) PutIntegration(ctx context.Context, ig *model.IntegrationCapability) error {
	return put(ctx, x.client, collectionIntegration, ig.ID, ig)
}

func (x *Store) GetIntegration(ctx context.Context, id types.EntityID) (*model.IntegrationCapability, error) {
	return get[model.IntegrationCapability](ctx, x.client, collectionIntegration, id)
}

func (x *Store) ListIntegrations(ctx context.Context) ([]*model.IntegrationCapability, error) {
	iter := x.client.Collection(collectionIntegration).Documents(ctx)
	return list[model.IntegrationCapability](iter, collectionIntegration)
}

// Task operations

func (x *Store) PutTask(ctx context.Context, task *model.RemediationTask) error {
	return put(ctx, x.client, collectionTask, task.TargetEntityID, task)
}

func (x *Store) ListTasks(ctx context.Context) ([]*model.RemediationTask, error) {
	tasks, err := list[model.RemediationTask](x.client.Collection(collectionTask).Documents(ctx), collectionTask)
	if err != nil {
		return nil, err
	}
	model.SortTasks(tasks)
	return tasks, nil
}

func (x *Store) DeleteTask(ctx context.Context, target types.EntityID) error {
	docID, err := ToDocID(target)
	if err != nil {
		return err
	}
	if _, err := x.client.Collection(collectionTask).Doc(docID).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete task", goerr.V("target", target))
	}
	return nil
}

// Run operations

func (x *Store) PutLatestRun(ctx context.Context, run *model.ScheduledRun) error {
	if _, err := x.client.Collection(collectionRun).Doc(latestRunDocID).Set(ctx, run); err != nil {
		return goerr.Wrap(err, "failed to put latest run", goerr.V("runID", run.ID))
	}
	return nil
}

// GetLatestRun returns nil without error when no run has been saved yet.
func (x *Store) GetLatestRun(ctx context.Context) (*model.ScheduledRun, error) {
	snap, err := x.client.Collection(collectionRun).Doc(latestRunDocID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get latest run")
	}

	var run model.ScheduledRun
	if err := snap.DataTo(&run); err != nil {
		return nil, goerr.Wrap(err, "failed to decode latest run")
	}
	return &run, nil
}
