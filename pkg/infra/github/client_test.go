package github_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gh "github.com/google/go-github/v53/github"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/infra/github"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	gt.NoError(t, json.NewEncoder(w).Encode(v))
}

func newClient(t *testing.T, mux *http.ServeMux, options ...github.Option) *github.Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ghClient := gh.NewClient(nil)
	baseURL := gt.R1(url.Parse(srv.URL + "/")).NoError(t)
	ghClient.BaseURL = baseURL
	return github.NewWithClient(ghClient, options...)
}

var serviceRepo = map[string]any{
	"name":           "service",
	"full_name":      "acme/service",
	"owner":          map[string]any{"login": "acme"},
	"default_branch": "main",
	"created_at":     "2023-01-02T03:04:05Z",
}

func fleetMux(t *testing.T) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /installation/repositories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"total_count":  1,
			"repositories": []any{serviceRepo},
		})
	})
	mux.HandleFunc("GET /repos/acme/service", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, serviceRepo)
	})
	mux.HandleFunc("GET /repos/acme/service/branches", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, []any{
			map[string]any{"name": "main"},
			map[string]any{"name": "feature"},
		})
	})
	mux.HandleFunc("GET /repos/acme/service/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"ref": "refs/heads/main", "object": map[string]any{"sha": "m1"}})
	})
	mux.HandleFunc("GET /repos/acme/service/git/ref/heads/feature", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"ref": "refs/heads/feature", "object": map[string]any{"sha": "f1"}})
	})
	mux.HandleFunc("GET /repos/acme/service/git/ref/heads/gone", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	})
	mux.HandleFunc("GET /repos/acme/service/compare/main...feature", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"ahead_by": 2, "behind_by": 0})
	})
	mux.HandleFunc("GET /repos/acme/service/pulls", func(w http.ResponseWriter, r *http.Request) {
		gt.V(t, r.URL.Query().Get("state")).Equal("open")
		writeJSON(t, w, http.StatusOK, []any{map[string]any{"number": 1}})
	})
	mux.HandleFunc("GET /repos/acme/service/pulls/1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"number":          1,
			"state":           "open",
			"mergeable":       true,
			"mergeable_state": "unstable",
			"head":            map[string]any{"ref": "feature", "sha": "f1"},
			"base":            map[string]any{"ref": "main"},
		})
	})
	mux.HandleFunc("GET /repos/acme/service/pulls/2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"number":          2,
			"state":           "open",
			"mergeable":       false,
			"mergeable_state": "dirty",
			"head":            map[string]any{"ref": "gone", "sha": "g1"},
			"base":            map[string]any{"ref": "main"},
		})
	})
	mux.HandleFunc("GET /repos/acme/service/commits/f1/check-runs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"total_count": 2,
			"check_runs": []any{
				map[string]any{"name": "build", "status": "completed", "conclusion": "success"},
				map[string]any{"name": "lint", "status": "completed", "conclusion": "failure"},
			},
		})
	})
	mux.HandleFunc("GET /repos/acme/service/commits/g1/check-runs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"total_count": 0, "check_runs": []any{}})
	})
	return mux
}

var serviceID = model.RepositoryID(types.ProviderGitHub, "acme/service")

func TestNew(t *testing.T) {
	t.Run("zero app ID fails", func(t *testing.T) {
		_, err := github.New(0, 1, "key")
		gt.Error(t, err)
		gt.True(t, types.Classify(err) == types.ErrorClassConfig)
	})

	t.Run("zero install ID fails", func(t *testing.T) {
		_, err := github.New(1, 0, "key")
		gt.Error(t, err)
	})

	t.Run("empty private key fails", func(t *testing.T) {
		_, err := github.New(1, 1, "")
		gt.Error(t, err)
	})

	t.Run("invalid private key fails", func(t *testing.T) {
		_, err := github.New(1, 1, "not-a-pem")
		gt.Error(t, err)
		gt.True(t, types.Classify(err) == types.ErrorClassConfig)
	})
}

func TestListEntities(t *testing.T) {
	client := newClient(t, fleetMux(t))
	ctx := context.Background()

	repos := gt.R1(client.ListEntities(ctx, types.EntityRepository)).NoError(t)
	gt.A(t, repos).Length(1)
	gt.V(t, repos[0].ID).Equal(serviceID)
	gt.V(t, repos[0].Provider).Equal(types.ProviderGitHub)

	branches := gt.R1(client.ListEntities(ctx, types.EntityBranch)).NoError(t)
	gt.A(t, branches).Length(2)
	gt.V(t, branches[1].ID).Equal(model.BranchID(serviceID, "feature"))
	gt.V(t, branches[1].RepositoryID).Equal(serviceID)

	prs := gt.R1(client.ListEntities(ctx, types.EntityPullRequest)).NoError(t)
	gt.A(t, prs).Length(1)
	gt.V(t, prs[0].ID).Equal(model.PullRequestID(serviceID, 1))

	_, err := client.ListEntities(ctx, types.EntityIntegration)
	gt.True(t, types.Classify(err) == types.ErrorClassUnsupported)
}

func TestListEntitiesWithRepositories(t *testing.T) {
	mux := fleetMux(t)
	mux.HandleFunc("GET /repos/acme/archived", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	})
	client := newClient(t, mux, github.WithRepositories("acme/service", "acme/archived"))

	repos := gt.R1(client.ListEntities(context.Background(), types.EntityRepository)).NoError(t)
	gt.A(t, repos).Length(1)
	gt.V(t, repos[0].ID).Equal(serviceID)
}

func TestReadState(t *testing.T) {
	client := newClient(t, fleetMux(t))
	ctx := context.Background()

	t.Run("repository", func(t *testing.T) {
		snap := gt.R1(client.ReadState(ctx, model.EntityRef{ID: serviceID, Kind: types.EntityRepository})).NoError(t)
		gt.V(t, snap.Repository.Owner).Equal("acme")
		gt.V(t, snap.Repository.DefaultBranch).Equal(types.BranchName("main"))
		gt.V(t, snap.Repository.HistoryFingerprint).Equal("github:acme/service")
		gt.V(t, snap.Repository.CreatedAt.Year()).Equal(2023)
	})

	t.Run("feature branch ahead of default", func(t *testing.T) {
		ref := model.EntityRef{ID: model.BranchID(serviceID, "feature"), Kind: types.EntityBranch}
		snap := gt.R1(client.ReadState(ctx, ref)).NoError(t)
		gt.V(t, snap.Branch.HeadSHA).Equal(types.CommitSHA("f1"))
		gt.True(t, snap.Branch.HasUnmergedWork)
		gt.False(t, snap.Branch.IsDefault)
	})

	t.Run("default branch", func(t *testing.T) {
		ref := model.EntityRef{ID: model.BranchID(serviceID, "main"), Kind: types.EntityBranch}
		snap := gt.R1(client.ReadState(ctx, ref)).NoError(t)
		gt.True(t, snap.Branch.IsDefault)
		gt.False(t, snap.Branch.HasUnmergedWork)
	})

	t.Run("missing branch is not found", func(t *testing.T) {
		ref := model.EntityRef{ID: model.BranchID(serviceID, "gone"), Kind: types.EntityBranch}
		_, err := client.ReadState(ctx, ref)
		gt.True(t, types.Classify(err) == types.ErrorClassNotFound)
	})

	t.Run("pull request with failing check is partial", func(t *testing.T) {
		ref := model.EntityRef{ID: model.PullRequestID(serviceID, 1), Kind: types.EntityPullRequest}
		snap := gt.R1(client.ReadState(ctx, ref)).NoError(t)
		pr := snap.PullRequest
		gt.True(t, pr.Open)
		gt.True(t, pr.Mergeable)
		gt.True(t, pr.SourceBranchExists)
		gt.V(t, pr.OpenRequiredChecks).Equal([]string{"lint"})
		gt.V(t, pr.Completeness()).Equal(types.DiffPartial)
	})

	t.Run("conflicting pull request without source branch", func(t *testing.T) {
		ref := model.EntityRef{ID: model.PullRequestID(serviceID, 2), Kind: types.EntityPullRequest}
		snap := gt.R1(client.ReadState(ctx, ref)).NoError(t)
		pr := snap.PullRequest
		gt.True(t, pr.HasConflicts)
		gt.False(t, pr.SourceBranchExists)
		gt.A(t, pr.UnresolvedNotes).Length(1)
		gt.S(t, pr.UnresolvedNotes[0]).Contains("merge conflicts")
	})
}

func TestMerge(t *testing.T) {
	var merged int
	mux := fleetMux(t)
	mux.HandleFunc("PUT /repos/acme/service/pulls/1/merge", func(w http.ResponseWriter, r *http.Request) {
		merged++
		writeJSON(t, w, http.StatusOK, map[string]any{"merged": true, "sha": "m2"})
	})
	mux.HandleFunc("PUT /repos/acme/service/pulls/2/merge", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusMethodNotAllowed, map[string]any{"message": "Pull Request is not mergeable"})
	})
	client := newClient(t, mux)
	ctx := context.Background()

	t.Run("complete merge", func(t *testing.T) {
		ref := model.EntityRef{ID: model.PullRequestID(serviceID, 1), Kind: types.EntityPullRequest}
		result := gt.R1(client.Merge(ctx, ref, model.MergeOptions{})).NoError(t)
		gt.V(t, result.Outcome).Equal(types.MergeOutcomeMerged)
		gt.A(t, result.UnresolvedNotes).Length(0)
	})

	t.Run("selective merge reports unresolved checks", func(t *testing.T) {
		ref := model.EntityRef{ID: model.PullRequestID(serviceID, 1), Kind: types.EntityPullRequest}
		result := gt.R1(client.Merge(ctx, ref, model.MergeOptions{Selective: true})).NoError(t)
		gt.V(t, result.Outcome).Equal(types.MergeOutcomePartialMerged)
		gt.V(t, result.UnresolvedNotes).Equal([]string{"required check not passing: lint"})
	})

	t.Run("not mergeable is a conflict", func(t *testing.T) {
		ref := model.EntityRef{ID: model.PullRequestID(serviceID, 2), Kind: types.EntityPullRequest}
		_, err := client.Merge(ctx, ref, model.MergeOptions{})
		gt.True(t, types.Classify(err) == types.ErrorClassConflict)
	})

	gt.V(t, merged).Equal(2)
}

func TestDeleteBranch(t *testing.T) {
	var deleted []string
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /repos/acme/service/git/refs/heads/feature", func(w http.ResponseWriter, r *http.Request) {
		deleted = append(deleted, "feature")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /repos/acme/service/git/refs/heads/gone", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnprocessableEntity, map[string]any{"message": "Reference does not exist"})
	})
	client := newClient(t, mux)
	ctx := context.Background()

	gt.NoError(t, client.DeleteBranch(ctx, model.EntityRef{ID: model.BranchID(serviceID, "feature"), Kind: types.EntityBranch}))
	gt.V(t, deleted).Equal([]string{"feature"})

	err := client.DeleteBranch(ctx, model.EntityRef{ID: model.BranchID(serviceID, "gone"), Kind: types.EntityBranch})
	gt.True(t, types.Classify(err) == types.ErrorClassNotFound)
}

func TestErrorMapping(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		class  types.ErrorClass
	}{
		{"unauthorized", http.StatusUnauthorized, types.ErrorClassAuth},
		{"forbidden", http.StatusForbidden, types.ErrorClassAuth},
		{"not found", http.StatusNotFound, types.ErrorClassNotFound},
		{"conflict", http.StatusConflict, types.ErrorClassConflict},
		{"too many requests", http.StatusTooManyRequests, types.ErrorClassTransient},
		{"server error", http.StatusBadGateway, types.ErrorClassTransient},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /repos/acme/service", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tc.status, map[string]any{"message": http.StatusText(tc.status)})
			})
			client := newClient(t, mux)

			_, err := client.ReadState(context.Background(), model.EntityRef{ID: serviceID, Kind: types.EntityRepository})
			gt.Error(t, err)
			gt.V(t, types.Classify(err)).Equal(tc.class)
		})
	}

	t.Run("connection refused is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.NewServeMux())
		srv.Close()

		ghClient := gh.NewClient(nil)
		ghClient.BaseURL = gt.R1(url.Parse(srv.URL + "/")).NoError(t)
		client := github.NewWithClient(ghClient)

		_, err := client.ReadState(context.Background(), model.EntityRef{ID: serviceID, Kind: types.EntityRepository})
		gt.V(t, types.Classify(err)).Equal(types.ErrorClassTransient)
	})
}

func TestVerifyUnsupported(t *testing.T) {
	client := newClient(t, http.NewServeMux())
	err := client.Verify(context.Background(), model.EntityRef{ID: "github:adapter"})
	gt.V(t, types.Classify(err)).Equal(types.ErrorClassUnsupported)
}
