// Package github is the code-hosting adapter backed by the GitHub REST API,
// authenticated as a GitHub App installation.
package github

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v53/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
	"golang.org/x/time/rate"
)

const perPage = 100

type Client struct {
	gh      *github.Client
	limiter *rate.Limiter
	// repos limits listing to these "owner/name" entries. Empty means every
	// repository the installation can access.
	repos []string

	mu            sync.Mutex
	defaultBranch map[string]types.BranchName
}

var _ interfaces.Adapter = (*Client)(nil)

type Option func(*Client)

// WithRateLimit limits outbound API calls to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(x *Client) {
		x.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRepositories restricts listing to the given "owner/name" repositories.
func WithRepositories(repos ...string) Option {
	return func(x *Client) {
		x.repos = append(x.repos, repos...)
	}
}

// New builds an adapter authenticated as an installation of a GitHub App.
func New(appID types.GitHubAppID, installID types.GitHubAppInstallID, pem types.GitHubAppPrivateKey, options ...Option) (*Client, error) {
	if appID == 0 {
		return nil, goerr.Wrap(types.ErrConfig, "appID is empty")
	}
	if installID == 0 {
		return nil, goerr.Wrap(types.ErrConfig, "installID is empty")
	}
	if pem == "" {
		return nil, goerr.Wrap(types.ErrConfig, "pem is empty")
	}

	itr, err := ghinstallation.New(http.DefaultTransport, int64(appID), int64(installID), []byte(pem))
	if err != nil {
		return nil, goerr.Wrap(types.ErrConfig, "failed to create github app transport",
			goerr.V("appID", appID), goerr.V("cause", err.Error()))
	}

	return NewWithClient(github.NewClient(&http.Client{Transport: itr}), options...), nil
}

// NewWithClient wraps an already authenticated go-github client.
func NewWithClient(gh *github.Client, options ...Option) *Client {
	client := &Client{
		gh:            gh,
		limiter:       rate.NewLimiter(rate.Inf, 1),
		defaultBranch: make(map[string]types.BranchName),
	}
	for _, opt := range options {
		opt(client)
	}
	return client
}

func (x *Client) Provider() types.ProviderTag { return types.ProviderGitHub }

func (x *Client) wait(ctx context.Context) error {
	if err := x.limiter.Wait(ctx); err != nil {
		return goerr.Wrap(err, "rate limiter wait")
	}
	return nil
}

// ListEntities implements interfaces.Adapter. Integrations are not a GitHub
// concept and report ErrUnsupported.
func (x *Client) ListEntities(ctx context.Context, kind types.EntityKind) ([]model.EntityRef, error) {
	switch kind {
	case types.EntityRepository, types.EntityBranch, types.EntityPullRequest:
	default:
		return nil, goerr.Wrap(types.ErrUnsupported, "github lists no such entity", goerr.V("kind", kind))
	}

	repos, err := x.listRepositories(ctx)
	if err != nil {
		return nil, err
	}

	var refs []model.EntityRef
	for _, repo := range repos {
		repoID := model.RepositoryID(types.ProviderGitHub, repo.GetFullName())
		switch kind {
		case types.EntityRepository:
			refs = append(refs, x.ref(types.EntityRepository, repoID, ""))

		case types.EntityBranch:
			branches, err := x.listBranches(ctx, repo.GetOwner().GetLogin(), repo.GetName())
			if err != nil {
				return nil, err
			}
			for _, b := range branches {
				refs = append(refs, x.ref(types.EntityBranch, model.BranchID(repoID, types.BranchName(b.GetName())), repoID))
			}

		case types.EntityPullRequest:
			prs, err := x.listPullRequests(ctx, repo.GetOwner().GetLogin(), repo.GetName())
			if err != nil {
				return nil, err
			}
			for _, pr := range prs {
				refs = append(refs, x.ref(types.EntityPullRequest, model.PullRequestID(repoID, pr.GetNumber()), repoID))
			}
		}
	}

	logging.From(ctx).Debug("listed github entities",
		slog.String("kind", string(kind)),
		slog.Int("count", len(refs)),
	)
	return refs, nil
}

func (x *Client) ref(kind types.EntityKind, id, repoID types.EntityID) model.EntityRef {
	return model.EntityRef{ID: id, Kind: kind, Provider: types.ProviderGitHub, RepositoryID: repoID}
}

func (x *Client) listRepositories(ctx context.Context) ([]*github.Repository, error) {
	if len(x.repos) > 0 {
		var repos []*github.Repository
		for _, fullName := range x.repos {
			owner, name, err := splitFullName(fullName)
			if err != nil {
				return nil, err
			}
			repo, err := x.getRepository(ctx, owner, name)
			if err != nil {
				if errors.Is(err, types.ErrNotFound) {
					continue
				}
				return nil, err
			}
			repos = append(repos, repo)
		}
		return repos, nil
	}

	var repos []*github.Repository
	opts := &github.ListOptions{PerPage: perPage}
	for {
		if err := x.wait(ctx); err != nil {
			return nil, err
		}
		result, resp, err := x.gh.Apps.ListRepos(ctx, opts)
		if err != nil {
			return nil, wrapError(err, resp, "failed to list installation repos")
		}

		for _, repo := range result.Repositories {
			x.rememberDefaultBranch(repo)
			repos = append(repos, repo)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return repos, nil
}

func (x *Client) listBranches(ctx context.Context, owner, name string) ([]*github.Branch, error) {
	var branches []*github.Branch
	opts := &github.BranchListOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	for {
		if err := x.wait(ctx); err != nil {
			return nil, err
		}
		result, resp, err := x.gh.Repositories.ListBranches(ctx, owner, name, opts)
		if err != nil {
			return nil, wrapError(err, resp, "failed to list branches", goerr.V("repo", owner+"/"+name))
		}
		branches = append(branches, result...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return branches, nil
}

func (x *Client) listPullRequests(ctx context.Context, owner, name string) ([]*github.PullRequest, error) {
	var prs []*github.PullRequest
	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		if err := x.wait(ctx); err != nil {
			return nil, err
		}
		result, resp, err := x.gh.PullRequests.List(ctx, owner, name, opts)
		if err != nil {
			return nil, wrapError(err, resp, "failed to list pull requests", goerr.V("repo", owner+"/"+name))
		}
		prs = append(prs, result...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return prs, nil
}

// ReadState implements interfaces.Adapter.
func (x *Client) ReadState(ctx context.Context, ref model.EntityRef) (*model.EntitySnapshot, error) {
	switch ref.Kind {
	case types.EntityRepository:
		owner, name, err := splitFullName(ref.ID.ExternalID())
		if err != nil {
			return nil, err
		}
		repo, err := x.getRepository(ctx, owner, name)
		if err != nil {
			return nil, err
		}
		return &model.EntitySnapshot{Ref: ref, Repository: repositorySnapshot(repo)}, nil

	case types.EntityBranch:
		snap, err := x.readBranch(ctx, ref)
		if err != nil {
			return nil, err
		}
		return &model.EntitySnapshot{Ref: ref, Branch: snap}, nil

	case types.EntityPullRequest:
		snap, err := x.readPullRequest(ctx, ref)
		if err != nil {
			return nil, err
		}
		return &model.EntitySnapshot{Ref: ref, PullRequest: snap}, nil
	}

	return nil, goerr.Wrap(types.ErrUnsupported, "github has no such entity", goerr.V("ref", ref))
}

func (x *Client) getRepository(ctx context.Context, owner, name string) (*github.Repository, error) {
	if err := x.wait(ctx); err != nil {
		return nil, err
	}
	repo, resp, err := x.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, wrapError(err, resp, "failed to get repository", goerr.V("repo", owner+"/"+name))
	}
	x.rememberDefaultBranch(repo)
	return repo, nil
}

// repositorySnapshot uses the root of the fork network as the history
// fingerprint, so a fork and its source share one.
func repositorySnapshot(repo *github.Repository) *model.RepositorySnapshot {
	fingerprint := repo.GetFullName()
	if repo.GetFork() && repo.GetSource() != nil {
		fingerprint = repo.GetSource().GetFullName()
	}

	return &model.RepositorySnapshot{
		Owner:              repo.GetOwner().GetLogin(),
		Name:               repo.GetName(),
		DefaultBranch:      types.BranchName(repo.GetDefaultBranch()),
		HistoryFingerprint: "github:" + fingerprint,
		CreatedAt:          repo.GetCreatedAt().Time,
		Archived:           repo.GetArchived(),
	}
}

func (x *Client) rememberDefaultBranch(repo *github.Repository) {
	if repo.GetDefaultBranch() == "" {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.defaultBranch[repo.GetFullName()] = types.BranchName(repo.GetDefaultBranch())
}

func (x *Client) lookupDefaultBranch(ctx context.Context, owner, name string) (types.BranchName, error) {
	x.mu.Lock()
	branch, ok := x.defaultBranch[owner+"/"+name]
	x.mu.Unlock()
	if ok {
		return branch, nil
	}

	repo, err := x.getRepository(ctx, owner, name)
	if err != nil {
		return "", err
	}
	return types.BranchName(repo.GetDefaultBranch()), nil
}

func (x *Client) readBranch(ctx context.Context, ref model.EntityRef) (*model.BranchSnapshot, error) {
	repoID, branch, ok := model.SplitBranchID(ref.ID)
	if !ok {
		return nil, goerr.Wrap(types.ErrValidationFailed, "malformed branch id", goerr.V("id", ref.ID))
	}
	owner, name, err := splitFullName(repoID.ExternalID())
	if err != nil {
		return nil, err
	}

	sha, err := x.headSHA(ctx, owner, name, branch)
	if err != nil {
		return nil, err
	}

	defaultBranch, err := x.lookupDefaultBranch(ctx, owner, name)
	if err != nil {
		return nil, err
	}

	snap := &model.BranchSnapshot{
		Name:      branch,
		HeadSHA:   sha,
		IsDefault: branch == defaultBranch,
	}
	if snap.IsDefault {
		return snap, nil
	}

	if err := x.wait(ctx); err != nil {
		return nil, err
	}
	cmp, resp, err := x.gh.Repositories.CompareCommits(ctx, owner, name, string(defaultBranch), string(branch), &github.ListOptions{PerPage: 1})
	if err != nil {
		return nil, wrapError(err, resp, "failed to compare branch", goerr.V("repo", owner+"/"+name), goerr.V("branch", branch))
	}
	snap.HasUnmergedWork = cmp.GetAheadBy() > 0

	return snap, nil
}

func (x *Client) headSHA(ctx context.Context, owner, name string, branch types.BranchName) (types.CommitSHA, error) {
	if err := x.wait(ctx); err != nil {
		return "", err
	}
	gitRef, resp, err := x.gh.Git.GetRef(ctx, owner, name, "heads/"+string(branch))
	if err != nil {
		return "", wrapError(err, resp, "failed to get branch ref", goerr.V("repo", owner+"/"+name), goerr.V("branch", branch))
	}
	return types.CommitSHA(gitRef.GetObject().GetSHA()), nil
}

// passingConclusions are check run conclusions that do not block a merge.
var passingConclusions = map[string]bool{
	"success": true,
	"neutral": true,
	"skipped": true,
}

func (x *Client) readPullRequest(ctx context.Context, ref model.EntityRef) (*model.PullRequestSnapshot, error) {
	repoID, number, ok := model.SplitPullRequestID(ref.ID)
	if !ok {
		return nil, goerr.Wrap(types.ErrValidationFailed, "malformed pull request id", goerr.V("id", ref.ID))
	}
	owner, name, err := splitFullName(repoID.ExternalID())
	if err != nil {
		return nil, err
	}

	if err := x.wait(ctx); err != nil {
		return nil, err
	}
	pr, resp, err := x.gh.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		return nil, wrapError(err, resp, "failed to get pull request", goerr.V("id", ref.ID))
	}

	snap := &model.PullRequestSnapshot{
		Number:       pr.GetNumber(),
		SourceBranch: types.BranchName(pr.GetHead().GetRef()),
		TargetBranch: types.BranchName(pr.GetBase().GetRef()),
		Open:         pr.GetState() == "open",
		Merged:       pr.GetMerged(),
	}
	if !snap.Open {
		return snap, nil
	}

	// mergeable is null while GitHub is still computing it.
	snap.Mergeable = pr.Mergeable != nil && pr.GetMergeable()
	switch pr.GetMergeableState() {
	case "dirty":
		snap.HasConflicts = true
		// Conflicting files do not stop the rest of the diff from merging.
		snap.Mergeable = true
		snap.UnresolvedNotes = append(snap.UnresolvedNotes, "merge conflicts with "+pr.GetBase().GetRef())
	case "blocked":
		snap.UnresolvedNotes = append(snap.UnresolvedNotes, "merge blocked by branch protection")
	}

	if _, err := x.headSHA(ctx, owner, name, snap.SourceBranch); err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
	} else {
		snap.SourceBranchExists = true
	}

	checks, err := x.openChecks(ctx, owner, name, pr.GetHead().GetSHA())
	if err != nil {
		return nil, err
	}
	snap.OpenRequiredChecks = checks

	return snap, nil
}

func (x *Client) openChecks(ctx context.Context, owner, name, sha string) ([]string, error) {
	if sha == "" {
		return nil, nil
	}

	var open []string
	opts := &github.ListCheckRunsOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	for {
		if err := x.wait(ctx); err != nil {
			return nil, err
		}
		result, resp, err := x.gh.Checks.ListCheckRunsForRef(ctx, owner, name, sha, opts)
		if err != nil {
			return nil, wrapError(err, resp, "failed to list check runs", goerr.V("repo", owner+"/"+name), goerr.V("sha", sha))
		}
		for _, run := range result.CheckRuns {
			if run.GetStatus() != "completed" || !passingConclusions[run.GetConclusion()] {
				open = append(open, run.GetName())
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return open, nil
}

// Merge implements interfaces.Adapter. GitHub merges whole pull requests, so
// a selective merge merges the PR and reports what remained unresolved before
// the merge.
func (x *Client) Merge(ctx context.Context, ref model.EntityRef, opts model.MergeOptions) (*model.MergeResult, error) {
	repoID, number, ok := model.SplitPullRequestID(ref.ID)
	if !ok {
		return nil, goerr.Wrap(types.ErrValidationFailed, "malformed pull request id", goerr.V("id", ref.ID))
	}
	owner, name, err := splitFullName(repoID.ExternalID())
	if err != nil {
		return nil, err
	}

	var notes []string
	if opts.Selective {
		snap, err := x.readPullRequest(ctx, ref)
		if err != nil {
			return nil, err
		}
		if snap.HasConflicts {
			return nil, goerr.Wrap(types.ErrConflict, "pull request has conflicts", goerr.V("id", ref.ID))
		}
		notes = snap.Unresolved()
	}

	if err := x.wait(ctx); err != nil {
		return nil, err
	}
	result, resp, err := x.gh.PullRequests.Merge(ctx, owner, name, number, "", &github.PullRequestOptions{MergeMethod: "merge"})
	if err != nil {
		return nil, wrapError(err, resp, "failed to merge pull request", goerr.V("id", ref.ID))
	}
	if !result.GetMerged() {
		return nil, goerr.Wrap(types.ErrConflict, "pull request was not merged",
			goerr.V("id", ref.ID), goerr.V("message", result.GetMessage()))
	}

	logging.From(ctx).Info("merged pull request",
		slog.Any("id", ref.ID),
		slog.String("sha", result.GetSHA()),
		slog.Bool("selective", opts.Selective),
	)

	outcome := types.MergeOutcomeMerged
	if opts.Selective && len(notes) > 0 {
		outcome = types.MergeOutcomePartialMerged
	}
	return &model.MergeResult{Outcome: outcome, UnresolvedNotes: notes}, nil
}

// DeleteBranch implements interfaces.Adapter.
func (x *Client) DeleteBranch(ctx context.Context, ref model.EntityRef) error {
	repoID, branch, ok := model.SplitBranchID(ref.ID)
	if !ok {
		return goerr.Wrap(types.ErrValidationFailed, "malformed branch id", goerr.V("id", ref.ID))
	}
	owner, name, err := splitFullName(repoID.ExternalID())
	if err != nil {
		return err
	}

	if err := x.wait(ctx); err != nil {
		return err
	}
	resp, err := x.gh.Git.DeleteRef(ctx, owner, name, "heads/"+string(branch))
	if err != nil {
		// GitHub answers 422 "Reference does not exist" for a deleted ref.
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			return goerr.Wrap(types.ErrNotFound, "branch does not exist", goerr.V("id", ref.ID))
		}
		return wrapError(err, resp, "failed to delete branch", goerr.V("id", ref.ID))
	}

	logging.From(ctx).Info("deleted branch", slog.Any("id", ref.ID))
	return nil
}

func (x *Client) Verify(ctx context.Context, ref model.EntityRef) error {
	return goerr.Wrap(types.ErrUnsupported, "github has no integrations", goerr.V("id", ref.ID))
}

func (x *Client) Activate(ctx context.Context, ref model.EntityRef) error {
	return goerr.Wrap(types.ErrUnsupported, "github has no integrations", goerr.V("id", ref.ID))
}

func splitFullName(fullName string) (string, string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return "", "", goerr.Wrap(types.ErrValidationFailed, "malformed repository name", goerr.V("name", fullName))
	}
	return owner, name, nil
}

// wrapError maps a go-github error onto the adapter error taxonomy.
func wrapError(err error, resp *github.Response, msg string, values ...goerr.Option) error {
	values = append(values, goerr.V("cause", err.Error()))

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return goerr.Wrap(err, msg, values...)
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return goerr.Wrap(types.ErrTransientNetwork, msg, values...)
	case resp == nil || resp.Response == nil:
		return goerr.Wrap(types.ErrTransientNetwork, msg, values...)
	}

	values = append(values, goerr.V("status", resp.StatusCode))
	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return goerr.Wrap(types.ErrAuth, msg, values...)
	case code == http.StatusNotFound:
		return goerr.Wrap(types.ErrNotFound, msg, values...)
	case code == http.StatusMethodNotAllowed, code == http.StatusConflict:
		return goerr.Wrap(types.ErrConflict, msg, values...)
	case code == http.StatusTooManyRequests, code >= 500:
		return goerr.Wrap(types.ErrTransientNetwork, msg, values...)
	default:
		return goerr.Wrap(err, msg, values...)
	}
}
