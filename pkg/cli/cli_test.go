package cli_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octomend/pkg/cli"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
)

// setupFleet creates a local clone with a stale branch that points at the
// default branch head.
func setupFleet(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "service")

	repo := gt.R1(git.PlainInit(dir, false)).NoError(t)
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0600))
	wt := gt.R1(repo.Worktree()).NoError(t)
	gt.R1(wt.Add("README.md")).NoError(t)
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	hash := gt.R1(wt.Commit("init", &git.CommitOptions{Author: sig, Committer: sig})).NoError(t)
	gt.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("stale"), hash)))

	return root
}

func branchExists(t *testing.T, root, name string) bool {
	t.Helper()
	repo := gt.R1(git.PlainOpen(filepath.Join(root, "service"))).NoError(t)
	_, err := repo.Reference(plumbing.NewBranchReferenceName(name), false)
	return err == nil
}

func run(t *testing.T, args ...string) (int, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	err := cli.New(cli.WithOutput(&out)).Run(append([]string{"octomend", "--log-level", "warn"}, args...))
	return cli.ExitCode(err), &out
}

func TestRemediate(t *testing.T) {
	t.Run("dry run by default changes nothing", func(t *testing.T) {
		root := setupFleet(t)
		code, out := run(t, "remediate", "--repos-root", root, "--output", "json")
		gt.V(t, code).Equal(cli.ExitOK)
		gt.True(t, branchExists(t, root, "stale"))

		var summary struct {
			Run   model.ScheduledRun       `json:"run"`
			Tasks []*model.RemediationTask `json:"tasks"`
		}
		gt.NoError(t, json.Unmarshal(out.Bytes(), &summary))
		gt.True(t, summary.Run.DryRun)
		gt.V(t, summary.Run.TasksSkipped).Equal(1)
		gt.A(t, summary.Tasks).Length(1)
		gt.V(t, summary.Tasks[0].Kind).Equal(types.TaskDeleteStaleBranch)
	})

	t.Run("apply deletes the stale branch", func(t *testing.T) {
		root := setupFleet(t)
		reportFile := filepath.Join(t.TempDir(), "report.json")
		code, out := run(t, "remediate", "--apply", "--repos-root", root, "--report-file", reportFile)
		gt.V(t, code).Equal(cli.ExitOK)
		gt.False(t, branchExists(t, root, "stale"))
		gt.S(t, out.String()).Contains("succeeded: 1")

		raw := gt.R1(os.ReadFile(reportFile)).NoError(t)
		gt.S(t, string(raw)).Contains(`"tasks_succeeded": 1`)
	})

	t.Run("failed task exits with 1", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		code, out := run(t, "remediate", "--apply", "--api-connection", "assistant="+srv.URL+"/v1/me")
		gt.V(t, code).Equal(cli.ExitTaskFailure)
		gt.S(t, out.String()).Contains("failed:    1")
	})

	t.Run("nightly-run uses the same exit codes", func(t *testing.T) {
		root := setupFleet(t)
		code, _ := run(t, "nightly-run", "--apply", "--repos-root", root)
		gt.V(t, code).Equal(cli.ExitOK)
		gt.False(t, branchExists(t, root, "stale"))
	})
}

func TestAudit(t *testing.T) {
	root := setupFleet(t)
	code, out := run(t, "audit", "--repos-root", root, "--output", "json")
	gt.V(t, code).Equal(cli.ExitOK)
	gt.True(t, branchExists(t, root, "stale"))

	var report model.AuditReport
	gt.NoError(t, json.Unmarshal(out.Bytes(), &report))
	gt.A(t, report.Repositories).Length(1)
	gt.V(t, report.Repositories[0].StaleBranches).Equal(1)
	gt.A(t, report.PlannedTasks).Length(1)
}

func TestConfigErrors(t *testing.T) {
	root := setupFleet(t)
	badFleet := filepath.Join(t.TempDir(), "fleet.cue")
	gt.NoError(t, os.WriteFile(badFleet, []byte(`maxAttempts: 0`), 0600))

	testCases := map[string][]string{
		"exclusive modes":  {"remediate", "--dry-run", "--apply", "--repos-root", root},
		"no adapter":       {"remediate", "--apply"},
		"missing root":     {"remediate", "--repos-root", filepath.Join(root, "none")},
		"invalid fleet":    {"nightly-run", "--repos-root", root, "--config", badFleet},
		"unknown flag":     {"audit", "--no-such-flag"},
		"bad output":       {"audit", "--repos-root", root, "--output", "yaml"},
		"bad log level":    {"--log-level", "loud", "audit", "--repos-root", root},
		"bad gcs mapping":  {"audit", "--gcs-integration", "sync"},
		"bad api mapping":  {"audit", "--api-connection", "assistant"},
		"invalid interval": {"serve", "--repos-root", root, "--interval", "0s"},
	}

	for name, args := range testCases {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			err := cli.New(cli.WithOutput(&out)).Run(append([]string{"octomend"}, args...))
			gt.V(t, cli.ExitCode(err)).Equal(cli.ExitFatal)
		})
	}
}

func TestExitCode(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, cli.ExitOK},
		{"tasks failed", goerr.Wrap(cli.ErrTasksFailed, "cycle"), cli.ExitTaskFailure},
		{"auth failure", goerr.Wrap(cli.ErrAdapterAuth, "audit"), cli.ExitFatal},
		{"config", goerr.Wrap(types.ErrConfig, "bad"), cli.ExitFatal},
		{"invalid option", goerr.Wrap(types.ErrInvalidOption, "bad"), cli.ExitFatal},
		{"other", errors.New("boom"), cli.ExitTaskFailure},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gt.V(t, cli.ExitCode(tc.err)).Equal(tc.want)
		})
	}
}
