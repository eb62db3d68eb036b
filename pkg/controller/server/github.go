package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v53/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

// validateGitHubAppEvent checks the webhook signature and parses the event.
func validateGitHubAppEvent(r *http.Request, key types.GitHubAppSecret) (any, error) {
	ctx := r.Context()
	payload, err := github.ValidatePayload(r, []byte(key))
	if err != nil {
		return nil, goerr.Wrap(err, "validating payload")
	}

	event, err := github.ParseWebHook(github.WebHookType(r), payload)
	if err != nil {
		return nil, goerr.Wrap(err, "parsing webhook", goerr.V("type", github.WebHookType(r)))
	}

	logging.From(ctx).Info("Received GitHub App event", slog.String("type", fmt.Sprintf("%T", event)))
	return event, nil
}

// shouldTrigger reports whether event can change the plan of a cycle: a pull
// request changed state, a branch was deleted, or repositories were added to
// the installation.
func shouldTrigger(event any) bool {
	switch ev := event.(type) {
	case *github.PullRequestEvent:
		switch ev.GetAction() {
		case "opened", "reopened", "closed", "synchronize", "ready_for_review":
			return true
		}
		logging.Default().Debug("ignore PR event", slog.String("action", ev.GetAction()))
		return false

	case *github.DeleteEvent:
		return ev.GetRefType() == "branch"

	case *github.InstallationRepositoriesEvent:
		return ev.GetAction() == "added"

	case *github.InstallationEvent, *github.PingEvent:
		return false

	default:
		logging.Default().Warn("unsupported event", slog.Any("event", fmt.Sprintf("%T", event)))
		return false
	}
}

// Test helpers - exported for testing
func ShouldTriggerForTest(event any) bool {
	return shouldTrigger(event)
}
