package server_test

import (
	"testing"

	"github.com/google/go-github/v53/github"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octomend/pkg/controller/server"
)

func TestShouldTrigger(t *testing.T) {
	action := func(s string) *string { return &s }

	testCases := []struct {
		name     string
		event    any
		expected bool
	}{
		{"pull request opened", &github.PullRequestEvent{Action: action("opened")}, true},
		{"pull request closed", &github.PullRequestEvent{Action: action("closed")}, true},
		{"pull request synchronize", &github.PullRequestEvent{Action: action("synchronize")}, true},
		{"pull request labeled", &github.PullRequestEvent{Action: action("labeled")}, false},
		{"branch deleted", &github.DeleteEvent{RefType: action("branch")}, true},
		{"tag deleted", &github.DeleteEvent{RefType: action("tag")}, false},
		{"repositories added", &github.InstallationRepositoriesEvent{Action: action("added")}, true},
		{"repositories removed", &github.InstallationRepositoriesEvent{Action: action("removed")}, false},
		{"installation", &github.InstallationEvent{}, false},
		{"push", &github.PushEvent{}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gt.V(t, server.ShouldTriggerForTest(tc.event)).Equal(tc.expected)
		})
	}
}
