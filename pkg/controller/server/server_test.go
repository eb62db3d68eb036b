package server_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octomend/pkg/controller/server"
	"github.com/m-mizutani/octomend/pkg/domain/mock"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
)

func TestRouterSmokeTests(t *testing.T) {
	t.Run("GET /health returns 200", func(t *testing.T) {
		srv := server.New(&mock.TriggerMock{})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()

		srv.Mux().ServeHTTP(rec, req)

		gt.V(t, rec.Code).Equal(http.StatusOK)
		gt.V(t, rec.Body.String()).Equal("ok")
	})

	t.Run("GET /runs/latest before any run", func(t *testing.T) {
		srv := server.New(&mock.TriggerMock{
			LatestFunc: func() *model.ScheduledRun { return nil },
		})

		req := httptest.NewRequest(http.MethodGet, "/runs/latest", nil)
		rec := httptest.NewRecorder()
		srv.Mux().ServeHTTP(rec, req)

		gt.V(t, rec.Code).Equal(http.StatusNotFound)
	})

	t.Run("GET /runs/latest returns the run", func(t *testing.T) {
		run := model.NewScheduledRun(types.TriggerTimer, time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC), false)
		run.TasksAttempted = 3
		srv := server.New(&mock.TriggerMock{
			LatestFunc: func() *model.ScheduledRun { return run },
		})

		req := httptest.NewRequest(http.MethodGet, "/runs/latest", nil)
		rec := httptest.NewRecorder()
		srv.Mux().ServeHTTP(rec, req)

		gt.V(t, rec.Code).Equal(http.StatusOK)
		var got model.ScheduledRun
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		gt.V(t, got.ID).Equal(run.ID)
		gt.V(t, got.TasksAttempted).Equal(3)
		gt.True(t, got.IsCurrentlyRunning)
	})

	t.Run("POST /trigger", func(t *testing.T) {
		accept := true
		trigger := &mock.TriggerMock{
			TriggerFunc: func(ctx context.Context, source types.TriggerSource) bool {
				return accept
			},
		}
		srv := server.New(trigger)

		req := httptest.NewRequest(http.MethodPost, "/trigger", nil)
		rec := httptest.NewRecorder()
		srv.Mux().ServeHTTP(rec, req)
		gt.V(t, rec.Code).Equal(http.StatusAccepted)

		accept = false
		req = httptest.NewRequest(http.MethodPost, "/trigger", nil)
		rec = httptest.NewRecorder()
		srv.Mux().ServeHTTP(rec, req)
		gt.V(t, rec.Code).Equal(http.StatusConflict)

		gt.A(t, trigger.TriggerCalls()).Length(2)
		gt.V(t, trigger.TriggerCalls()[0].Source).Equal(types.TriggerManual)
	})
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestGitHubWebhook(t *testing.T) {
	const secret = "test-secret"

	post := func(t *testing.T, srv *server.Server, event string, body []byte, signature string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/webhook/github/app", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-GitHub-Event", event)
		req.Header.Set("X-Hub-Signature-256", signature)
		rec := httptest.NewRecorder()
		srv.Mux().ServeHTTP(rec, req)
		return rec
	}

	newTrigger := func() *mock.TriggerMock {
		return &mock.TriggerMock{
			TriggerFunc: func(ctx context.Context, source types.TriggerSource) bool {
				return true
			},
		}
	}

	t.Run("closed pull request triggers a cycle", func(t *testing.T) {
		trigger := newTrigger()
		srv := server.New(trigger, server.WithGitHubSecret(secret))

		body := []byte(`{"action":"closed","number":1,"pull_request":{"number":1}}`)
		rec := post(t, srv, "pull_request", body, sign(secret, body))

		gt.V(t, rec.Code).Equal(http.StatusAccepted)
		gt.A(t, trigger.TriggerCalls()).Length(1)
		gt.V(t, trigger.TriggerCalls()[0].Source).Equal(types.TriggerWebhook)
	})

	t.Run("branch deletion triggers a cycle", func(t *testing.T) {
		trigger := newTrigger()
		srv := server.New(trigger, server.WithGitHubSecret(secret))

		body := []byte(`{"ref":"feature-x","ref_type":"branch"}`)
		rec := post(t, srv, "delete", body, sign(secret, body))

		gt.V(t, rec.Code).Equal(http.StatusAccepted)
		gt.A(t, trigger.TriggerCalls()).Length(1)
	})

	t.Run("tag deletion is ignored", func(t *testing.T) {
		trigger := newTrigger()
		srv := server.New(trigger, server.WithGitHubSecret(secret))

		body := []byte(`{"ref":"v1.0.0","ref_type":"tag"}`)
		rec := post(t, srv, "delete", body, sign(secret, body))

		gt.V(t, rec.Code).Equal(http.StatusOK)
		gt.A(t, trigger.TriggerCalls()).Length(0)
	})

	t.Run("invalid signature is rejected", func(t *testing.T) {
		trigger := newTrigger()
		srv := server.New(trigger, server.WithGitHubSecret(secret))

		body := []byte(`{"action":"closed","number":1}`)
		rec := post(t, srv, "pull_request", body, sign("other-secret", body))

		gt.V(t, rec.Code).Equal(http.StatusBadRequest)
		gt.A(t, trigger.TriggerCalls()).Length(0)
	})

	t.Run("dropped trigger is reported", func(t *testing.T) {
		trigger := &mock.TriggerMock{
			TriggerFunc: func(ctx context.Context, source types.TriggerSource) bool {
				return false
			},
		}
		srv := server.New(trigger, server.WithGitHubSecret(secret))

		body := []byte(`{"action":"opened","number":2}`)
		rec := post(t, srv, "pull_request", body, sign(secret, body))

		gt.V(t, rec.Code).Equal(http.StatusOK)
		gt.S(t, rec.Body.String()).Contains("dropped")
	})
}
