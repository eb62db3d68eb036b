package server

import (
	"encoding/json"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/errutil"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

type Server struct {
	mux *chi.Mux
}

func safeWrite(w http.ResponseWriter, code int, body []byte) {
	w.WriteHeader(code)

	// nosemgrep: go.lang.security.audit.xss.no-direct-write-to-responsewriter.no-direct-write-to-responsewriter
	// Why: The response data is not from user input
	if _, err := w.Write(body); err != nil {
		logging.Default().Error("fail to write response", slog.Any("error", err))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		logging.Default().Error("fail to marshal response", slog.Any("error", err))
		safeWrite(w, http.StatusInternalServerError, []byte(`{"error":"internal"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	safeWrite(w, code, raw)
}

type config struct {
	ghSecret types.GitHubAppSecret
}

type Option func(*config)

func WithGitHubSecret(secret types.GitHubAppSecret) Option {
	return func(cfg *config) {
		cfg.ghSecret = secret
	}
}

func New(trigger interfaces.Trigger, options ...Option) *Server {
	cfg := &config{}
	for _, opt := range options {
		opt(cfg)
	}

	r := chi.NewRouter()
	r.Use(preProcess)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		safeWrite(w, http.StatusOK, []byte("ok"))
	})

	r.Get("/runs/latest", func(w http.ResponseWriter, r *http.Request) {
		run := trigger.Latest()
		if run == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run yet"})
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		if !trigger.Trigger(DetachContext(r.Context()), types.TriggerManual) {
			writeJSON(w, http.StatusConflict, map[string]string{"status": "dropped", "message": "cycle already running"})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	r.Route("/webhook", func(r chi.Router) {
		r.Route("/github", func(r chi.Router) {
			r.Post("/app", func(w http.ResponseWriter, r *http.Request) {
				event, err := validateGitHubAppEvent(r, cfg.ghSecret)
				if err != nil {
					errutil.HandleError(r.Context(), "fail to validate GitHub App event", err)
					safeWrite(w, http.StatusBadRequest, []byte(err.Error()))
					return
				}

				if !shouldTrigger(event) {
					writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "no cycle required"})
					return
				}

				// The request context is cancelled when the response is sent.
				if !trigger.Trigger(DetachContext(r.Context()), types.TriggerWebhook) {
					writeJSON(w, http.StatusOK, map[string]string{"status": "dropped", "message": "cycle already running"})
					return
				}
				writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "message": "cycle started"})
			})
		})
	})

	return &Server{
		mux: r,
	}
}

func (x *Server) Mux() *chi.Mux {
	return x.mux
}
