package server

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/m-mizutani/octomend/pkg/domain/types"
	"github.com/m-mizutani/octomend/pkg/utils/logging"
)

const (
	headerRequestID       = "X-Request-ID"
	headerGitHubDelivery  = "X-GitHub-Delivery"
	headerGitHubEventName = "X-GitHub-Event"
)

// requestID reuses the GitHub delivery ID of a webhook so that a triggered
// cycle can be traced back to the delivery.
func requestID(r *http.Request) types.RequestID {
	if id := r.Header.Get(headerGitHubDelivery); id != "" {
		return types.RequestID(id)
	}
	return types.NewRequestID()
}

func preProcess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := requestID(r)
		logger := logging.Default().With(slog.String("request_id", reqID.String()))
		if event := r.Header.Get(headerGitHubEventName); event != "" {
			logger = logger.With(slog.String("github_event", event))
		}

		ctx := logging.With(r.Context(), logger)
		w.Header().Set(headerRequestID, reqID.String())

		lw := &statusCodeLogger{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		requestedAt := time.Now()
		next.ServeHTTP(lw, r.WithContext(ctx))

		logger.Info("http access",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
			slog.Int("status_code", lw.statusCode),
			slog.Int64("content_length", r.ContentLength),
			slog.String("user_agent", r.UserAgent()),
			slog.Duration("elapsed", time.Since(requestedAt)),
		)
	})
}

type statusCodeLogger struct {
	http.ResponseWriter
	statusCode int
}

func (x *statusCodeLogger) WriteHeader(code int) {
	x.statusCode = code
	x.ResponseWriter.WriteHeader(code)
}
