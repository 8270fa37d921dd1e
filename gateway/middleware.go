package gateway

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"architex/observability"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware records per-route request counts and latency using the
// chi route pattern so path parameters do not explode the label space.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		route := "unmatched"
		if ctx := chi.RouteContext(r.Context()); ctx != nil {
			if pattern := ctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		observability.Gateway().Observe(route, r.Method, recorder.status, time.Since(start))
	})
}

// authMiddleware enforces HMAC request signatures when the authenticator has
// keys configured. The body is re-buffered so handlers can decode it again.
func authMiddleware(auth *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyForSignature+1))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unable to read request body"})
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			if _, err := auth.Authenticate(r, body); err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
