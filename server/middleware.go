package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/reflinks/idgen"
)

// RequestLogger gives each request an id (X-Request-ID response header) and
// a per-request logger, and logs one line when the handler returns.
func RequestLogger(base *slog.Logger, newID idgen.Generator) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	if newID == nil {
		newID = idgen.Prefixed("req_", idgen.Default)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := newID()
			w.Header().Set("X-Request-ID", id)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"visit", IsVisit(r.Context()),
			)
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), loggerKey, logger)))
			logger.Info("request", "status", sw.status, "duration", time.Since(start))
		})
	}
}

// Logger returns the per-request logger, or slog.Default().
func Logger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// HeadToGet lets GET routes answer HEAD; net/http drops the body.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders sets the headers a static page site needs.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}
