// Package server is the server side of the reflinks request header: it
// tells handlers whether a request comes from a visit, and ships a small
// chi site server that renders pages from a directory for headless sessions
// and tests.
//
//	r := chi.NewRouter()
//	r.Use(server.Detect)
//	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
//		if server.IsVisit(r.Context()) {
//			// send the page, the client swaps its root
//		}
//	})
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/hazyhaar/reflinks/request"
)

type contextKey string

const (
	visitKey  contextKey = "reflinks_visit"
	loggerKey contextKey = "reflinks_logger"
)

// Detect marks requests carrying "X-Reflinks: true" and adds
// "Vary: X-Reflinks" so caches keep visit and full-load responses apart.
func Detect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", request.HeaderReflinks)
		if strings.EqualFold(r.Header.Get(request.HeaderReflinks), "true") {
			r = r.WithContext(context.WithValue(r.Context(), visitKey, true))
		}
		next.ServeHTTP(w, r)
	})
}

// IsVisit reports whether Detect saw the reflinks header on the request.
func IsVisit(ctx context.Context) bool {
	v, _ := ctx.Value(visitKey).(bool)
	return v
}
