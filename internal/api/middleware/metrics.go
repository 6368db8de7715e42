package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/metrics"
)

// Metrics returns middleware that records Prometheus metrics. The chi wrapper
// preserves http.Hijacker on the response writer, which the /ws upgrade needs.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		status := ww.Status()
		if status == 0 {
			// Hijacked connections never call WriteHeader.
			status = http.StatusOK
		}

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, path, strconv.Itoa(status),
		).Inc()

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method, path,
		).Observe(duration)
	})
}

// normalizePath normalizes paths to avoid high cardinality in metrics.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/chats/") && len(path) > len("/chats/") {
		rest := path[len("/chats/"):]
		if rest == "create-or-get" {
			return path
		}
		if strings.HasSuffix(rest, "/messages") {
			return "/chats/:id/messages"
		}
		return "/chats/:id"
	}
	if strings.HasPrefix(path, "/presence/") && len(path) > len("/presence/") {
		return "/presence/:id"
	}
	return path
}
