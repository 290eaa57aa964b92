// Package middleware provides HTTP middleware for metrics collection and request logging.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nadmax/fieldops/internal/metrics"
	"github.com/rs/zerolog/log"
)

const exportJobsPrefix = "/api/reports/export/jobs/"

var recordHTTPRequest = metrics.RecordHTTPRequest

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		endpoint := normalizeEndpoint(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		recordHTTPRequest(r.Method, endpoint, status, duration)

		log.Debug().
			Str("method", r.Method).
			Str("endpoint", endpoint).
			Int("status", wrapped.statusCode).
			Dur("duration", duration).
			Msg("http request")
	})
}

func normalizeEndpoint(path string) string {
	switch {
	case strings.HasPrefix(path, exportJobsPrefix) && len(path) > len(exportJobsPrefix) &&
		!strings.Contains(path[len(exportJobsPrefix):], "/"):
		return "/api/reports/export/jobs/:id"
	default:
		return path
	}
}
