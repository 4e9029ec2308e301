// Package middleware provides the HTTP middleware chain of the search
// service: request IDs, Prometheus metrics and request timeouts.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/metrics"
)

const maxPathSegments = 4

// Metrics returns middleware that records request count, latency and the
// in-flight gauge. Paths are normalised so label cardinality stays bounded.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			path := normalizePath(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

// normalizePath replaces identifier-like segments with ":id" and truncates
// deep paths, e.g. /api/v1/docs/8c1f.../fields becomes /api/v1/docs/:id.
func normalizePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 1 && segments[0] == "" {
		return "/"
	}
	truncated := len(segments) > maxPathSegments
	if truncated {
		segments = segments[:maxPathSegments]
	}
	for i, seg := range segments {
		if isIdentifier(seg) {
			segments[i] = ":id"
		}
	}
	out := "/" + strings.Join(segments, "/")
	if truncated {
		out += "/..."
	}
	return out
}

// isIdentifier reports whether seg looks like a numeric id, a UUID or a long
// hex token rather than a route name.
func isIdentifier(seg string) bool {
	if seg == "" {
		return false
	}
	digits, hex := 0, 0
	for _, r := range seg {
		switch {
		case unicode.IsDigit(r):
			digits++
			hex++
		case strings.ContainsRune("abcdefABCDEF", r):
			hex++
		case r == '-':
		default:
			return false
		}
	}
	if digits == len(seg) {
		return true
	}
	return digits > 0 && hex >= 8
}
