// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/erpload/internal/logging"
)

// Logger logs one line per request with timing and status. The logger comes
// from logging.FromContext, so request_id is always present and session_id
// is added once the session middleware has resolved it.
//
// Log fields:
//   - method, path: the request line
//   - status: response status code
//   - duration_ms: processing time
//   - ip: client address after TrustedRealIP
//   - bytes: response body size
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		// Session middleware further down attaches the session ID to the
		// request context; carry it back so this line includes it.
		holder := &sessionHolder{}
		r = r.WithContext(withSessionHolder(r.Context(), holder))

		next.ServeHTTP(ww, r)

		ctx := r.Context()
		if holder.id != "" {
			ctx = logging.WithSessionID(ctx, holder.id)
		}

		level := logging.FromContext(ctx).Info
		if ww.status >= http.StatusInternalServerError {
			level = logging.FromContext(ctx).Error
		}
		level("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", ClientIP(r),
			"bytes", ww.bytes,
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap provides access to the underlying ResponseWriter for
// http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
