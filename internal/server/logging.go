package server

import (
	"log/slog"
	"net/http"
	"time"
)

// responseMeta captures the status and body size a handler wrote.
type responseMeta struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (m *responseMeta) WriteHeader(code int) {
	m.status = code
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeta) Write(b []byte) (int, error) {
	n, err := m.ResponseWriter.Write(b)
	m.bytes += n
	return n, err
}

func (m *responseMeta) Unwrap() http.ResponseWriter {
	return m.ResponseWriter
}

// slogMiddleware logs one line per request, escalating to error level for
// 5xx responses. Health probes are not logged.
func slogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			next.ServeHTTP(w, r)
			return
		}

		meta := &responseMeta{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(meta, r)

		level := slog.LevelInfo
		if meta.status >= 500 {
			level = slog.LevelError
		}
		slog.Default().Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", meta.status,
			"bytes", meta.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}
