package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
)

// LoggingConfig tunes the request logging middleware.
type LoggingConfig struct {
	// SkipPaths are high-frequency paths left out of the log (probes,
	// metric scrapes).
	SkipPaths []string

	// SlowThreshold promotes a request to Warn when it takes longer.
	SlowThreshold time.Duration
}

// DefaultLoggingConfig skips the operational endpoints and flags requests
// slower than three seconds.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:     []string{"/health", "/metrics"},
		SlowThreshold: 3 * time.Second,
	}
}

// statusWriter captures the status code and byte count of a response.
type statusWriter struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("response writer does not support hijacking")
}

// RequestLogging logs one line per served request: method, path, status,
// duration, bytes, request id. 5xx responses log at Error, 4xx and slow
// requests at Warn, the rest at Info.
func RequestLogging(log logging.Logger, cfg LoggingConfig) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)
			elapsed := time.Since(start)

			fields := []logging.Field{
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", sw.status),
				logging.Duration("duration", elapsed),
				logging.Int64("bytes", sw.bytes),
				logging.String("request_id", GetRequestID(r.Context())),
			}

			switch {
			case sw.status >= 500:
				log.Error("request failed", fields...)
			case sw.status >= 400:
				log.Warn("request rejected", fields...)
			case cfg.SlowThreshold > 0 && elapsed > cfg.SlowThreshold:
				log.Warn("slow request", fields...)
			default:
				log.Info("request served", fields...)
			}
		})
	}
}
