package restapi

import (
	"log/slog"
	"net/http"
	"time"

	"ledmap.transitboard.org/internal/logging"
)

// statusRecorder keeps the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// Flush lets pprof trace and profile stream through the recorder.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// NewRequestLoggingMiddleware logs one http_request line per request, keyed by
// the same client address the rate limiter uses. Healthy /healthz checks log
// at debug.
func NewRequestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "http_server"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			client := clientAddress(r)

			reqLogger := logger.With(slog.String("client", client))
			r = r.WithContext(logging.WithLogger(r.Context(), reqLogger))

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			elapsed := float64(time.Since(start).Microseconds()) / 1000
			attrs := []slog.Attr{
				slog.String("client", client),
				slog.Int("bytes", rec.bytes),
				slog.String("user_agent", r.Header.Get("User-Agent")),
			}
			if r.URL.Path == "/healthz" && rec.status == http.StatusOK {
				if !logger.Enabled(r.Context(), slog.LevelDebug) {
					return
				}
				logger.LogAttrs(r.Context(), slog.LevelDebug, "http_request", append([]slog.Attr{
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", rec.status),
					slog.Float64("duration_ms", elapsed),
				}, attrs...)...)
				return
			}
			logging.LogHTTPRequest(logger, r.Method, r.URL.Path, rec.status, elapsed, attrs...)
		})
	}
}
