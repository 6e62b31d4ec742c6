package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasksync-api/internal/api/shared"
	"github.com/phrazzld/tasksync-api/internal/platform/logger"
)

// NewTraceMiddleware adds a trace ID and a request-scoped logger carrying it
// to the request context. A valid X-Trace-ID request header is adopted;
// otherwise a new ID is generated. The ID is echoed in the response header.
// Apply it early so later handlers and error responses can use the ID.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Adopt the client's trace ID if it is a valid UUID
			traceID := r.Header.Get(shared.TraceIDHeader)
			if !shared.ValidTraceID(traceID) {
				traceID = shared.NewTraceID()
			}

			// Add trace ID to the logger and the context
			log := base.With(slog.String("trace_id", traceID))
			ctx := logger.WithLogger(shared.WithTraceID(r.Context(), traceID), log)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			// Continue with the updated context
			w.Header().Set(shared.TraceIDHeader, traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
