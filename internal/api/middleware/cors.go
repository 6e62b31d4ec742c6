package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
	"github.com/phrazzld/tasksync-api/internal/api/shared"
)

// CORS returns go-chi/cors configured for allowedOrigins, a comma-separated
// list where "*" allows any origin. Every OPTIONS request is answered with
// 204 after the preflight headers are written, so preflights for any path
// never reach the router.
func CORS(allowedOrigins string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   splitOrigins(allowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", shared.TraceIDHeader},
		ExposedHeaders:   []string{shared.TraceIDHeader, "Retry-After", "X-RateLimit-Limit"},
		AllowCredentials: false,
		MaxAge:           300,
		// Preflights fall through to the 204 responder below
		OptionsPassthrough: true,
	})

	return func(next http.Handler) http.Handler {
		return c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func splitOrigins(list string) []string {
	origins := make([]string, 0, 1)
	for _, origin := range strings.Split(list, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
