package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

var localOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// CORS applies the allowed-origin policy; no origins means the local dev
// servers. Credentials are never allowed alongside a wildcard origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = localOrigins
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			idempotencyHeader, "X-Request-Id", "X-Requested-With",
		},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After", "Idempotent-Replayed"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           300,
	})
}
