package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS allows the configured origin, or any origin when allowed is "*".
// Credentials are only allowed for an explicit origin.
func CORS(allowed string) func(http.Handler) http.Handler {
	allowed = strings.TrimRight(strings.TrimSpace(allowed), "/")
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowed},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: allowed != "*",
		MaxAge:           300,
	})
}
