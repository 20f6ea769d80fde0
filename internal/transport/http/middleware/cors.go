package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the browser UI on the listed origins to call the API with a
// bearer token. An empty list disables cross-origin access.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderXRequestID},
		ExposedHeaders:   []string{HeaderXRequestID, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
