package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// CORSHandler allows the configured browser origins. A wildcard entry opens
// the API to any origin but then drops credentials, since browsers refuse
// credentialed wildcard responses.
func CORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	wildcard := len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*")

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	})
}
