package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
	"github.com/pratik-mahalle/panelbot/internal/pkg/utils"
)

// ContextKey is a custom type for context keys
type ContextKey string

// APIKeyHeader carries the daemon API key
const APIKeyHeader = "X-API-Key"

// APIKey returns a middleware that requires the configured key in the
// X-API-Key header. An empty key disables the check.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if got == "" {
				utils.WriteError(w, errors.Unauthorized("Missing API key"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				utils.WriteError(w, errors.Unauthorized("Invalid API key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
