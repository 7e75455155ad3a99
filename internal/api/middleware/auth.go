// SPDX-License-Identifier: MIT

package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/davips/cdict/internal/log"
	"github.com/davips/cdict/internal/metrics"
)

// ExtractToken retrieves the API token from the request, preferring the
// Authorization header over the legacy X-API-Token header.
func ExtractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return r.Header.Get("X-API-Token")
}

// AuthorizeToken returns true if got matches expected using constant-time
// comparison. Empty tokens are always unauthorized.
func AuthorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// RequireToken enforces bearer token authentication. With an empty token
// the middleware is a no-op, matching a store that is open on the LAN.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := ExtractToken(r)
			if got == "" {
				logger := log.WithComponentFromContext(r.Context(), "auth")
				logger.Warn().
					Str("event", "auth.missing_header").
					Msg("authorization header missing")
				metrics.AuthFailures.Inc()
				unauthorized(w)
				return
			}
			if !AuthorizeToken(got, token) {
				logger := log.WithComponentFromContext(r.Context(), "auth")
				logger.Warn().
					Str("event", "auth.invalid_token").
					Msg("invalid api token")
				metrics.AuthFailures.Inc()
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
