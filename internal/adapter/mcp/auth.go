package mcp

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware guards the MCP transport with a shared key, accepted as a
// Bearer token or an X-API-Key header. An empty configured key disables
// auth; the transport then binds for local agent hosts only.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	expected := []byte(apiKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.Header.Get("X-API-Key")
		}
		if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			http.Error(w, "invalid or missing credentials", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
