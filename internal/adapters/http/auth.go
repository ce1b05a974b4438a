package httpadapter

import (
	"net/http"
	"strings"
)

// apiKeyMiddleware guards the API surface when a key is configured. The
// key travels either as a bearer token or in X-Api-Key.
func apiKeyMiddleware(next http.Handler, key string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !guardedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !isAuthorizedRequest(r, key) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAuthorizedRequest(r *http.Request, expectedKey string) bool {
	if expectedKey == "" {
		return false
	}
	if candidate := strings.TrimSpace(r.Header.Get("X-Api-Key")); candidate != "" {
		return candidate == expectedKey
	}
	return isAuthorizedBearerHeader(r.Header.Get("Authorization"), expectedKey)
}

func isAuthorizedBearerHeader(headerValue, expectedToken string) bool {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" || expectedToken == "" {
		return false
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
	return token == expectedToken
}
