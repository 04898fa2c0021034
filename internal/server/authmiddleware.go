package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// OperatorAuthMiddleware requires "Authorization: Bearer <token>" on
// operator endpoints. An empty token disables the check.
func OperatorAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "missing Authorization header")
				return
			}
			presented := strings.TrimPrefix(header, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "invalid operator token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
