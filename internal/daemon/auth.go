package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// bearerAuthMiddleware validates bearer tokens. An empty token disables
// authentication. The management page itself may pass the token as
// ?token= so a pinned tab can open it; the page forwards it as a header on
// every API call.
func bearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if r.Method == http.MethodGet && r.URL.Path == "/" && tokenMatches(r.URL.Query().Get("token"), token) {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !tokenMatches(strings.TrimPrefix(auth, bearerPrefix), token) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tokenMatches(got, want string) bool {
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
