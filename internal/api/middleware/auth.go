package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cloo-solutions/coverdraft/internal/api"
)

// BearerToken requires "Authorization: Bearer <token>" matching one of
// tokens. Several tokens let an old one keep working while clients move to
// its replacement. Empty entries are ignored and no tokens at all disables
// the check.
func BearerToken(tokens ...string) func(http.Handler) http.Handler {
	accepted := make([][]byte, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			accepted = append(accepted, []byte(t))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(accepted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, "missing or malformed authorization header")
				return
			}

			// Every candidate is compared so timing does not reveal which one matched.
			match := 0
			for _, t := range accepted {
				match |= subtle.ConstantTimeCompare(presented, t)
			}
			if match != 1 {
				unauthorized(w, "invalid api token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearer(header string) ([]byte, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return nil, false
	}
	token = strings.TrimSpace(token)
	return []byte(token), token != ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="coverdraft"`)
	api.Error(w, http.StatusUnauthorized, message)
}
