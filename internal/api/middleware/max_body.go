package middleware

import (
	"fmt"
	"mime"
	"net/http"

	"github.com/cloo-solutions/coverdraft/internal/api"
)

// BodyLimit caps request bodies. Multipart uploads get uploadLimit, every
// other body (JSON queries and inline documents) gets jsonLimit. A
// non-positive limit disables the cap for that kind of body.
func BodyLimit(uploadLimit, jsonLimit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			limit := jsonLimit
			if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "multipart/form-data" {
				limit = uploadLimit
			}
			if limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
