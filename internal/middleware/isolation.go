package middleware

import (
	"net/http"

	"github.com/conneroisu/docsite/internal/config"
)

// Isolation sets the process-isolation headers on every response before the
// rest of the pipeline runs. The embedded playground runtime needs the page
// to live in its own browsing context group.
func Isolation(headers ...config.Header) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, h := range headers {
				w.Header().Set(h.Name, h.Value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
