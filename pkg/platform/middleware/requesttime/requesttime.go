// Package requesttime pins one "now" per HTTP request so every timestamp the
// request produces (subscription time, audit time) agrees.
package requesttime

import (
	"net/http"
	"time"

	"newsletter/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// stores it in the context; read it with requestcontext.Now.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
