// Package requesttime pins a single "now" for the whole request so audit
// entries and domain timestamps written by one request agree.
package requesttime

import (
	"net/http"
	"time"

	"vigil/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
