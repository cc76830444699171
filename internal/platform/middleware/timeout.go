package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds request handling. Services observing ctx.Done() abort their
// storage calls when the budget runs out.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
