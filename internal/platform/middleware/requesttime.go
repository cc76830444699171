package middleware

import (
	"net/http"
	"time"

	"consentry/pkg/requestcontext"
)

// RequestTime captures the current time at the start of the request so every
// write within one request observes the same timestamp.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
