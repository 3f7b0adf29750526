package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds each chat request, upstream model call included.
// It only cancels the request context; a sync chat call then fails with a
// provider error and an open stream ends with a single error frame reading
// "context deadline exceeded". Unset in config means no deadline.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
