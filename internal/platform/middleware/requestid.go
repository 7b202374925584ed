package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"dealdesk/pkg/requestcontext"
)

// RequestID attaches a request ID to the context: the inbound
// X-Request-ID header when present, a fresh UUID otherwise. The ID is
// echoed on the response so callers can correlate logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
