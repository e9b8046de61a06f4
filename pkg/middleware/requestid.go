package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/petadopt/adoption-analytics/pkg/logger"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const maxInboundRequestID = 128

// RequestID assigns every request an id, reusing a sane inbound
// X-Request-ID, echoes it on the response and stores it in the context for
// logger.FromContext.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxInboundRequestID {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the id RequestID stored on r, or "".
func GetRequestID(r *http.Request) string {
	return logger.RequestID(r.Context())
}
