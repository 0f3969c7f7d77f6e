package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/cheers/cheers-api/internal/pkg/logger"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 64

	requestInfoKey contextKey = "request_info"
)

// requestInfo is filled in as the request moves inward, so the access log
// running outermost can report the authenticated account.
type requestInfo struct {
	accountID string
}

// RequestID accepts a caller-supplied X-Request-ID or mints one, and attaches
// a request-scoped logger to the context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, requestID)

		ctx := logger.WithRequestID(r.Context(), requestID)
		ctx = context.WithValue(ctx, requestInfoKey, &requestInfo{})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func infoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey).(*requestInfo)
	return info
}
