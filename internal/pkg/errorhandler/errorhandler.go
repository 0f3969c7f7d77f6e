package errorhandler

import (
	"context"
	"net/http"

	"github.com/cheers/cheers-api/internal/pkg/logger"
	"github.com/cheers/cheers-api/internal/pkg/metrics"
	"github.com/cheers/cheers-api/internal/pkg/response"
)

// HandleError logs err with the request's logger and sends the error
// envelope. err itself never reaches the client.
func HandleError(ctx context.Context, w http.ResponseWriter, status int, code, message string, err error) {
	l := logger.FromContext(ctx)
	event := l.Warn()
	if status >= http.StatusInternalServerError {
		event = l.Error()
	}

	event.
		Err(err).
		Str("error_code", code).
		Int("status_code", status).
		Msg(message)

	response.Error(w, status, code, message)
}

// HandleInternal logs err and answers with the generic 500 envelope.
func HandleInternal(ctx context.Context, w http.ResponseWriter, err error) {
	HandleError(ctx, w, http.StatusInternalServerError, response.CodeInternal, "An unexpected error occurred", err)
}

// HandlePanic logs a recovered panic with its stack and answers 500. The stack
// stays in the logs.
func HandlePanic(ctx context.Context, w http.ResponseWriter, recovered interface{}, stack []byte) {
	metrics.Panics.Inc()
	logger.FromContext(ctx).Error().
		Interface("panic", recovered).
		Bytes("stack", stack).
		Msg("Recovered from panic")

	response.InternalError(w)
}
