package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/cheers/cheers-api/internal/pkg/errorhandler"
)

// Recover turns a handler panic into a 500.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			errorhandler.HandlePanic(r.Context(), w, rec, debug.Stack())
		}()

		next.ServeHTTP(w, r)
	})
}
