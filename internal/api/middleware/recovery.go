package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/paperbase/paperbase/internal/api/response"
)

// Recovery converts handler panics into a JSON 500 so one broken request
// cannot take down the process. The panic value and stack go to the log,
// never to the client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			requestID := GetRequestID(r.Context())
			slog.Error("panic recovered",
				"error", rec,
				"requestId", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", requestID)
		}()

		next.ServeHTTP(w, r)
	})
}
