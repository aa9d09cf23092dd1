package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/pkg/errors"
)

// Recovery converts a handler panic into a logged 500 so one broken request
// cannot take the process down. The panic value and stack go to the log, not
// to the client.
func Recovery(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					// The server uses this sentinel to abort a response;
					// re-panic so it keeps its meaning.
					panic(rec)
				}

				log.Error("handler panic",
					logging.String("method", r.Method),
					logging.String("path", r.URL.Path),
					logging.String("request_id", GetRequestID(r.Context())),
					logging.Any("panic", rec),
					logging.String("stack", string(debug.Stack())))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    errors.ErrCodeInternal.String(),
					"message": errors.DefaultMessageForCode(errors.ErrCodeInternal),
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
