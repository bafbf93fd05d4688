package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/nkiryanov/userauth/internal/handlers/render"
)

// Render 500 instead of dropping connection when handler panics
func RecoverMiddleware(l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				l.Error("panic while handling request",
					"panic", rec,
					"method", r.Method,
					"uri", r.RequestURI,
					"stack", string(debug.Stack()),
				)
				render.InternalError(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
