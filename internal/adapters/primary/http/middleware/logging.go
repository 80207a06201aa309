package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lorrc/field-metrics/internal/infrastructure/logging"
)

// wrap records status and size; WrapResponseWriter keeps Flusher and friends.
func wrap(w http.ResponseWriter, r *http.Request) chimw.WrapResponseWriter {
	if ww, ok := w.(chimw.WrapResponseWriter); ok {
		return ww
	}
	return chimw.NewWrapResponseWriter(w, r.ProtoMajor)
}

// statusOf treats a handler that never wrote as an implicit 200.
func statusOf(ww chimw.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

// RequestLogger returns a middleware that logs HTTP requests. request_id
// and user_id are stamped by the context-aware handler.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := wrap(w, r)

			next.ServeHTTP(ww, r)

			logging.LogRequest(r.Context(), logger, logging.RequestEntry{
				Method:       r.Method,
				Path:         r.URL.Path,
				Status:       statusOf(ww),
				Duration:     time.Since(start),
				BytesWritten: int64(ww.BytesWritten()),
				ClientIP:     getClientIP(r),
				UserAgent:    r.UserAgent(),
			})
		})
	}
}

// RecoveryLogger recovers from handler panics, logs them with the stack and
// answers 500 unless the response was already started.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func RecoveryLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := wrap(w, r)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logging.LogPanic(logging.LoggerFromContext(r.Context(), logger).With(
					"method", r.Method,
					"path", r.URL.Path,
				), rec)

				if ww.Status() != 0 {
					return
				}
				ww.Header().Set("Content-Type", "application/json")
				ww.WriteHeader(http.StatusInternalServerError)
				_, _ = ww.Write([]byte(`{"error":"Internal server error","code":"INTERNAL_ERROR"}`))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
