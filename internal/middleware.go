package internal

import (
	"net/http"
	"time"

	"equipment-inventory-console/internal/backend"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestID reuses an incoming X-Request-ID or assigns a new one, echoes it
// in the response and stores it for forwarding to the backend
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(backend.RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = backend.NewRequestID()
		}
		w.Header().Set(backend.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(backend.WithRequestID(r.Context(), id)))
	})
}

// RequestLogger logs one line per request after it completes
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", backend.RequestIDFromContext(r.Context())),
			}
			switch {
			case status >= 500:
				logger.Error("request", fields...)
			case status >= 400:
				logger.Info("request", fields...)
			default:
				logger.Debug("request", fields...)
			}
		})
	}
}
