package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/davidbz/sidecar/internal/observability"
)

const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderRequestID = "X-Request-Id"
	HeaderRootID    = "X-Root-Id"
)

// Trace injects trace, span and request ids into every request and logs its
// outcome. A caller-supplied X-Request-Id or X-Root-Id is kept.
func Trace() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			started := time.Now()

			traceID := observability.GenerateTraceID()
			ctx = observability.WithTraceID(ctx, traceID)
			ctx = observability.WithSpanID(ctx, observability.GenerateSpanID())

			requestID := r.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = observability.GenerateRequestID()
			}
			ctx = observability.WithRequestID(ctx, requestID)

			if rootID := r.Header.Get(HeaderRootID); rootID != "" {
				ctx = observability.WithRootID(ctx, rootID)
			}

			w.Header().Set(HeaderTraceID, traceID)
			w.Header().Set(HeaderRequestID, requestID)

			logger := observability.FromContext(ctx)
			logger.Info("request started",
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.String("remote_addr", r.RemoteAddr),
			)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			logger.Info("request finished",
				observability.Int("status", ww.Status()),
				observability.Int("bytes", ww.BytesWritten()),
				observability.Duration("duration", time.Since(started)),
			)
		})
	}
}
