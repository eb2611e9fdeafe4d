package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
)

type middlewareFunc func(next http.Handler) http.Handler

func useMiddlewares(r *http.ServeMux, middlewares ...middlewareFunc) http.Handler {
	var s http.Handler
	s = r

	for _, mw := range middlewares {
		s = mw(s)
	}

	return s
}

// requestIdMiddleware tags every request with an id, installs a
// request-scoped logger carrying it, and echoes it back in the
// X-Request-Id header.
func (a *API) requestIdMiddleware() middlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestId := uuid.New()

			logger := a.logger.With(slog.String("requestId", requestId.String()))

			ctx := ctxWithRequestId(r.Context(), requestId)
			ctx = ctxWithLogger(ctx, logger)

			w.Header().Set("X-Request-Id", requestId.String())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *API) loggingMiddleware() middlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			loggingRW := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(loggingRW, r)

			a.getLoggerOrBaseLogger(r.Context()).InfoContext(r.Context(),
				"Access log",
				slog.String("latency", formatDuration(time.Since(start))),
				slog.Int64("request-content-length", r.ContentLength),
				slog.Int("resp-body-size", loggingRW.responseSize),
				slog.String("host", r.Host),
				slog.String("method", r.Method),
				slog.Int("status-code", loggingRW.statusCode),
				slog.String("path", r.URL.Path),
			)
		})
	}
}

func (a *API) corsMiddleware() middlewareFunc {
	var serverCors *cors.Cors

	switch a.env {
	case LOCAL:
		serverCors = cors.AllowAll()
	case PROD:
		serverCors = cors.New(cors.Options{
			AllowedOrigins: []string{"https://iai-protocole.com", "https://www.iai-protocole.com"},
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowedHeaders: []string{"Content-Type", "X-Admin-Password"},
			MaxAge:         300,
		})
	}

	return serverCors.Handler
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	responseSize int
}

func (lrw *loggingResponseWriter) WriteHeader(statusCode int) {
	lrw.statusCode = statusCode
	lrw.ResponseWriter.WriteHeader(statusCode)
}

func (lrw *loggingResponseWriter) Write(data []byte) (int, error) {
	size, err := lrw.ResponseWriter.Write(data)
	lrw.responseSize += size
	return size, err
}

// formatDuration formats a duration to one decimal point.
func formatDuration(d time.Duration) string {
	div := time.Duration(10)
	switch {
	case d > time.Second:
		d = d.Round(time.Second / div)
	case d > time.Millisecond:
		d = d.Round(time.Millisecond / div)
	case d > time.Microsecond:
		d = d.Round(time.Microsecond / div)
	case d > time.Nanosecond:
		d = d.Round(time.Nanosecond / div)
	}
	return d.String()
}
