package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

const (
	ctxRequestIdKey = "REQUEST_ID"
	ctxLoggerKey    = "LOGGER"
)

func ctxWithRequestId(ctx context.Context, requestId uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxRequestIdKey, requestId)
}

func ctxWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey, logger)
}

// getLoggerOrBaseLogger returns the request-scoped logger when the
// middleware has installed one, the API's base logger otherwise.
func (a *API) getLoggerOrBaseLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxLoggerKey).(*slog.Logger); ok {
		return logger
	}
	return a.logger
}
