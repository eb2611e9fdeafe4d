package api

import (
	"context"
	"encoding/json"
	"net/http"
)

type ErrorCode string

const (
	InternalError        ErrorCode = "InternalError"
	EmptyBody            ErrorCode = "EmptyBody"
	InvalidBody          ErrorCode = "InvalidBody"
	InputValidationError ErrorCode = "InputValidationError"
	AlreadyExists        ErrorCode = "AlreadyExists"
	NotFound             ErrorCode = "NotFound"
	AuthError            ErrorCode = "AuthError"
	GatewayError         ErrorCode = "GatewayError"
	LimitOutOfBounds     ErrorCode = "LimitOutOfBounds"
	InvalidCursor        ErrorCode = "InvalidCursor"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// Field names the form field a validation error is about, when
	// there is one.
	Field string `json:"field,omitempty"`
}

func (a *API) writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, body any) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		a.getLoggerOrBaseLogger(ctx).Error("failed to marshal response body", "error", err)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":"InternalError","message":"internal error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(jsonBody)
}

func (a *API) writeError(ctx context.Context, w http.ResponseWriter, statusCode int, e Error) {
	a.writeJSON(ctx, w, statusCode, e)
}
