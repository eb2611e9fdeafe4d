package pawapay

import "fmt"

type ErrorReason string

const (
	REASON_REQUEST_FAILED     ErrorReason = "REQUEST_FAILED"
	REASON_PROVIDER_REJECTED  ErrorReason = "PROVIDER_REJECTED"
	REASON_MALFORMED_RESPONSE ErrorReason = "MALFORMED_RESPONSE"
)

// Error is returned for every failed gateway call. For
// REASON_PROVIDER_REJECTED the message is the provider's own when the
// response body carried one, and HTTPStatus holds the response code.
type Error struct {
	Reason     ErrorReason
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s. Cause: %s", e.Reason, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newPawaPayError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewRequestFailedError(message string, cause error) *Error {
	return newPawaPayError(REASON_REQUEST_FAILED, message, cause)
}

func NewProviderRejectedError(message string, httpStatus int) *Error {
	e := newPawaPayError(REASON_PROVIDER_REJECTED, message, nil)
	e.HTTPStatus = httpStatus
	return e
}

func NewMalformedResponseError(message string, cause error) *Error {
	return newPawaPayError(REASON_MALFORMED_RESPONSE, message, cause)
}
