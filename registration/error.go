package registration

import "fmt"

type ErrorReason string

const (
	REASON_INVALID_INPUT                   ErrorReason = "INVALID_INPUT"
	REASON_DUPLICATE_EMAIL                 ErrorReason = "DUPLICATE_EMAIL"
	REASON_FAILED_TO_TRANSLATE_TO_DB_MODEL ErrorReason = "FAILED_TO_TRANSLATE_TO_DB_MODEL"
	REASON_FAILED_TO_WRITE                 ErrorReason = "FAILED_TO_WRITE"
	REASON_FAILED_TO_FETCH                 ErrorReason = "FAILED_TO_FETCH"
	REASON_REGISTRATION_DOES_NOT_EXIST     ErrorReason = "REGISTRATION_DOES_NOT_EXIST"
	REASON_INVALID_CURSOR                  ErrorReason = "INVALID_CURSOR"
)

type Error struct {
	Reason  ErrorReason
	Message string
	// Field names the first form field that failed validation; set only
	// for REASON_INVALID_INPUT.
	Field string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s. Cause: %s", e.Reason, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newRegistrationError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewInvalidInputError(field string, message string) *Error {
	e := newRegistrationError(REASON_INVALID_INPUT, message, nil)
	e.Field = field
	return e
}

func NewDuplicateEmailError(email string) *Error {
	return newRegistrationError(REASON_DUPLICATE_EMAIL, fmt.Sprintf("A registration already exists for email %q", email), nil)
}

func NewFailedToTranslateToDBModelError(message string, cause error) *Error {
	return newRegistrationError(REASON_FAILED_TO_TRANSLATE_TO_DB_MODEL, message, cause)
}

func NewFailedToWriteError(message string, cause error) *Error {
	return newRegistrationError(REASON_FAILED_TO_WRITE, message, cause)
}

func NewFailedToFetchError(message string, cause error) *Error {
	return newRegistrationError(REASON_FAILED_TO_FETCH, message, cause)
}

func NewRegistrationDoesNotExistError(message string, cause error) *Error {
	return newRegistrationError(REASON_REGISTRATION_DOES_NOT_EXIST, message, cause)
}

func NewInvalidCursorError(message string, cause error) *Error {
	return newRegistrationError(REASON_INVALID_CURSOR, message, cause)
}
