package payment

import "fmt"

type ErrorReason string

const (
	REASON_MISSING_PHONE_NUMBER ErrorReason = "MISSING_PHONE_NUMBER"
	REASON_NO_OPERATOR_SELECTED ErrorReason = "NO_OPERATOR_SELECTED"
	REASON_INVALID_AMOUNT       ErrorReason = "INVALID_AMOUNT"
	REASON_ALREADY_SUBMITTED    ErrorReason = "ALREADY_SUBMITTED"
	REASON_INITIATION_FAILED    ErrorReason = "INITIATION_FAILED"
)

type Error struct {
	Reason  ErrorReason
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s. Cause: %s", e.Reason, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newPaymentError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewMissingPhoneNumberError() *Error {
	return newPaymentError(REASON_MISSING_PHONE_NUMBER, "Please enter your phone number", nil)
}

func NewNoOperatorSelectedError() *Error {
	return newPaymentError(REASON_NO_OPERATOR_SELECTED, "Please select your mobile money operator", nil)
}

func NewInvalidAmountError(message string) *Error {
	return newPaymentError(REASON_INVALID_AMOUNT, message, nil)
}

func NewAlreadySubmittedError() *Error {
	return newPaymentError(REASON_ALREADY_SUBMITTED, "Payment attempt was already submitted", nil)
}

func NewInitiationFailedError(message string, cause error) *Error {
	return newPaymentError(REASON_INITIATION_FAILED, message, cause)
}
