package payment

import (
	"sync"

	"github.com/Rhymond/go-money"
	"github.com/iai-protocole/registration/momo"
)

type Status string

const (
	STATUS_IDLE    Status = "IDLE"
	STATUS_PENDING Status = "PENDING"
	STATUS_SUCCESS Status = "SUCCESS"
	STATUS_FAILED  Status = "FAILED"
)

// Terminal reports whether the session will never change status again.
// A fresh payment attempt needs a fresh session.
func (s Status) Terminal() bool {
	return s == STATUS_SUCCESS || s == STATUS_FAILED
}

// Session is one payment attempt. It is never persisted; it lives from
// the moment the payer opens the payment step until a terminal status.
// The polling goroutine and HTTP readers share it, so all state is
// behind the mutex.
type Session struct {
	mu sync.Mutex

	amount      *money.Money
	phoneNumber string
	operator    momo.OperatorID

	depositID      string
	status         Status
	attempts       int
	failureMessage string

	done chan struct{}
}

// NewSession stages a payment attempt in the idle state. amount is in
// whole currency units (XAF has no minor unit).
func NewSession(amount *money.Money, phoneNumber string, operator momo.OperatorID) *Session {
	return &Session{
		amount:      amount,
		phoneNumber: phoneNumber,
		operator:    operator,
		status:      STATUS_IDLE,
		done:        make(chan struct{}),
	}
}

// Done is closed once the session reaches a terminal status.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) DepositID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depositID
}

func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// FailureMessage is the user-facing message for a failed session, empty
// otherwise.
func (s *Session) FailureMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failureMessage
}

func (s *Session) Amount() *money.Money {
	return s.amount
}

func (s *Session) PhoneNumber() string {
	return s.phoneNumber
}

func (s *Session) Operator() momo.OperatorID {
	return s.operator
}

func (s *Session) markPending(depositID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depositID = depositID
	s.status = STATUS_PENDING
}

func (s *Session) markSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = STATUS_SUCCESS
}

func (s *Session) markFailed(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = STATUS_FAILED
	s.failureMessage = message
}

func (s *Session) recordAttempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	return s.attempts
}
