// Package payment drives a mobile money payment attempt from form input
// through provider initiation and bounded status polling to a terminal
// outcome.
package payment

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/iai-protocole/registration/momo"
	"github.com/iai-protocole/registration/pawapay"
)

// Gateway is the slice of the provider client the workflow needs.
type Gateway interface {
	InitiateDeposit(ctx context.Context, depositReq pawapay.DepositRequest) (pawapay.DepositResponse, error)
	GetDeposit(ctx context.Context, depositID string) (pawapay.DepositResponse, error)
}

// Notification is a user-visible message emitted on every transition,
// the server-side equivalent of the registration site's toasts.
type Notification struct {
	Title   string
	Message string
	Failure bool
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Callbacks fire on the terminal transitions. OnSuccess runs exactly
// once per session; OnError receives the user-facing failure message.
// Either may be nil.
type Callbacks struct {
	OnSuccess func()
	OnError   func(message string)
}

type Config struct {
	// Currency for every deposit. XAF, whole units.
	Currency string
	// StatementDescription is the fixed memo on the payer's statement.
	StatementDescription string
	// InitialDelay is the wait before the first status check.
	InitialDelay time.Duration
	// PollInterval is the wait between status checks.
	PollInterval time.Duration
	// MaxAttempts bounds the number of status checks. With the default
	// delays this is a five minute ceiling.
	MaxAttempts int
}

func DefaultConfig() Config {
	return Config{
		Currency:             "XAF",
		StatementDescription: "IAI PROTOCOLE Registration",
		InitialDelay:         5 * time.Second,
		PollInterval:         10 * time.Second,
		MaxAttempts:          30,
	}
}

const (
	declinedMessage      = "Payment was declined or failed"
	timeoutMessage       = "Payment timeout - please contact support"
	verifyFailedMessage  = "Unable to verify payment status"
	interruptedMessage   = "Payment verification was interrupted"
	genericFailedMessage = "Payment failed"
)

type Workflow struct {
	gateway  Gateway
	clock    Clock
	notifier Notifier
	logger   *slog.Logger
	cfg      Config
}

func NewWorkflow(gateway Gateway, clock Clock, notifier Notifier, logger *slog.Logger, cfg Config) *Workflow {
	return &Workflow{
		gateway:  gateway,
		clock:    clock,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
}

// Submit validates the staged session, initiates the deposit and, on
// acceptance, starts status polling in the background. It returns once
// the deposit is initiated; the callbacks report the terminal outcome.
//
// Guard failures leave the session idle so the payer can correct the
// form and resubmit. Initiation failures are terminal for the session.
func (w *Workflow) Submit(ctx context.Context, s *Session, callbacks Callbacks) error {
	if s.Status() != STATUS_IDLE {
		return NewAlreadySubmittedError()
	}

	if strings.TrimSpace(s.PhoneNumber()) == "" {
		return NewMissingPhoneNumberError()
	}
	if s.Operator() == "" {
		return NewNoOperatorSelectedError()
	}
	if s.Amount() == nil || s.Amount().Amount() <= 0 {
		return NewInvalidAmountError("Payment amount must be positive")
	}

	depositReq := pawapay.DepositRequest{
		Amount:        strconv.FormatInt(s.Amount().Amount(), 10),
		Currency:      w.cfg.Currency,
		Correspondent: string(s.Operator()),
		Payer: pawapay.Payer{
			Type:    pawapay.PayerTypeMSISDN,
			Address: pawapay.PayerAddress{Value: momo.FormatPhoneNumber(s.PhoneNumber())},
		},
		CustomerTimestamp:    time.Now().UTC().Format(time.RFC3339),
		StatementDescription: w.cfg.StatementDescription,
	}

	resp, err := w.gateway.InitiateDeposit(ctx, depositReq)
	if err != nil {
		message := genericFailedMessage
		var pawaErr *pawapay.Error
		if errors.As(err, &pawaErr) && pawaErr.Message != "" {
			message = pawaErr.Message
		}

		s.markFailed(message)
		close(s.done)
		w.notify(ctx, Notification{Title: "Payment Failed", Message: message, Failure: true})
		if callbacks.OnError != nil {
			callbacks.OnError(message)
		}

		return NewInitiationFailedError(message, err)
	}

	s.markPending(resp.DepositID)
	w.notify(ctx, Notification{
		Title:   "Payment Initiated",
		Message: "Please check your phone and confirm the payment",
	})

	go w.poll(ctx, s, callbacks)

	return nil
}

// poll runs the bounded status check loop: one check after the initial
// delay, then one per interval, stopping on a terminal provider status
// or after MaxAttempts checks. A failed check spends an attempt exactly
// like a non-terminal status.
func (w *Workflow) poll(ctx context.Context, s *Session, callbacks Callbacks) {
	defer close(s.done)

	wait := w.cfg.InitialDelay

	for {
		select {
		case <-ctx.Done():
			s.markFailed(interruptedMessage)
			w.notify(ctx, Notification{Title: "Payment Failed", Message: interruptedMessage, Failure: true})
			if callbacks.OnError != nil {
				callbacks.OnError(interruptedMessage)
			}
			return
		case <-w.clock.After(wait):
		}

		resp, err := w.gateway.GetDeposit(ctx, s.DepositID())
		if err == nil {
			switch resp.Status {
			case pawapay.DEPOSIT_COMPLETED:
				s.markSuccess()
				w.notify(ctx, Notification{
					Title:   "Payment Successful",
					Message: "Your registration has been completed!",
				})
				if callbacks.OnSuccess != nil {
					callbacks.OnSuccess()
				}
				return
			case pawapay.DEPOSIT_FAILED, pawapay.DEPOSIT_REJECTED:
				s.markFailed(declinedMessage)
				w.notify(ctx, Notification{Title: "Payment Failed", Message: declinedMessage, Failure: true})
				if callbacks.OnError != nil {
					callbacks.OnError(declinedMessage)
				}
				return
			}
		} else {
			w.logger.Warn("payment status check failed",
				slog.String("depositId", s.DepositID()),
				slog.String("error", err.Error()),
			)
		}

		attempts := s.recordAttempt()
		if attempts >= w.cfg.MaxAttempts {
			message := timeoutMessage
			if err != nil {
				message = verifyFailedMessage
			}

			s.markFailed(message)
			w.notify(ctx, Notification{Title: "Payment Timeout", Message: message, Failure: true})
			if callbacks.OnError != nil {
				callbacks.OnError(message)
			}
			return
		}

		wait = w.cfg.PollInterval
	}
}

func (w *Workflow) notify(ctx context.Context, n Notification) {
	if w.notifier != nil {
		w.notifier.Notify(ctx, n)
	}
}
