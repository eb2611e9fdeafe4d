package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Rhymond/go-money"
	"github.com/iai-protocole/registration/metrics"
	"github.com/iai-protocole/registration/momo"
	"github.com/iai-protocole/registration/payment"
	"github.com/iai-protocole/registration/pawapay"
)

// sessionRegistry holds the in-flight payment sessions by deposit id so
// GET /payments/{depositId} can report progress while polling runs.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*payment.Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		sessions: map[string]*payment.Session{},
	}
}

func (r *sessionRegistry) Put(depositId string, s *payment.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[depositId] = s
}

func (r *sessionRegistry) Get(depositId string) (*payment.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[depositId]
	return s, ok
}

// slogNotifier turns workflow notifications into log lines. They are
// the server-side stand-in for the toasts a frontend would show.
type slogNotifier struct {
	logger *slog.Logger
}

func (n *slogNotifier) Notify(ctx context.Context, notification payment.Notification) {
	level := slog.LevelInfo
	if notification.Failure {
		level = slog.LevelWarn
	}

	n.logger.Log(ctx, level, notification.Message, slog.String("title", notification.Title))
}

// instrumentedGateway counts provider calls on the way through.
type instrumentedGateway struct {
	gateway payment.Gateway
	metrics *metrics.Metrics
}

func (g *instrumentedGateway) InitiateDeposit(ctx context.Context, depositReq pawapay.DepositRequest) (pawapay.DepositResponse, error) {
	g.metrics.PaymentInitiationsTotal.Inc()
	return g.gateway.InitiateDeposit(ctx, depositReq)
}

func (g *instrumentedGateway) GetDeposit(ctx context.Context, depositId string) (pawapay.DepositResponse, error) {
	g.metrics.PaymentStatusChecksTotal.Inc()
	return g.gateway.GetDeposit(ctx, depositId)
}

type paymentRequest struct {
	// Amount in whole XAF.
	Amount      int64  `json:"amount"`
	PhoneNumber string `json:"phoneNumber"`
	// Operator is optional; when empty it is detected from the phone
	// number prefix.
	Operator string `json:"operator,omitempty"`
}

type paymentResponse struct {
	DepositId      string          `json:"depositId"`
	Status         payment.Status  `json:"status"`
	Operator       momo.OperatorID `json:"operator"`
	Attempts       int             `json:"attempts"`
	FailureMessage string          `json:"failureMessage,omitempty"`
}

func (a *API) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := a.getLoggerOrBaseLogger(ctx)

	var body paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			a.writeError(ctx, w, http.StatusBadRequest, Error{
				Code:    EmptyBody,
				Message: "Must specify a body",
			})
			return
		}

		a.writeError(ctx, w, http.StatusBadRequest, Error{
			Code:    InvalidBody,
			Message: "Invalid body",
		})
		return
	}

	operator := momo.OperatorID(body.Operator)
	if operator != "" {
		if _, ok := momo.ByID(operator); !ok {
			a.writeError(ctx, w, http.StatusBadRequest, Error{
				Code:    InputValidationError,
				Message: "Unknown mobile money operator",
			})
			return
		}
	} else if body.PhoneNumber != "" {
		// Let an undetectable prefix fall through to the workflow's
		// operator guard so the payer gets the selection message.
		operator, _ = momo.DetectOperator(body.PhoneNumber)
	}

	session := payment.NewSession(money.New(body.Amount, money.XAF), body.PhoneNumber, operator)

	callbacks := payment.Callbacks{
		OnSuccess: func() {
			a.metrics.ObservePaymentOutcome("success")
		},
		OnError: func(message string) {
			a.metrics.ObservePaymentOutcome("failed")
		},
	}

	// Polling outlives the request, so detach its lifetime from the
	// request context.
	err := a.workflow.Submit(context.WithoutCancel(ctx), session, callbacks)
	if err != nil {
		var paymentErr *payment.Error

		if errors.As(err, &paymentErr) {
			switch paymentErr.Reason {
			case payment.REASON_MISSING_PHONE_NUMBER,
				payment.REASON_NO_OPERATOR_SELECTED,
				payment.REASON_INVALID_AMOUNT:
				a.writeError(ctx, w, http.StatusBadRequest, Error{
					Code:    InputValidationError,
					Message: paymentErr.Message,
				})
				return
			case payment.REASON_INITIATION_FAILED:
				logger.Error("Payment initiation failed", "error", err)

				a.writeError(ctx, w, http.StatusBadGateway, Error{
					Code:    GatewayError,
					Message: paymentErr.Message,
				})
				return
			}
		}

		logger.Error("Error trying to initiate payment", "error", err)

		a.writeError(ctx, w, http.StatusInternalServerError, Error{
			Code:    InternalError,
			Message: "Failed to initiate payment",
		})
		return
	}

	a.sessions.Put(session.DepositID(), session)

	a.writeJSON(ctx, w, http.StatusAccepted, paymentResponse{
		DepositId: session.DepositID(),
		Status:    session.Status(),
		Operator:  operator,
	})
}

func (a *API) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := a.sessions.Get(r.PathValue("depositId"))
	if !ok {
		a.writeError(ctx, w, http.StatusNotFound, Error{
			Code:    NotFound,
			Message: "No payment with this deposit id",
		})
		return
	}

	a.writeJSON(ctx, w, http.StatusOK, paymentResponse{
		DepositId:      session.DepositID(),
		Status:         session.Status(),
		Operator:       session.Operator(),
		Attempts:       session.Attempts(),
		FailureMessage: session.FailureMessage(),
	})
}
