package payment

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/iai-protocole/registration/momo"
	"github.com/iai-protocole/registration/pawapay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noopLogger = slog.New(slog.DiscardHandler)

// immediateClock makes every scheduled delay fire at once so the poll
// loop runs without real time passing.
type immediateClock struct{}

func (immediateClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

type mockGateway struct {
	mu sync.Mutex

	InitiateDepositFunc func(ctx context.Context, depositReq pawapay.DepositRequest) (pawapay.DepositResponse, error)

	// statuses are played back one per GetDeposit call; the last entry
	// repeats once exhausted.
	statuses  []pawapay.DepositStatus
	checkErrs []error
	checks    int
}

func (m *mockGateway) InitiateDeposit(ctx context.Context, depositReq pawapay.DepositRequest) (pawapay.DepositResponse, error) {
	if m.InitiateDepositFunc != nil {
		return m.InitiateDepositFunc(ctx, depositReq)
	}
	return pawapay.DepositResponse{DepositID: "dep-1", Status: pawapay.DEPOSIT_ACCEPTED}, nil
}

func (m *mockGateway) GetDeposit(ctx context.Context, depositID string) (pawapay.DepositResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.checks
	m.checks++

	if i < len(m.checkErrs) && m.checkErrs[i] != nil {
		return pawapay.DepositResponse{}, m.checkErrs[i]
	}

	if len(m.statuses) == 0 {
		return pawapay.DepositResponse{DepositID: depositID, Status: pawapay.DEPOSIT_ACCEPTED}, nil
	}
	if i >= len(m.statuses) {
		i = len(m.statuses) - 1
	}
	return pawapay.DepositResponse{DepositID: depositID, Status: m.statuses[i]}, nil
}

func (m *mockGateway) checkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checks
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, notification Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
}

func (n *recordingNotifier) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification{}, n.notifications...)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.PollInterval = time.Millisecond
	return cfg
}

func newTestWorkflow(gateway Gateway, notifier Notifier) *Workflow {
	return NewWorkflow(gateway, immediateClock{}, notifier, noopLogger, testConfig())
}

func xaf(amount int64) *money.Money {
	return money.New(amount, "XAF")
}

func TestSubmitGuards(t *testing.T) {
	t.Run("missing phone number", func(t *testing.T) {
		gateway := &mockGateway{}
		w := newTestWorkflow(gateway, nil)
		s := NewSession(xaf(25000), "  ", momo.MTN_MOMO_CMR)

		err := w.Submit(context.Background(), s, Callbacks{})
		require.Error(t, err)

		var paymentErr *Error
		require.ErrorAs(t, err, &paymentErr)
		assert.Equal(t, REASON_MISSING_PHONE_NUMBER, paymentErr.Reason)
		assert.Equal(t, STATUS_IDLE, s.Status())
		assert.Equal(t, 0, gateway.checkCount())
	})

	t.Run("no operator selected", func(t *testing.T) {
		w := newTestWorkflow(&mockGateway{}, nil)
		s := NewSession(xaf(25000), "650123456", "")

		err := w.Submit(context.Background(), s, Callbacks{})
		require.Error(t, err)

		var paymentErr *Error
		require.ErrorAs(t, err, &paymentErr)
		assert.Equal(t, REASON_NO_OPERATOR_SELECTED, paymentErr.Reason)
		assert.Equal(t, STATUS_IDLE, s.Status())
	})

	t.Run("non-positive amount", func(t *testing.T) {
		w := newTestWorkflow(&mockGateway{}, nil)
		s := NewSession(xaf(0), "650123456", momo.MTN_MOMO_CMR)

		err := w.Submit(context.Background(), s, Callbacks{})
		require.Error(t, err)

		var paymentErr *Error
		require.ErrorAs(t, err, &paymentErr)
		assert.Equal(t, REASON_INVALID_AMOUNT, paymentErr.Reason)
	})
}

func TestSubmitInitiation(t *testing.T) {
	t.Run("formats the phone number and fixed fields into the deposit request", func(t *testing.T) {
		var gotReq pawapay.DepositRequest
		gateway := &mockGateway{
			InitiateDepositFunc: func(ctx context.Context, depositReq pawapay.DepositRequest) (pawapay.DepositResponse, error) {
				gotReq = depositReq
				return pawapay.DepositResponse{DepositID: "dep-9", Status: pawapay.DEPOSIT_ACCEPTED}, nil
			},
			statuses: []pawapay.DepositStatus{pawapay.DEPOSIT_COMPLETED},
		}
		w := newTestWorkflow(gateway, nil)
		s := NewSession(xaf(25000), "650 12 34 56", momo.MTN_MOMO_CMR)

		require.NoError(t, w.Submit(context.Background(), s, Callbacks{}))
		<-s.Done()

		assert.Equal(t, "25000", gotReq.Amount)
		assert.Equal(t, "XAF", gotReq.Currency)
		assert.Equal(t, "MTN_MOMO_CMR", gotReq.Correspondent)
		assert.Equal(t, pawapay.PayerTypeMSISDN, gotReq.Payer.Type)
		assert.Equal(t, "237650123456", gotReq.Payer.Address.Value)
		assert.Equal(t, "IAI PROTOCOLE Registration", gotReq.StatementDescription)
		assert.NotEmpty(t, gotReq.CustomerTimestamp)
		assert.Equal(t, "dep-9", s.DepositID())
	})

	t.Run("initiation failure is terminal and never schedules a check", func(t *testing.T) {
		gateway := &mockGateway{
			InitiateDepositFunc: func(ctx context.Context, depositReq pawapay.DepositRequest) (pawapay.DepositResponse, error) {
				return pawapay.DepositResponse{}, pawapay.NewProviderRejectedError("correspondent temporarily unavailable", 400)
			},
		}
		notifier := &recordingNotifier{}
		w := newTestWorkflow(gateway, notifier)
		s := NewSession(xaf(25000), "650123456", momo.MTN_MOMO_CMR)

		var gotMessage string
		err := w.Submit(context.Background(), s, Callbacks{
			OnError: func(message string) { gotMessage = message },
		})
		require.Error(t, err)

		var paymentErr *Error
		require.ErrorAs(t, err, &paymentErr)
		assert.Equal(t, REASON_INITIATION_FAILED, paymentErr.Reason)

		<-s.Done()
		assert.Equal(t, STATUS_FAILED, s.Status())
		assert.Equal(t, "correspondent temporarily unavailable", gotMessage)
		assert.Equal(t, "correspondent temporarily unavailable", s.FailureMessage())
		assert.Equal(t, 0, gateway.checkCount())

		notifications := notifier.all()
		require.Len(t, notifications, 1)
		assert.True(t, notifications[0].Failure)
	})

	t.Run("resubmitting a terminal session is rejected", func(t *testing.T) {
		gateway := &mockGateway{statuses: []pawapay.DepositStatus{pawapay.DEPOSIT_COMPLETED}}
		w := newTestWorkflow(gateway, nil)
		s := NewSession(xaf(25000), "650123456", momo.MTN_MOMO_CMR)

		require.NoError(t, w.Submit(context.Background(), s, Callbacks{}))
		<-s.Done()

		err := w.Submit(context.Background(), s, Callbacks{})
		var paymentErr *Error
		require.ErrorAs(t, err, &paymentErr)
		assert.Equal(t, REASON_ALREADY_SUBMITTED, paymentErr.Reason)
	})
}

func TestPolling(t *testing.T) {
	t.Run("pending then completed", func(t *testing.T) {
		gateway := &mockGateway{
			statuses: []pawapay.DepositStatus{
				pawapay.DEPOSIT_ACCEPTED,
				pawapay.DEPOSIT_SUBMITTED,
				pawapay.DEPOSIT_COMPLETED,
			},
		}
		notifier := &recordingNotifier{}
		w := newTestWorkflow(gateway, notifier)
		s := NewSession(xaf(25000), "650123456", momo.MTN_MOMO_CMR)

		successCalls := 0
		require.NoError(t, w.Submit(context.Background(), s, Callbacks{
			OnSuccess: func() { successCalls++ },
		}))
		<-s.Done()

		assert.Equal(t, STATUS_SUCCESS, s.Status())
		assert.Equal(t, 1, successCalls)
		assert.Equal(t, 3, gateway.checkCount())

		notifications := notifier.all()
		require.Len(t, notifications, 2)
		assert.Equal(t, "Payment Initiated", notifications[0].Title)
		assert.Equal(t, "Payment Successful", notifications[1].Title)
	})

	t.Run("rejected deposit fails with the declined message", func(t *testing.T) {
		gateway := &mockGateway{statuses: []pawapay.DepositStatus{pawapay.DEPOSIT_REJECTED}}
		w := newTestWorkflow(gateway, nil)
		s := NewSession(xaf(25000), "650123456", momo.MTN_MOMO_CMR)

		var gotMessage string
		require.NoError(t, w.Submit(context.Background(), s, Callbacks{
			OnError: func(message string) { gotMessage = message },
		}))
		<-s.Done()

		assert.Equal(t, STATUS_FAILED, s.Status())
		assert.Equal(t, "Payment was declined or failed", gotMessage)
		assert.Equal(t, 1, gateway.checkCount())
	})

	t.Run("thirty non-terminal responses time out with no 31st check", func(t *testing.T) {
		gateway := &mockGateway{statuses: []pawapay.DepositStatus{pawapay.DEPOSIT_ACCEPTED}}
		w := newTestWorkflow(gateway, nil)
		s := NewSession(xaf(25000), "650123456", momo.MTN_MOMO_CMR)

		var gotMessage string
		require.NoError(t, w.Submit(context.Background(), s, Callbacks{
			OnError: func(message string) { gotMessage = message },
		}))
		<-s.Done()

		assert.Equal(t, STATUS_FAILED, s.Status())
		assert.Equal(t, "Payment timeout - please contact support", gotMessage)
		assert.Equal(t, 30, s.Attempts())
		assert.Equal(t, 30, gateway.checkCount())
	})

	t.Run("a failed status check spends an attempt like a pending one", func(t *testing.T) {
		gateway := &mockGateway{
			checkErrs: []error{errors.New("transport blip"), nil},
			statuses: []pawapay.DepositStatus{
				pawapay.DEPOSIT_ACCEPTED, // consumed by the errored slot
				pawapay.DEPOSIT_COMPLETED,
			},
		}
		w := newTestWorkflow(gateway, nil)
		s := NewSession(xaf(25000), "650123456", momo.MTN_MOMO_CMR)

		require.NoError(t, w.Submit(context.Background(), s, Callbacks{}))
		<-s.Done()

		assert.Equal(t, STATUS_SUCCESS, s.Status())
		assert.Equal(t, 1, s.Attempts())
		assert.Equal(t, 2, gateway.checkCount())
	})

	t.Run("exhausting the budget on check errors reports the verify message", func(t *testing.T) {
		checkErrs := make([]error, 30)
		for i := range checkErrs {
			checkErrs[i] = errors.New("transport down")
		}
		gateway := &mockGateway{checkErrs: checkErrs}
		w := newTestWorkflow(gateway, nil)
		s := NewSession(xaf(25000), "650123456", momo.MTN_MOMO_CMR)

		var gotMessage string
		require.NoError(t, w.Submit(context.Background(), s, Callbacks{
			OnError: func(message string) { gotMessage = message },
		}))
		<-s.Done()

		assert.Equal(t, STATUS_FAILED, s.Status())
		assert.Equal(t, "Unable to verify payment status", gotMessage)
		assert.Equal(t, 30, gateway.checkCount())
	})

	t.Run("context cancellation interrupts polling", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// A cancelled context wins the select over the fired timer only
		// sometimes, so use a clock that never fires.
		gateway := &mockGateway{}
		w := NewWorkflow(gateway, neverClock{}, nil, noopLogger, testConfig())
		s := NewSession(xaf(25000), "650123456", momo.MTN_MOMO_CMR)

		require.NoError(t, w.Submit(ctx, s, Callbacks{}))
		<-s.Done()

		assert.Equal(t, STATUS_FAILED, s.Status())
		assert.Equal(t, 0, gateway.checkCount())
	})
}

type neverClock struct{}

func (neverClock) After(d time.Duration) <-chan time.Time {
	return make(chan time.Time)
}
