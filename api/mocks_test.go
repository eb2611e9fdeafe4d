package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/International-Combat-Archery-Alliance/email"
	"github.com/google/uuid"
	"github.com/iai-protocole/registration/metrics"
	"github.com/iai-protocole/registration/pawapay"
	"github.com/iai-protocole/registration/payment"
	"github.com/iai-protocole/registration/registration"
	"github.com/prometheus/client_golang/prometheus"
)

var noopLogger = slog.New(slog.DiscardHandler)

var _ DB = &mockDB{}

type mockDB struct {
	CreateRegistrationFunc func(ctx context.Context, record registration.Record) error
	ListRegistrationsFunc  func(ctx context.Context, limit int32, cursor *string) (registration.ListRegistrationsResponse, error)
	EmailExistsFunc        func(ctx context.Context, email string) (bool, error)
	DeleteRegistrationFunc func(ctx context.Context, id uuid.UUID) error
	SetReviewFlagFunc      func(ctx context.Context, id uuid.UUID, reviewed bool) error
}

func (m *mockDB) CreateRegistration(ctx context.Context, record registration.Record) error {
	if m.CreateRegistrationFunc != nil {
		return m.CreateRegistrationFunc(ctx, record)
	}
	return nil
}

func (m *mockDB) ListRegistrations(ctx context.Context, limit int32, cursor *string) (registration.ListRegistrationsResponse, error) {
	if m.ListRegistrationsFunc != nil {
		return m.ListRegistrationsFunc(ctx, limit, cursor)
	}
	return registration.ListRegistrationsResponse{}, nil
}

func (m *mockDB) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.EmailExistsFunc != nil {
		return m.EmailExistsFunc(ctx, email)
	}
	return false, nil
}

func (m *mockDB) DeleteRegistration(ctx context.Context, id uuid.UUID) error {
	if m.DeleteRegistrationFunc != nil {
		return m.DeleteRegistrationFunc(ctx, id)
	}
	return nil
}

func (m *mockDB) SetReviewFlag(ctx context.Context, id uuid.UUID, reviewed bool) error {
	if m.SetReviewFlagFunc != nil {
		return m.SetReviewFlagFunc(ctx, id, reviewed)
	}
	return nil
}

var _ Cache = &mockCache{}

type mockCache struct {
	GetRegistrationFunc func(ctx context.Context, id uuid.UUID) (registration.Record, bool, error)

	mu       sync.Mutex
	mirrored []registration.Record
}

func (m *mockCache) MirrorRegistration(ctx context.Context, record registration.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirrored = append(m.mirrored, record)
	return nil
}

func (m *mockCache) GetRegistration(ctx context.Context, id uuid.UUID) (registration.Record, bool, error) {
	if m.GetRegistrationFunc != nil {
		return m.GetRegistrationFunc(ctx, id)
	}
	return registration.Record{}, false, nil
}

func (m *mockCache) Mirrored() []registration.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]registration.Record{}, m.mirrored...)
}

type mockEmailSender struct {
	SendEmailFunc func(ctx context.Context, e email.Email) error

	mu   sync.Mutex
	sent []email.Email
}

func (m *mockEmailSender) SendEmail(ctx context.Context, e email.Email) error {
	m.mu.Lock()
	m.sent = append(m.sent, e)
	m.mu.Unlock()

	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, e)
	}
	return nil
}

func (m *mockEmailSender) Sent() []email.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.Email{}, m.sent...)
}

// mockGateway scripts the provider: a fixed initiation response and a
// sequence of statuses returned by successive status checks. The last
// status repeats once the script runs out.
type mockGateway struct {
	InitiateDepositFunc func(ctx context.Context, depositReq pawapay.DepositRequest) (pawapay.DepositResponse, error)

	statuses []pawapay.DepositStatus

	mu     sync.Mutex
	checks int
}

func (m *mockGateway) InitiateDeposit(ctx context.Context, depositReq pawapay.DepositRequest) (pawapay.DepositResponse, error) {
	if m.InitiateDepositFunc != nil {
		return m.InitiateDepositFunc(ctx, depositReq)
	}
	return pawapay.DepositResponse{DepositID: "dep-123", Status: pawapay.DEPOSIT_ACCEPTED}, nil
}

func (m *mockGateway) GetDeposit(ctx context.Context, depositId string) (pawapay.DepositResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.checks
	m.checks++
	if len(m.statuses) == 0 {
		return pawapay.DepositResponse{DepositID: depositId, Status: pawapay.DEPOSIT_SUBMITTED}, nil
	}
	if i >= len(m.statuses) {
		i = len(m.statuses) - 1
	}

	return pawapay.DepositResponse{DepositID: depositId, Status: m.statuses[i]}, nil
}

// immediateClock fires every wait straight away so polling finishes
// within the test.
type immediateClock struct{}

func (immediateClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

const testAdminPassword = "iai2024admin"

func newTestAPI(db DB, cache Cache, gateway payment.Gateway, emailSender email.Sender) *API {
	return NewAPI(
		db,
		cache,
		gateway,
		immediateClock{},
		emailSender,
		metrics.New(prometheus.NewRegistry()),
		noopLogger,
		LOCAL,
		Config{
			AdminPassword:    testAdminPassword,
			EmailFromAddress: "noreply@iai-protocole.com",
			Payment:          payment.DefaultConfig(),
		},
	)
}
