// Package api is the HTTP surface of the registration service: the
// public intake and payment endpoints, the password-gated admin view,
// and the health and metrics plumbing around them.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/International-Combat-Archery-Alliance/email"
	"github.com/google/uuid"
	"github.com/iai-protocole/registration/metrics"
	"github.com/iai-protocole/registration/payment"
	"github.com/iai-protocole/registration/registration"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Environment string

const (
	LOCAL Environment = "LOCAL"
	PROD  Environment = "PROD"
)

type DB interface {
	registration.Repository
}

// Cache is the registration mirror: writes happen during intake, reads
// back the mirrored record when the primary store is unreachable.
type Cache interface {
	registration.Cache
	GetRegistration(ctx context.Context, id uuid.UUID) (registration.Record, bool, error)
}

type Config struct {
	AdminPassword    string
	EmailFromAddress string
	Payment          payment.Config
	// MetricsGatherer serves GET /metrics when set.
	MetricsGatherer prometheus.Gatherer
}

type API struct {
	db          DB
	cache       Cache
	workflow    *payment.Workflow
	sessions    *sessionRegistry
	emailSender email.Sender
	metrics     *metrics.Metrics
	logger      *slog.Logger
	env         Environment
	cfg         Config
}

func NewAPI(
	db DB,
	cache Cache,
	gateway payment.Gateway,
	clock payment.Clock,
	emailSender email.Sender,
	m *metrics.Metrics,
	logger *slog.Logger,
	env Environment,
	cfg Config,
) *API {
	a := &API{
		db:          db,
		cache:       cache,
		sessions:    newSessionRegistry(),
		emailSender: emailSender,
		metrics:     m,
		logger:      logger,
		env:         env,
		cfg:         cfg,
	}

	a.workflow = payment.NewWorkflow(
		&instrumentedGateway{gateway: gateway, metrics: m},
		clock,
		&slogNotifier{logger: logger},
		logger,
		cfg.Payment,
	)

	return a
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /operators", a.handleListOperators)
	mux.HandleFunc("GET /operators/detect", a.handleDetectOperator)
	mux.HandleFunc("POST /registrations", a.handleSubmitRegistration)
	mux.HandleFunc("GET /registrations/{id}", a.handleGetMirroredRegistration)
	mux.HandleFunc("POST /payments", a.handleInitiatePayment)
	mux.HandleFunc("GET /payments/{depositId}", a.handleGetPayment)

	mux.HandleFunc("GET /admin/registrations", a.requireAdmin(a.handleAdminListRegistrations))
	mux.HandleFunc("DELETE /admin/registrations/{id}", a.requireAdmin(a.handleAdminDeleteRegistration))
	mux.HandleFunc("PUT /admin/registrations/{id}/review", a.requireAdmin(a.handleAdminSetReviewFlag))

	if a.cfg.MetricsGatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(a.cfg.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	return useMiddlewares(mux,
		a.loggingMiddleware(),
		a.requestIdMiddleware(),
		a.corsMiddleware(),
	)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}
