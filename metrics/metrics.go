// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RegistrationsTotal            prometheus.Counter
	DuplicateEmailRejectionsTotal prometheus.Counter
	ValidationFailuresTotal       prometheus.Counter
	PaymentInitiationsTotal       prometheus.Counter
	PaymentStatusChecksTotal      prometheus.Counter
	PaymentOutcomesTotal          *prometheus.CounterVec
}

// New registers the service counters on the given registerer; tests
// pass a private registry so repeated construction doesn't collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RegistrationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "iai_registrations_total",
			Help: "Total number of registrations stored",
		}),
		DuplicateEmailRejectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "iai_registration_duplicate_email_rejections_total",
			Help: "Total number of submissions rejected for an already registered email",
		}),
		ValidationFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "iai_registration_validation_failures_total",
			Help: "Total number of submissions rejected by form validation",
		}),
		PaymentInitiationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "iai_payment_initiations_total",
			Help: "Total number of deposit requests sent to the payment provider",
		}),
		PaymentStatusChecksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "iai_payment_status_checks_total",
			Help: "Total number of deposit status checks issued while polling",
		}),
		PaymentOutcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "iai_payment_outcomes_total",
			Help: "Terminal payment outcomes by result",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObservePaymentOutcome(outcome string) {
	m.PaymentOutcomesTotal.WithLabelValues(outcome).Inc()
}
