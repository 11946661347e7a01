// Package prommetrics reports billing activity to Prometheus.
package prommetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmitrymomot/subledger/pkg/billing"
	"github.com/dmitrymomot/subledger/pkg/money"
)

// Metrics implements billing.Metrics using Prometheus.
type Metrics struct {
	eventsTotal       *prometheus.CounterVec
	paymentsTotal     *prometheus.CounterVec
	revenueMinorTotal *prometheus.CounterVec
	intentsRecovered  *prometheus.CounterVec
}

var _ billing.Metrics = (*Metrics)(nil)

// NewMetrics registers the billing collectors with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Webhook events handled, by type and outcome.",
		}, []string{"event_type", "outcome"}),

		paymentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "payments_settled_total",
			Help:      "Settled payments, by settlement kind and result.",
		}, []string{"kind", "result"}),

		revenueMinorTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "revenue_minor_units_total",
			Help:      "Completed payment amounts in minor currency units.",
		}, []string{"currency"}),

		intentsRecovered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "intents_recovered_total",
			Help:      "Open settlement intents processed at startup, by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) EventHandled(eventType billing.EventType, outcome string) {
	m.eventsTotal.WithLabelValues(string(eventType), outcome).Inc()
}

func (m *Metrics) PaymentSettled(kind string, success bool, amount money.Money) {
	result := "declined"
	if success {
		result = "paid"
		m.revenueMinorTotal.WithLabelValues(amount.Currency).Add(float64(amount.Amount))
	}
	m.paymentsTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) IntentsRecovered(applied, abandoned int) {
	m.intentsRecovered.WithLabelValues("applied").Add(float64(applied))
	m.intentsRecovered.WithLabelValues("abandoned").Add(float64(abandoned))
}
