// Package telemetry holds business-level Prometheus metrics, separate from
// the per-request HTTP metrics in the middleware package.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Checkout outcomes.
const (
	OutcomeSuccess           = "success"
	OutcomeEmptyCart         = "empty_cart"
	OutcomeValidationFailed  = "validation_failed"
	OutcomeReservationFailed = "reservation_failed"
	OutcomePaymentDeclined   = "payment_declined"
	OutcomeInternalError     = "internal_error"
)

// Compensation steps.
const (
	CompensationStockRestore = "stock_restore"
	CompensationOrderCancel  = "order_cancel"
)

// CheckoutMetrics counts checkout attempts by outcome and the compensations
// the saga had to run. A nil *CheckoutMetrics is valid and records nothing,
// so tests can pass nil.
type CheckoutMetrics struct {
	CheckoutsTotal     *prometheus.CounterVec
	CheckoutDuration   prometheus.Histogram
	CompensationsTotal *prometheus.CounterVec
	OrderValue         prometheus.Histogram
}

// NewCheckoutMetrics creates and registers the checkout metrics.
func NewCheckoutMetrics(namespace string) *CheckoutMetrics {
	if namespace == "" {
		namespace = "njord"
	}

	subsystem := "checkout"

	return &CheckoutMetrics{
		CheckoutsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "attempts_total",
				Help:      "Checkout attempts by outcome",
			},
			[]string{"outcome"},
		),
		CheckoutDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "duration_seconds",
				Help:      "End-to-end checkout duration",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		CompensationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "compensations_total",
				Help:      "Saga compensations run, by step",
			},
			[]string{"step"},
		),
		OrderValue: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value_cents",
				Help:      "Total value of successfully placed orders in cents",
				Buckets:   prometheus.ExponentialBuckets(500, 2.5, 8),
			},
		),
	}
}

// ObserveCheckout records one checkout attempt.
func (m *CheckoutMetrics) ObserveCheckout(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CheckoutsTotal.WithLabelValues(outcome).Inc()
	m.CheckoutDuration.Observe(duration.Seconds())
}

// ObserveOrderValue records the value of a placed order.
func (m *CheckoutMetrics) ObserveOrderValue(totalCents int64) {
	if m == nil {
		return
	}
	m.OrderValue.Observe(float64(totalCents))
}

// IncCompensation records one compensation step execution.
func (m *CheckoutMetrics) IncCompensation(step string) {
	if m == nil {
		return
	}
	m.CompensationsTotal.WithLabelValues(step).Inc()
}
