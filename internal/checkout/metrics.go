package checkout

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	checkouts     *prometheus.CounterVec
	amount        prometheus.Histogram
	latency       prometheus.Histogram
	statusChanges *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medistore",
			Subsystem: "checkout",
			Name:      "orders_total",
			Help:      "Order placement attempts by outcome.",
		}, []string{"outcome"}),
		amount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "medistore",
			Subsystem: "checkout",
			Name:      "order_amount",
			Help:      "Committed checkout totals.",
			Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "medistore",
			Subsystem: "checkout",
			Name:      "place_order_seconds",
			Help:      "Time spent placing an order, including the commit.",
			Buckets:   prometheus.DefBuckets,
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medistore",
			Subsystem: "orders",
			Name:      "status_changes_total",
			Help:      "Order status transitions by target status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.checkouts, m.amount, m.latency, m.statusChanges)
	return m
}

func (m *Metrics) observePlaced(r *Receipt, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(outcome(err)).Inc()
	m.latency.Observe(took.Seconds())
	if err == nil && r != nil && !r.Replayed {
		f, _ := r.Pricing.Total.Float64()
		m.amount.Observe(f)
	}
}

func (m *Metrics) observeStatus(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "placed"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrPromoAlreadyUsed):
		return "promo_already_used"
	case errors.Is(err, ErrInvalidPromo):
		return "invalid_promo"
	case errors.Is(err, ErrEmptyOrder):
		return "empty"
	case errors.Is(err, ErrDuplicateSubmission):
		return "duplicate"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "persistence_failure"
	}
}
