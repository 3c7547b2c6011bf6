package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for webhook intake and reconciliation
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)

	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_reconcile_total",
			Help: "Courier notifications processed, by outcome",
		},
		[]string{"outcome"},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_reconcile_duration_seconds",
			Help:    "Duration of one reconciliation unit of work",
			Buckets: prometheus.DefBuckets,
		},
	)

	BackfilledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_backfilled_states_total",
			Help: "Log entries inferred from notification history",
		},
		[]string{"state"},
	)

	SideEffectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_side_effects_total",
			Help: "Side-effect jobs handed to the task queue, by kind and result",
		},
		[]string{"kind", "result"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ReconcileTotal,
		ReconcileDuration,
		BackfilledTotal,
		SideEffectsTotal,
	}
}

// Register registers all metrics with reg. Metrics already registered with
// reg are left in place.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveSideEffect records the result of one enqueue attempt.
func ObserveSideEffect(kind string, err error) {
	result := "enqueued"
	if err != nil {
		result = "failed"
	}
	SideEffectsTotal.WithLabelValues(kind, result).Inc()
}
