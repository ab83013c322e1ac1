package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Provider operations.
const (
	OperationToken   = "token"
	OperationSTKPush = "stkpush"
	OperationQuery   = "query"
)

var (
	providerCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mpesa",
		Name:      "provider_call_duration_seconds",
		Help:      "Latency of outbound calls to the M-Pesa API.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation", "outcome"})

	initiations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mpesa",
		Name:      "stk_push_initiations_total",
		Help:      "STK push initiations by outcome.",
	}, []string{"outcome"})

	callbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mpesa",
		Name:      "callbacks_total",
		Help:      "Provider callbacks by reconciliation outcome.",
	}, []string{"outcome"})
)

// ObserveProviderCall records the latency of a provider call. It is meant to
// be deferred with a pointer to the caller's named error result.
func ObserveProviderCall(operation string, start time.Time, errp *error) {
	outcome := "ok"
	if errp != nil && *errp != nil {
		outcome = "error"
	}
	providerCallDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

// IncInitiation counts an STK push initiation.
func IncInitiation(outcome string) {
	initiations.WithLabelValues(outcome).Inc()
}

// IncCallback counts a processed callback.
func IncCallback(outcome string) {
	callbacks.WithLabelValues(outcome).Inc()
}
