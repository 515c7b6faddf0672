package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(rolloversTotal, sweepDuration)
}

var (
	rolloversTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_rollovers_total",
			Help: "Period rollovers by outcome (renewed/past_due/demoted).",
		},
		[]string{"outcome"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "billing_sweep_duration_seconds",
			Help:    "Duration of one rollover sweep pass.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func IncRollover(outcome string) {
	rolloversTotal.WithLabelValues(norm(outcome)).Inc()
}

func ObserveSweepDuration(seconds float64) { sweepDuration.Observe(seconds) }
