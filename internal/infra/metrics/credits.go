package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(usageTotal, refundsTotal)
}

var (
	usageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_usage_total",
			Help: "Metered actions by kind and outcome (charged/denied).",
		},
		[]string{"action", "result"},
	)

	refundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_refunds_total",
			Help: "Credit refunds by action kind.",
		},
		[]string{"action"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncUsage(action, result string) {
	usageTotal.WithLabelValues(norm(action), norm(result)).Inc()
}

func IncRefund(action string) {
	refundsTotal.WithLabelValues(norm(action)).Inc()
}
