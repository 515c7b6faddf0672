package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(webhooksTotal, webhookSignatureFailures)
}

var (
	webhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhooks_total",
			Help: "Provider webhook deliveries by type and outcome (applied/duplicate/error).",
		},
		[]string{"type", "outcome"},
	)

	webhookSignatureFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_webhook_signature_failures_total",
			Help: "Webhook deliveries rejected before any state change.",
		},
	)
)

func IncWebhook(eventType, outcome string) {
	webhooksTotal.WithLabelValues(norm(eventType), norm(outcome)).Inc()
}

func IncWebhookSignatureFailure() { webhookSignatureFailures.Inc() }
