package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookRequests,
		webhookDuration,
		entitlementTransitions,
		refundAnomalies,
	)
}

var (
	// result: applied|duplicate|ignored|noop|unauthorized|error
	// event: payment_succeeded|payment_refunded|other|unknown
	webhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paddle_webhook_requests_total",
			Help: "Webhook deliveries by event type and result.",
		},
		[]string{"event", "result"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paddle_webhook_duration_seconds",
			Help:    "Duration of webhook processing in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"result"},
	)

	entitlementTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_transitions_total",
			Help: "Entitlement state changes written to the store.",
		},
		[]string{"from", "to"},
	)

	refundAnomalies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "entitlement_refund_without_record_total",
			Help: "Authenticated refunds for users with no entitlement record.",
		},
	)
)

func ObserveWebhook(event, result string, seconds float64) {
	webhookRequests.WithLabelValues(norm(event), norm(result)).Inc()
	webhookDuration.WithLabelValues(norm(result)).Observe(seconds)
}

func IncTransition(from, to string) {
	entitlementTransitions.WithLabelValues(norm(from), norm(to)).Inc()
}

func IncRefundWithoutRecord() { refundAnomalies.Inc() }
