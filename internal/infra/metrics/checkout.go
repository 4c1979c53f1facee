package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(checkoutsTotal, statusQueriesTotal) }

var (
	// result: ok|invalid|provider_error
	checkoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkouts_total",
			Help: "Checkout link requests by provider, plan and result.",
		},
		[]string{"provider", "plan", "result"},
	)

	// result: premium|free|store_error
	statusQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_status_queries_total",
			Help: "Entitlement status reads by result.",
		},
		[]string{"result"},
	)
)

func IncCheckout(provider, plan, result string) {
	checkoutsTotal.WithLabelValues(norm(provider), norm(plan), norm(result)).Inc()
}

func IncStatusQuery(result string) {
	statusQueriesTotal.WithLabelValues(norm(result)).Inc()
}
