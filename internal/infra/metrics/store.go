package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(storeTxConflicts, storePool) }

var storeTxConflicts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "entitlement_store_tx_conflicts_total",
		Help: "Transaction conflicts retried by the entitlement store.",
	},
	[]string{"driver"},
)

// state: total|idle|in_use|max
var storePool = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "entitlement_store_pool_connections",
		Help: "Postgres entitlement store connection pool by state.",
	},
	[]string{"state"},
)

func IncStoreConflict(driver string) {
	storeTxConflicts.WithLabelValues(norm(driver)).Inc()
}

func SetStorePool(total, idle, inUse, maxConns int32) {
	storePool.WithLabelValues("total").Set(float64(total))
	storePool.WithLabelValues("idle").Set(float64(idle))
	storePool.WithLabelValues("in_use").Set(float64(inUse))
	storePool.WithLabelValues("max").Set(float64(maxConns))
}
