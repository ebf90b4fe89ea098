package ledger

import "github.com/prometheus/client_golang/prometheus"

var (
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jukebox_ledger_transitions_total", Help: "Contract calls by entry point and result"},
		[]string{"kind", "result"},
	)
	feesCollected = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "jukebox_ledger_fees_total", Help: "Fees consumed by committed track changes"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(transitionsTotal, feesCollected)
}
