package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jukebox_cache_hits_total",
		Help: "Blob requests served from local disk",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jukebox_cache_misses_total",
		Help: "Blob requests that went to the mirrors",
	})
	cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jukebox_cache_evictions_total",
		Help: "Cached blobs removed to stay under the size limit",
	})
)

func RegisterMetrics() {
	prometheus.MustRegister(cacheHits, cacheMisses, cacheEvictions)
}
