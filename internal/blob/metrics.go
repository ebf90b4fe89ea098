package blob

import "github.com/prometheus/client_golang/prometheus"

var (
	mirrorAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jukebox_blob_mirror_attempts_total", Help: "Blob fetch attempts per mirror"},
		[]string{"mirror", "result"},
	)
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jukebox_blob_uploads_total", Help: "Blob upload attempts per publisher"},
		[]string{"publisher", "result"},
	)
	fetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jukebox_blob_fetch_duration_seconds",
			Help:    "Time spent on one mirror attempt",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 15},
		},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(mirrorAttempts, uploadsTotal, fetchDuration)
}
