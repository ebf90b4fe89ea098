package player

import "github.com/prometheus/client_golang/prometheus"

var (
	pollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "jukebox_player_polls_total", Help: "Ledger polls"},
	)
	pollErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "jukebox_player_poll_errors_total", Help: "Ledger polls that failed"},
	)
	switchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "jukebox_player_switches_total", Help: "Tracks started after a ledger change"},
	)
	unplayableTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "jukebox_player_unplayable_total", Help: "Ledger tracks with no local entry"},
	)
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jukebox_player_submissions_total", Help: "Pay-to-play submissions"},
		[]string{"result"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(pollsTotal, pollErrors, switchesTotal, unplayableTotal, submissionsTotal)
}
