package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	downloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rackfw",
			Subsystem: "download",
			Name:      "artifacts_total",
			Help:      "A counter for firmware artifact downloads by outcome.",
		},
		[]string{"outcome"})

	downloadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rackfw",
			Subsystem: "download",
			Name:      "run_duration_seconds",
			Help:      "A histogram of the duration of whole manifest download runs.",
			Buckets:   []float64{1, 5, 15, 60, 300, 600, 1200},
		},
		[]string{"outcome"},
	)

	dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rackfw",
			Subsystem: "apply",
			Name:      "dispatches_total",
			Help:      "A counter for batch firmware dispatches by node type and outcome.",
		},
		[]string{"node_type", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(downloads, downloadDuration, dispatches)
}

// CountDownload counts one artifact download with the given outcome
// ("success", "failed" or "cached").
func CountDownload(outcome string) {
	downloads.WithLabelValues(outcome).Inc()
}

// ObserveDownloadRun records the duration of one complete download run.
func ObserveDownloadRun(outcome string, start time.Time) {
	downloadDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// CountDispatch counts one batch dispatch to the fleet manager.
func CountDispatch(nodeType string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failed"
	}
	dispatches.WithLabelValues(nodeType, outcome).Inc()
}
