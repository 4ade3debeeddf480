package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the settlement collectors.
	Registry = prometheus.NewRegistry()

	commits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brickshare",
			Subsystem: "intake",
			Name:      "commits_total",
			Help:      "Commit requests by result (application, investment or error kind).",
		},
		[]string{"result"},
	)

	tranches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brickshare",
			Subsystem: "settlement",
			Name:      "tranches_total",
			Help:      "Tranches settled by the sweep, by outcome.",
		},
		[]string{"outcome"},
	)

	applications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brickshare",
			Subsystem: "settlement",
			Name:      "applications_total",
			Help:      "Applications transitioned by the sweep or finalize, by status.",
		},
		[]string{"status"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "brickshare",
			Subsystem: "settlement",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a full sweep run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	finalizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brickshare",
			Subsystem: "finalize",
			Name:      "runs_total",
			Help:      "Finalize calls by branch or error kind.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		commits,
		tranches,
		applications,
		sweepDuration,
		finalizations,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordCommit(result string) {
	commits.WithLabelValues(result).Inc()
}

func RecordTranche(outcome string) {
	tranches.WithLabelValues(outcome).Inc()
}

func RecordApplications(status string, n int) {
	if n <= 0 {
		return
	}
	applications.WithLabelValues(status).Add(float64(n))
}

func RecordSweep(d time.Duration) {
	sweepDuration.Observe(d.Seconds())
}

func RecordFinalize(result string) {
	finalizations.WithLabelValues(result).Inc()
}
