package importer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathways",
		Subsystem: "import",
		Name:      "runs_total",
		Help:      "Total number of imports broken down by kind and status (ok, failed, canceled).",
	}, []string{"kind", "status"})

	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathways",
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Total number of imported rows broken down by kind and outcome (succeeded, failed).",
	}, []string{"kind", "outcome"})

	importDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pathways",
		Subsystem: "import",
		Name:      "duration_seconds",
		Help:      "Time taken to reconcile an import, by kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
)

func recordImport(rep Report, status string, seconds float64) {
	kind := string(rep.Kind)
	importsTotal.WithLabelValues(kind, status).Inc()
	importRows.WithLabelValues(kind, "succeeded").Add(float64(rep.Succeeded))
	importRows.WithLabelValues(kind, "failed").Add(float64(rep.Failed))
	importDuration.WithLabelValues(kind).Observe(seconds)
}
