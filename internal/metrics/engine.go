package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Engine Prometheus metrics. The engine label is the variant name.
var (
	EngineDocumentsPulledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workflows",
			Subsystem: "engine",
			Name:      "documents_pulled_total",
			Help:      "Documents pulled from datasets",
		},
		[]string{"engine"},
	)

	EngineDocumentsTransformedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workflows",
			Subsystem: "engine",
			Name:      "documents_transformed_total",
			Help:      "Documents handed to operators, by outcome",
		},
		[]string{"engine", "status"}, // "ok" / "error"
	)

	EngineDocumentsPushedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workflows",
			Subsystem: "engine",
			Name:      "documents_pushed_total",
			Help:      "Documents written back to datasets",
		},
		[]string{"engine"},
	)

	EnginePushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workflows",
			Subsystem: "engine",
			Name:      "pushes_total",
			Help:      "Push calls, by whether they requested a schema update",
		},
		[]string{"engine", "update_schema"},
	)

	EnginePullRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workflows",
			Subsystem: "engine",
			Name:      "pull_retries_total",
			Help:      "Failed pull attempts that were retried",
		},
		[]string{"engine"},
	)

	EnginePushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "workflows",
			Subsystem: "engine",
			Name:      "push_duration_seconds",
			Help:      "Push duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"engine"},
	)

	EngineSuccessRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "workflows",
			Subsystem: "engine",
			Name:      "success_ratio",
			Help:      "Success ratio of the last finished run",
		},
		[]string{"engine"},
	)
)

var engineMetricsOnce sync.Once

// RegisterEngineMetrics registers engine metrics with the default registry. Safe to call repeatedly.
func RegisterEngineMetrics() {
	engineMetricsOnce.Do(func() {
		prometheus.MustRegister(
			EngineDocumentsPulledTotal,
			EngineDocumentsTransformedTotal,
			EngineDocumentsPushedTotal,
			EnginePushesTotal,
			EnginePullRetriesTotal,
			EnginePushDuration,
			EngineSuccessRatio,
		)
	})
}
