package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activity_events_detected_total",
		Help: "Events produced by daily detection, by event type",
	}, []string{"type"})

	LogsBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activity_logs_built_total",
		Help: "Event logs computed, by level and outcome",
	}, []string{"level", "outcome"})

	InputsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activity_inputs_skipped_total",
		Help: "Snapshots or child logs skipped while building, by level and reason",
	}, []string{"level", "reason"})

	BuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "activity_build_duration_seconds",
		Help:    "Wall time of a daily build or rollup including I/O",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"level"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
