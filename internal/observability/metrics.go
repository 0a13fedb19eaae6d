package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	// Registry holds genctl metrics only, so textfile exports stay small.
	Registry = prometheus.NewRegistry()

	generatorRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "genctl",
			Subsystem: "generator",
			Name:      "runs_total",
			Help:      "Generator invocations by outcome.",
		},
		[]string{"project", "generator", "status"},
	)
	generatorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "genctl",
			Subsystem: "generator",
			Name:      "duration_seconds",
			Help:      "Generator wall time in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"project", "generator", "status"},
	)
	lastRunTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "genctl",
			Subsystem: "run",
			Name:      "last_timestamp_seconds",
			Help:      "Unix time of the last finished pre-build run.",
		},
		[]string{"project", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		Registry.MustRegister(generatorRuns, generatorDuration, lastRunTimestamp)
	})
}

func RecordGenerator(project, generator, status string, duration time.Duration) {
	RegisterMetrics()
	generatorRuns.WithLabelValues(project, generator, status).Inc()
	if status != "skipped" {
		generatorDuration.WithLabelValues(project, generator, status).Observe(duration.Seconds())
	}
}

func RecordRun(project string, finished time.Time, success bool) {
	RegisterMetrics()
	label := "false"
	if success {
		label = "true"
	}
	lastRunTimestamp.WithLabelValues(project, label).Set(float64(finished.Unix()))
}

// WriteTextfile exports the registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	RegisterMetrics()
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("observability: write metrics textfile: %w", err)
	}
	return nil
}
