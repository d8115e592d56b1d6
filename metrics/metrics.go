// Package metrics collects per-run counters and exports them as a
// node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"imdirdiff/types"
)

const namespace = "imdirdiff"

// Run holds the collectors of one run on a private registry
type Run struct {
	registry    *prometheus.Registry
	records     *prometheus.CounterVec
	comparisons prometheus.Counter
	similarity  prometheus.Histogram
	duration    prometheus.Gauge
	lastRun     prometheus.Gauge
}

// NewRun creates the collectors. Each call uses its own registry so runs
// never share state.
func NewRun(backend string) *Run {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"backend": backend}

	r := &Run{
		registry: registry,
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "diff_records_total",
			Help:        "Reported differences by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		comparisons: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "comparisons_total",
			Help:        "Image pairs compared.",
			ConstLabels: labels,
		}),
		similarity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "similarity_score",
			Help:        "Similarity score of every compared pair.",
			ConstLabels: labels,
			Buckets:     []float64{0.5, 0.8, 0.9, 0.95, 0.99, 0.999, 1},
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_duration_seconds",
			Help:        "Wall time of the last run.",
			ConstLabels: labels,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_run_timestamp_seconds",
			Help:        "Unix time the last run finished.",
			ConstLabels: labels,
		}),
	}

	registry.MustRegister(r.records, r.comparisons, r.similarity, r.duration, r.lastRun)

	for _, kind := range []types.DiffKind{types.KindOnlyInA, types.KindOnlyInB, types.KindChanged} {
		r.records.WithLabelValues(string(kind))
	}

	return r
}

// ObserveComparison records the score of one compared pair
func (r *Run) ObserveComparison(score float64) {
	r.comparisons.Inc()
	r.similarity.Observe(score)
}

// ObserveRecord counts one manifest entry
func (r *Run) ObserveRecord(rec types.DiffRecord) {
	r.records.WithLabelValues(string(rec.Kind())).Inc()
}

// Finish stamps the run duration and completion time
func (r *Run) Finish(elapsed time.Duration, at time.Time) {
	r.duration.Set(elapsed.Seconds())
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes all collectors to path in the text exposition format.
// The file is replaced atomically.
func (r *Run) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
