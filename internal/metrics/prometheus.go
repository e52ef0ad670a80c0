// Package metrics exports sandbox run metrics in the Prometheus format.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder records one observation per sandbox run.
type PrometheusRecorder struct {
	runs         *prometheus.CounterVec
	durations    *prometheus.HistogramVec
	steps        prometheus.Histogram
	degradations prometheus.Counter
	truncations  prometheus.Counter
}

func NewPrometheusRecorder(registry *prometheus.Registry) (*PrometheusRecorder, error) {
	if registry == nil {
		return nil, fmt.Errorf("prometheus registry is nil")
	}

	r := &PrometheusRecorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "decipher_runs_total",
			Help: "Total number of sandbox runs by final state",
		}, []string{"state"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "decipher_run_duration_seconds",
			Help:    "Sandbox run wall-clock time in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"state"}),
		steps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "decipher_run_steps",
			Help:    "Number of trace steps per run",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		}),
		degradations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "decipher_serialization_degradations_total",
			Help: "Values rendered as opaque or depth-limited markers",
		}),
		truncations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "decipher_truncated_runs_total",
			Help: "Runs whose trace was cut at the step cap",
		}),
	}

	for _, collector := range []prometheus.Collector{r.runs, r.durations, r.steps, r.degradations, r.truncations} {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveRun(state string, duration time.Duration, steps, degradations int, truncated bool) {
	r.runs.WithLabelValues(state).Inc()
	r.durations.WithLabelValues(state).Observe(duration.Seconds())
	r.steps.Observe(float64(steps))
	if degradations > 0 {
		r.degradations.Add(float64(degradations))
	}
	if truncated {
		r.truncations.Inc()
	}
}

// Handler serves the registry's metrics.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
