// Package obsmetrics registers the Prometheus metrics describing inference
// and load activity. Import this package from the embedding application
// before scraping its own process-wide registry; this repo never stands up
// an HTTP /metrics server itself.
package obsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InferenceDuration observes per-call inference latency in seconds,
	// labelled by alias, task, and provider.
	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_inference_duration_seconds",
			Help:    "Inference call duration in seconds, by alias/task/provider.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"alias", "task", "provider"},
	)

	// InferenceTotal counts completed inference calls labelled by alias,
	// task, provider, and outcome status ("success" or "error").
	InferenceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_inference_total",
			Help: "Total inference calls, by alias/task/provider/status.",
		},
		[]string{"alias", "task", "provider", "status"},
	)

	// LoadDuration observes per-load latency in seconds, labelled by
	// provider and model.
	LoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_load_duration_seconds",
			Help:    "Model load duration in seconds, by provider/model.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"provider", "model"},
	)

	// LoadTotal counts completed loads labelled by provider, model, and
	// outcome status ("success" or "error").
	LoadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_load_total",
			Help: "Total model loads, by provider/model/status.",
		},
		[]string{"provider", "model", "status"},
	)
)
