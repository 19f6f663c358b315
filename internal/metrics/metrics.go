// Package metrics provides Prometheus metrics collection for the pitch
// modeling pipeline: training progress, density rendering, data acquisition
// and prediction serving.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Training metrics
	TrainingSteps    prometheus.Counter   // Total mini-batch gradient steps taken
	ValidationScore  prometheus.Gauge     // Most recent validation score
	StepDuration     prometheus.Histogram // Duration of one training step
	CheckpointsSaved prometheus.Counter   // Total checkpoints written

	// Density metrics
	RendersTotal   prometheus.Counter   // Total per-pitcher renders produced
	RenderDuration prometheus.Histogram // Duration of one voxel render

	// Data acquisition metrics
	DownloadsTotal   prometheus.Counter // Total source files fetched
	DownloadFailures prometheus.Counter // Total failed fetches
	PitchesIngested  prometheus.Counter // Total pitches added to the dataset

	// Serving metrics
	Predictions       prometheus.Counter   // Total predictions served
	PredictionLatency prometheus.Histogram // Prediction latency in seconds
	ModelAge          prometheus.Gauge     // Age of the active checkpoint in seconds
	FeedClients       prometheus.Gauge     // Connected training-feed clients

	// System metrics
	ErrorsTotal prometheus.Counter // Total errors encountered
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for tests,
// which need isolated metric collection).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		TrainingSteps: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_steps_total",
			Help: "Total mini-batch gradient steps taken",
		}),
		ValidationScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "validation_score",
			Help: "Most recent validation score (geometric mean perplexity)",
		}),
		StepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_step_duration_seconds",
			Help:    "Duration of one training step in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		CheckpointsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkpoints_saved_total",
			Help: "Total model checkpoints written",
		}),
		RendersTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "density_renders_total",
			Help: "Total per-pitcher density renders produced",
		}),
		RenderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "density_render_duration_seconds",
			Help:    "Duration of one voxel render in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		DownloadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "downloads_total",
			Help: "Total source files fetched",
		}),
		DownloadFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "download_failures_total",
			Help: "Total failed source fetches",
		}),
		PitchesIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "pitches_ingested_total",
			Help: "Total pitches added to the dataset",
		}),
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total predictions served",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Prediction latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the active checkpoint in seconds",
		}),
		FeedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "training_feed_clients",
			Help: "Connected training-feed WebSocket clients",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}
