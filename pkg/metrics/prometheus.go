package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	snapshotsFetched *prometheus.CounterVec
	predictions      *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	lastSpot         *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		snapshotsFetched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionpulse_snapshots_fetched_total",
				Help: "Total number of option-chain snapshots fetched",
			},
			[]string{"symbol"},
		),
		predictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionpulse_predictions_total",
				Help: "Total number of predictions scored, by label",
			},
			[]string{"symbol", "label"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"kind"},
		),
		lastSpot: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "optionpulse_last_spot",
				Help: "Last observed underlying spot for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optionpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSnapshotFetched records one successful chain fetch.
func (r *Recorder) RecordSnapshotFetched(symbol string) {
	r.snapshotsFetched.WithLabelValues(symbol).Inc()
}

// RecordPrediction records one scored prediction.
func (r *Recorder) RecordPrediction(symbol, label string) {
	r.predictions.WithLabelValues(symbol, label).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastSpot records the last underlying spot for a symbol.
func (r *Recorder) RecordLastSpot(symbol string, spot float64) {
	r.lastSpot.WithLabelValues(symbol).Set(spot)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
