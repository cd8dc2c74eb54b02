package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	barsIngested  *prometheus.CounterVec
	rowsBuilt     prometheus.Counter
	errorsTotal   *prometheus.CounterVec
	lastClose     *prometheus.GaugeVec
	upProbability *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		barsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daytrade_bars_ingested_total",
				Help: "Total number of daily bars written to the bar store",
			},
			[]string{"source", "symbol"},
		),
		rowsBuilt: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "daytrade_dataset_rows_built_total",
				Help: "Total number of feature rows produced by dataset builds",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daytrade_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastClose: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "daytrade_last_close",
				Help: "Last observed close price per symbol",
			},
			[]string{"symbol"},
		),
		upProbability: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "daytrade_up_probability",
				Help: "Latest predicted next-day up probability per symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "daytrade_operation_duration_seconds",
				Help:    "Duration of pipeline operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordBarIngested records a bar written to storage.
func (r *Recorder) RecordBarIngested(source, symbol string) {
	r.barsIngested.WithLabelValues(source, symbol).Inc()
}

// RecordRowsBuilt records feature rows produced by a dataset build.
func (r *Recorder) RecordRowsBuilt(n int) {
	r.rowsBuilt.Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastClose records the last close price for a symbol.
func (r *Recorder) RecordLastClose(symbol string, price float64) {
	r.lastClose.WithLabelValues(symbol).Set(price)
}

// RecordUpProbability records the latest predicted up probability.
func (r *Recorder) RecordUpProbability(symbol string, p float64) {
	r.upProbability.WithLabelValues(symbol).Set(p)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
