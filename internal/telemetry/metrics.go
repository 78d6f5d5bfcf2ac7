package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the Prometheus metrics for the pipeline.
type Registry struct {
	registry *prometheus.Registry

	PollDuration      *prometheus.HistogramVec
	PollErrors        *prometheus.CounterVec
	RegimeSwitches    *prometheus.CounterVec
	ActiveInstruments prometheus.Gauge
	SignalsIngested   *prometheus.CounterVec
	SignalsDeduped    prometheus.Counter
	TxSynthesized     *prometheus.CounterVec
}

// NewRegistry creates and registers all metrics.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		PollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowpulse_poll_duration_seconds",
				Help:    "Duration of one instrument poll in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0},
			},
			[]string{"instrument", "result"},
		),
		PollErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowpulse_poll_errors_total",
				Help: "Total failed polls by instrument",
			},
			[]string{"instrument"},
		),
		RegimeSwitches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowpulse_regime_switches_total",
				Help: "Total flow regime transitions by from/to regime",
			},
			[]string{"from", "to"},
		),
		ActiveInstruments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowpulse_active_instruments",
				Help: "Number of currently watched instruments",
			},
		),
		SignalsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowpulse_signals_ingested_total",
				Help: "Total pulse signals accepted by category",
			},
			[]string{"category"},
		),
		SignalsDeduped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "flowpulse_signals_deduped_total",
				Help: "Total pulse signals rejected as duplicates",
			},
		),
		TxSynthesized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowpulse_tx_synthesized_total",
				Help: "Total synthetic transactions by instrument and side",
			},
			[]string{"instrument", "side"},
		),
	}

	r.registry.MustRegister(
		r.PollDuration,
		r.PollErrors,
		r.RegimeSwitches,
		r.ActiveInstruments,
		r.SignalsIngested,
		r.SignalsDeduped,
		r.TxSynthesized,
	)
	return r
}

// Handler serves the registry over HTTP.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
