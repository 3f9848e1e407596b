package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dripline_upstream_calls_total",
			Help: "Total calls to the sensor head, forecast API and prediction service",
		},
		[]string{"upstream", "status"},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dripline_upstream_latency_seconds",
			Help:    "Upstream call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream"},
	)

	MeasurementsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dripline_measurements_imported_total",
			Help: "Total sensor head readings stored",
		},
	)

	MeasurementFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dripline_measurement_quality_flags_total",
			Help: "Readings stored with a range-check flag",
		},
		[]string{"flag"},
	)

	Cycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dripline_cycles_total",
			Help: "Decision cycles by outcome; stage is empty for successful cycles",
		},
		[]string{"outcome", "stage"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dripline_cycle_duration_seconds",
			Help:    "Wall time of one decision cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dripline_decisions_total",
			Help: "Irrigation decisions by reason",
		},
		[]string{"reason"},
	)

	ValveCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dripline_valve_commands_total",
			Help: "Valve commands sent, by valve transport and status",
		},
		[]string{"valve", "status"},
	)

	LastValveSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dripline_last_valve_seconds",
			Help: "Duration of the most recent successful valve command",
		},
	)
)
