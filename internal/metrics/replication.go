package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	UnitsApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdcsync_units_applied_total",
		Help: "Total number of reconstructed transactions applied to the target",
	})

	RecordsApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdcsync_records_applied_total",
		Help: "Total number of change records applied to the target",
	})

	SessionRestarts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdcsync_session_restarts_total",
		Help: "Total number of observation session restarts, planned and unplanned",
	})

	ApplyLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cdcsync_unit_apply_latency_seconds",
		Help:    "Histogram of the time taken to apply one unit to the target",
		Buckets: prometheus.DefBuckets,
	})

	OpenSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cdcsync_open_sessions",
		Help: "Number of currently running observation sessions",
	})
)
