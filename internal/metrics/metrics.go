// Package metrics declares the process's Prometheus collectors, mirroring
// the teacher's package-level CounterVec/GaugeVec/HistogramVec convention.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	BadAuthPacketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xorpcore_rip_bad_auth_packets_total",
			Help: "Inbound RIP packets rejected by authentication.",
		},
		[]string{"port"},
	)

	UnsolicitedDumpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xorpcore_rip_unsolicited_dumps_total",
			Help: "Full-table unsolicited responses sent.",
		},
		[]string{"port"},
	)

	TriggeredDumpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xorpcore_rip_triggered_dumps_total",
			Help: "Triggered updates sent.",
		},
		[]string{"port"},
	)

	PeerGCTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xorpcore_rip_peer_gc_total",
			Help: "Peers removed by garbage collection.",
		},
		[]string{"port"},
	)

	KeyRolloverTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xorpcore_rip_auth_key_rollover_total",
			Help: "MD5 key-chain rollovers (a key entering or leaving its active window).",
		},
		[]string{"port"},
	)

	RouteDBSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "xorpcore_routedb_winning_routes",
			Help: "Routes currently held by the merge table.",
		},
		[]string{"family"},
	)

	FibEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "xorpcore_fib_entries",
			Help: "Entries currently installed in the FIB engine's trie.",
		},
		[]string{"family"},
	)

	ChurnPublishErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xorpcore_churn_publish_errors_total",
			Help: "Errors returned by a ChurnSink's Publish call.",
		},
		[]string{"sink"},
	)

	ChurnPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xorpcore_churn_publish_duration_seconds",
			Help:    "Latency of a ChurnSink's Publish call.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"sink"},
	)
)

// Register adds every collector to the default Prometheus registry. Call
// once from main before serving /metrics.
func Register() {
	prometheus.MustRegister(
		BadAuthPacketsTotal,
		UnsolicitedDumpsTotal,
		TriggeredDumpsTotal,
		PeerGCTotal,
		KeyRolloverTotal,
		RouteDBSize,
		FibEntries,
		ChurnPublishErrorsTotal,
		ChurnPublishDuration,
	)
}
