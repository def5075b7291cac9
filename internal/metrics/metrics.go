package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignalsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unhinged_signaling_signals_sent_total",
		Help: "Total signals written to the channel",
	}, []string{"type"})

	SignalsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unhinged_signaling_signals_processed_total",
		Help: "Total signals consumed from the channel",
	}, []string{"type", "outcome"}) // outcome: "ok" | "error" | "stale" | "version" | "duplicate"

	ActiveSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "unhinged_signaling_active_sessions",
		Help: "Number of live peer sessions",
	}, []string{"role"}) // "broadcaster" | "viewer"

	SessionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unhinged_signaling_sessions_created_total",
		Help: "Total peer sessions created",
	}, []string{"role"})

	SessionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unhinged_signaling_session_failures_total",
		Help: "Total peer sessions that reached the failed state",
	}, []string{"reason"})

	NegotiationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "unhinged_signaling_negotiation_seconds",
		Help:    "Time from session creation to connected",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
	}, []string{"role"})

	RosterSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "unhinged_signaling_roster_size",
		Help: "Current viewer roster size per stream",
	}, []string{"stream"})

	RosterPurgesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unhinged_signaling_roster_purges_total",
		Help: "Roster entries removed by reconciliation sweeps",
	})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "unhinged_signaling_active_streams",
		Help: "Number of locally hosted live broadcasts",
	})

	StatusSocketsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "unhinged_signaling_status_sockets_active",
		Help: "Number of open status WebSocket connections",
	})

	ConfigReloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unhinged_signaling_config_reloads_total",
		Help: "Number of configuration reloads",
	})
)
