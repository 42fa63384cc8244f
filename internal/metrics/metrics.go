// Package metrics exposes Prometheus instrumentation for the matching and
// realtime subsystems.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchesScored counts scoring engine invocations.
	MatchesScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leasematch_matches_scored_total",
		Help: "Total number of demand/property pairs scored",
	})

	// MatchUpserts counts match store writes.
	MatchUpserts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leasematch_match_upserts_total",
		Help: "Total number of match record upserts",
	})

	// RescoreErrors counts per-candidate failures inside a rescore pipeline,
	// labeled by trigger (demand or property).
	RescoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leasematch_rescore_errors_total",
		Help: "Total number of per-candidate rescoring failures",
	}, []string{"trigger"})

	// KPICacheRequests counts KPI snapshot lookups by result (hit_l1, hit_l2,
	// miss).
	KPICacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leasematch_kpi_cache_requests_total",
		Help: "Total number of KPI cache lookups by result",
	}, []string{"result"})

	// KPIInvalidations counts explicit KPI cache invalidations.
	KPIInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leasematch_kpi_invalidations_total",
		Help: "Total number of KPI cache invalidations",
	})

	// LiveConnections tracks currently open realtime sessions.
	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leasematch_realtime_connections",
		Help: "Number of currently open realtime sessions",
	})

	// EventsPushed counts realtime events delivered to clients, by event name.
	EventsPushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leasematch_realtime_events_pushed_total",
		Help: "Total number of realtime events pushed to connected clients",
	}, []string{"event"})

	// EventsDropped counts events emitted for users with no open connection.
	// Delivery is at-most-once; these are expected, not errors.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leasematch_realtime_events_dropped_total",
		Help: "Total number of realtime events dropped for offline users",
	})

	// ConnectionsRejected counts failed websocket authentications by reason.
	ConnectionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leasematch_realtime_connections_rejected_total",
		Help: "Total number of rejected realtime connection attempts",
	}, []string{"reason"})
)
