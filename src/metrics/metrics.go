// Package metrics holds the Prometheus collectors exported by cisync.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var CacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cisync_cache_lookups_total",
		Help: "Provider cache lookups by namespace and result (hit, miss, stale).",
	},
	[]string{"namespace", "result"},
)

var Syncs = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cisync_syncs_total",
		Help: "Sync orchestrator calls by mode and outcome.",
	},
	[]string{"mode", "outcome"},
)

var RunsPersisted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cisync_runs_persisted_total",
		Help: "Workflow runs written to the store.",
	},
	[]string{"build"},
)

var Hydrations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cisync_hydrations_total",
		Help: "Test result hydration attempts by outcome (parsed, exists, empty, error).",
	},
	[]string{"outcome"},
)

var ChangeChecks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cisync_change_checks_total",
		Help: "Change detector decisions (unchanged, no_commit, synced, sync_failed, lookup_failed).",
	},
	[]string{"result"},
)

var SyncDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "cisync_sync_duration_seconds",
		Buckets: []float64{
			0.5,
			1,
			2.5,
			5,
			10,
			30,
			60,
			120,
			300,
		},
	},
	[]string{"mode"},
)

var BrokerMessages = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cisync_broker_messages_total",
		Help: "Broker messages by topic and direction (published, consumed, dropped).",
	},
	[]string{"topic", "direction"},
)

var TotalRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cisync_http_requests_total",
		Help: "HTTP API requests by route, status code and method.",
	},
	[]string{"path", "code", "method"},
)

var HTTPDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "cisync_http_response_time_seconds",
		Help: "HTTP API response time by route, status code and method.",
	},
	[]string{"path", "code", "method"},
)

var registerOnce sync.Once

// RegisterAll registers every collector with the default registry. Safe to call more than once.
func RegisterAll() {
	registerOnce.Do(func() {
		prometheus.Register(CacheLookups)
		prometheus.Register(Syncs)
		prometheus.Register(RunsPersisted)
		prometheus.Register(Hydrations)
		prometheus.Register(ChangeChecks)
		prometheus.Register(SyncDuration)
		prometheus.Register(BrokerMessages)
		prometheus.Register(TotalRequests)
		prometheus.Register(HTTPDuration)
	})
}
