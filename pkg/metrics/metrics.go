package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	ClustersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "discovery_clusters_total",
			Help: "Current number of clusters in the registry",
		},
	)

	AffiliatesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "discovery_affiliates_total",
			Help: "Current number of affiliates across all clusters",
		},
	)

	WatchSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "discovery_watch_subscribers",
			Help: "Current number of active watch subscriptions",
		},
	)

	// GC metrics
	GCAffiliatesRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_gc_affiliates_removed_total",
			Help: "Total number of affiliates removed by garbage collection",
		},
	)

	GCClustersRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_gc_clusters_removed_total",
			Help: "Total number of empty clusters removed by garbage collection",
		},
	)

	// Broadcast metrics
	WatchEventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_watch_events_dropped_total",
			Help: "Total number of watch events dropped for slow subscribers",
		},
	)

	// Backup metrics
	BackupRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_backup_runs_total",
			Help: "Total number of successful backup exports",
		},
	)

	BackupFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_backup_failures_total",
			Help: "Total number of failed backup exports",
		},
	)

	// API metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_grpc_requests_total",
			Help: "Total number of gRPC requests by method",
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		ClustersTotal,
		AffiliatesTotal,
		WatchSubscribers,
		GCAffiliatesRemovedTotal,
		GCClustersRemovedTotal,
		WatchEventsDroppedTotal,
		BackupRunsTotal,
		BackupFailuresTotal,
		RequestsTotal,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
