/*
Package metrics provides Prometheus metrics for the discovery service.

The metrics package exposes gauges for live registry state (clusters,
affiliates, watch subscribers) and counters for garbage collection sweeps,
dropped watch events, backup exports, and gRPC request volume. Collectors are
package-level and registered at init; the /metrics endpoint is served by the
handler returned from Handler().

# Usage

Recording metrics:

	metrics.ClustersTotal.Set(float64(len(clusters)))
	metrics.GCAffiliatesRemovedTotal.Add(float64(removed))
	metrics.RequestsTotal.WithLabelValues("AffiliateUpdate").Inc()

Serving the endpoint:

	http.Handle("/metrics", metrics.Handler())
*/
package metrics
