/*
Package registry implements the top-level cluster table of the discovery
service.

The Registry maps cluster IDs to clusters and owns the single service-wide
mutex: every mutating and reading path (affiliate update/delete/list, watch
subscription, GC sweep, backup export/restore) runs under it. Clusters are
created lazily on first write or first watch; only delete and list treat an
absent cluster as an error. Empty clusters are removed at the end of a GC
sweep, which also terminates their watch streams.

Holding the lock never spans an unbounded wait: broadcast publishing is
non-blocking and the initial watch snapshot is buffered.
*/
package registry
