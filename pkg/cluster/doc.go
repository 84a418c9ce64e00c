/*
Package cluster implements the per-cluster affiliate table and watch fan-out.

A Cluster owns the affiliates published under one cluster ID and a broadcast
hub that delivers membership events to every active watch subscription. The
two event shapes are asymmetric on purpose: additions and explicit deletions
are published as the full current membership (deleted=false), while garbage
collection publishes only the expired batch (deleted=true). Clients rely on
a deleted=false payload being the complete set.

# Architecture

	┌─────────────────── CLUSTER ───────────────────────┐
	│                                                    │
	│  ┌─────────────────────────────────┐              │
	│  │        Affiliate Table           │              │
	│  │  affiliate-id → Affiliate        │              │
	│  │  (upsert, delete, GC by TTL)     │              │
	│  └──────────────┬──────────────────┘              │
	│                 │ state change                     │
	│  ┌──────────────▼──────────────────┐              │
	│  │            Hub                   │              │
	│  │  - non-blocking publish          │              │
	│  │  - per-subscriber queue (64)     │              │
	│  │  - drop-oldest on overflow       │              │
	│  └──────┬───────────┬──────────────┘              │
	│         │           │                              │
	│    Subscription  Subscription  ...                 │
	│    (watch stream forwarders)                       │
	└────────────────────────────────────────────────────┘

# Locking

Cluster methods are not self-synchronized: the service registry serializes
all table access under its single mutex. The Hub carries its own lock only
because watch forwarders detach concurrently without holding the registry
lock, and because a GC sweep must be able to terminate all subscribers when
it drops the cluster.

# Slow subscribers

Publish never blocks the producer. A subscriber that cannot keep up loses
the oldest undelivered events and resumes with the newest state; other
subscribers are unaffected and per-subscriber ordering is preserved.
*/
package cluster
