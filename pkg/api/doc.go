/*
Package api exposes the discovery registry over gRPC.

The Server implements the Cluster service from the Talos discovery protocol
(github.com/siderolabs/discovery-api): Hello, Watch, AffiliateUpdate,
AffiliateDelete, and List. It validates every request against the protocol
limits before touching the registry, converts internal records to wire
shape, and runs one forwarding loop per watch stream.

# Request flow

	client ──▶ interceptor (log + count)
	             │
	             ▼
	       validation (size / TTL caps) ──▶ InvalidArgument
	             │
	             ▼
	       registry (single service lock)
	             │
	             ▼
	       cluster table + broadcast hub

# Watch streams

Watch lazily creates the cluster, takes a subscription whose queue already
holds the initial full-state snapshot, and forwards events to the client
until the stream context is cancelled, a send fails, or the cluster is
swept by GC (observed as end-of-stream). The subscription is released on
every exit path.

# Error mapping

Size and TTL violations surface as InvalidArgument; delete/list against an
unknown cluster as NotFound; an unresolvable peer address on Hello as
InvalidArgument. Update and Watch never return NotFound: they create the
cluster instead, so subscribers can race ahead of producers.
*/
package api
