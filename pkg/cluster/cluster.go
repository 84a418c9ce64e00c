package cluster

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/tbshrst/talos-discovery/pkg/log"
	"github.com/tbshrst/talos-discovery/pkg/types"
)

// Cluster is one tenant of the registry: an affiliate table keyed by
// affiliate ID plus the hub broadcasting watch events for this cluster.
//
// Cluster methods do not lock. The service registry serializes all access
// under its single mutex; only the hub has internal synchronization because
// watch forwarders detach from it without holding the registry lock.
type Cluster struct {
	id         string
	affiliates map[string]*types.Affiliate
	hub        *Hub
	logger     zerolog.Logger
}

// New creates an empty cluster with the given ID.
func New(id string) *Cluster {
	logger := log.WithClusterID(id)
	return &Cluster{
		id:         id,
		affiliates: make(map[string]*types.Affiliate),
		hub:        newHub(logger),
		logger:     logger,
	}
}

// NewFromSnapshot rebuilds a cluster from a persisted view. The hub starts
// empty; subscriptions are never restored.
func NewFromSnapshot(snapshot *types.ClusterSnapshot) *Cluster {
	c := New(snapshot.ID)
	for id, affiliate := range snapshot.Affiliates {
		c.affiliates[id] = affiliate
	}
	return c
}

// ID returns the cluster ID.
func (c *Cluster) ID() string {
	return c.id
}

// AddAffiliate upserts an affiliate with expiration now+ttl (last writer
// wins on the affiliate ID) and publishes the resulting full membership to
// all watchers.
func (c *Cluster) AddAffiliate(affiliateID string, data []byte, endpoints [][]byte, ttl time.Duration) error {
	if ttl <= 0 || ttl > types.MaxTTL {
		c.logger.Error().Dur("ttl", ttl).Msg("Rejected affiliate TTL")
		return types.ErrTTLOutOfRange
	}

	affiliate := types.NewAffiliate(affiliateID, data, endpoints, time.Now().Add(ttl))
	c.affiliates[affiliateID] = affiliate

	c.logger.Info().
		Str("affiliate_id", affiliateID).
		Int("affiliates", len(c.affiliates)).
		Time("expiration", affiliate.Expiration).
		Msg("Added affiliate")

	c.BroadcastState()
	return nil
}

// Affiliate returns the affiliate with the given ID, or nil.
func (c *Cluster) Affiliate(affiliateID string) *types.Affiliate {
	return c.affiliates[affiliateID]
}

// DeleteAffiliate removes an affiliate and returns the prior value, or nil
// if it was absent. It publishes nothing; the caller decides whether the
// removal is worth a broadcast.
func (c *Cluster) DeleteAffiliate(affiliateID string) *types.Affiliate {
	affiliate, ok := c.affiliates[affiliateID]
	if !ok {
		return nil
	}

	c.logger.Debug().Str("affiliate_id", affiliateID).Msg("Removing affiliate")
	delete(c.affiliates, affiliateID)
	return affiliate
}

// Affiliates returns a snapshot of the current membership in unspecified
// order.
func (c *Cluster) Affiliates() []*types.Affiliate {
	result := make([]*types.Affiliate, 0, len(c.affiliates))
	for _, affiliate := range c.affiliates {
		result = append(result, affiliate)
	}
	return result
}

// Len returns the number of affiliates.
func (c *Cluster) Len() int {
	return len(c.affiliates)
}

// IsEmpty reports whether the cluster has no affiliates. An empty cluster is
// removed from the registry at the end of a GC sweep.
func (c *Cluster) IsEmpty() bool {
	return len(c.affiliates) == 0
}

// Subscribe creates a new watch subscription whose queue already holds one
// full-state event reflecting the membership at the time of the call.
func (c *Cluster) Subscribe() *Subscription {
	return c.hub.Subscribe(&Event{Affiliates: c.Affiliates()})
}

// BroadcastState publishes the entire current membership as a single
// deleted=false event.
func (c *Cluster) BroadcastState() {
	c.hub.Publish(&Event{Affiliates: c.Affiliates()})
}

// GC removes every affiliate whose expiration has passed and publishes the
// removed batch as one deleted=true event. No event is published when
// nothing expired. Returns the number of removed affiliates.
func (c *Cluster) GC(now time.Time) int {
	var expired []*types.Affiliate
	for _, affiliate := range c.affiliates {
		if affiliate.Expired(now) {
			expired = append(expired, affiliate)
		}
	}

	for _, affiliate := range expired {
		c.DeleteAffiliate(affiliate.ID)
	}

	c.logger.Info().
		Int("removed", len(expired)).
		Int("remaining", len(c.affiliates)).
		Msg("GC sweep for cluster")

	if len(expired) > 0 {
		c.hub.Publish(&Event{Affiliates: expired, Deleted: true})
	}

	return len(expired)
}

// Snapshot returns the serializable view of this cluster.
func (c *Cluster) Snapshot() *types.ClusterSnapshot {
	affiliates := make(map[string]*types.Affiliate, len(c.affiliates))
	for id, affiliate := range c.affiliates {
		affiliates[id] = affiliate
	}

	return &types.ClusterSnapshot{
		ID:         c.id,
		Affiliates: affiliates,
	}
}

// Shutdown terminates every watch subscription. Called when the registry
// drops the cluster; a later incarnation under the same ID starts with a
// fresh hub.
func (c *Cluster) Shutdown() {
	c.hub.Close()
}
