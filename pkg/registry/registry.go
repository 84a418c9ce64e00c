package registry

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbshrst/talos-discovery/pkg/cluster"
	"github.com/tbshrst/talos-discovery/pkg/log"
	"github.com/tbshrst/talos-discovery/pkg/metrics"
	"github.com/tbshrst/talos-discovery/pkg/types"
)

// Registry is the top-level table of clusters. A single mutex guards the
// cluster map and, while held, the state of every cluster in it. The
// critical sections are short; the coarse lock removes all cross-cluster
// races.
type Registry struct {
	mu       sync.Mutex
	clusters map[string]*cluster.Cluster
	logger   zerolog.Logger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		clusters: make(map[string]*cluster.Cluster),
		logger:   log.WithComponent("registry"),
	}
}

// getOrCreate returns the cluster, creating it lazily. Caller holds r.mu.
func (r *Registry) getOrCreate(clusterID string) *cluster.Cluster {
	if c, ok := r.clusters[clusterID]; ok {
		return c
	}

	r.logger.Info().Str("cluster_id", clusterID).Msg("Creating new cluster")
	c := cluster.New(clusterID)
	r.clusters[clusterID] = c
	return c
}

// UpdateAffiliate upserts an affiliate into the cluster, creating the
// cluster if needed, and broadcasts the new membership to its watchers.
func (r *Registry) UpdateAffiliate(clusterID, affiliateID string, data []byte, endpoints [][]byte, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.getOrCreate(clusterID).AddAffiliate(affiliateID, data, endpoints, ttl); err != nil {
		return err
	}

	r.updateGauges()
	return nil
}

// DeleteAffiliate removes an affiliate from an existing cluster and
// broadcasts the remaining membership. Deleting from an unknown cluster
// returns types.ErrClusterNotFound; deleting an unknown affiliate from a
// known cluster succeeds silently. The cluster itself is left in place even
// when emptied; removal is the garbage collector's job.
func (r *Registry) DeleteAffiliate(clusterID, affiliateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clusters[clusterID]
	if !ok {
		r.logger.Error().Str("cluster_id", clusterID).Msg("Cluster not found")
		return types.ErrClusterNotFound
	}

	if c.DeleteAffiliate(affiliateID) == nil {
		r.logger.Debug().
			Str("cluster_id", clusterID).
			Str("affiliate_id", affiliateID).
			Msg("Affiliate does not exist")
		return nil
	}

	r.logger.Info().
		Str("cluster_id", clusterID).
		Str("affiliate_id", affiliateID).
		Msg("Deleted affiliate")

	c.BroadcastState()
	r.updateGauges()
	return nil
}

// ListAffiliates returns the membership of an existing cluster.
func (r *Registry) ListAffiliates(clusterID string) ([]*types.Affiliate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clusters[clusterID]
	if !ok {
		return nil, types.ErrClusterNotFound
	}

	return c.Affiliates(), nil
}

// Subscribe opens a watch subscription on the cluster, creating it lazily so
// subscribers can race ahead of producers. The subscription's queue already
// holds one full-state event taken under the lock, so any update completing
// before Subscribe returns is visible either in that snapshot or as a
// subsequent event.
func (r *Registry) Subscribe(clusterID string) *cluster.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := r.getOrCreate(clusterID).Subscribe()
	r.updateGauges()
	return sub
}

// Sweep runs one garbage collection cycle: every cluster expires its
// overdue affiliates, then clusters left empty are dropped and their watch
// streams terminated.
func (r *Registry) Sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removedAffiliates := 0
	for _, c := range r.clusters {
		removedAffiliates += c.GC(now)
	}

	before := len(r.clusters)
	for id, c := range r.clusters {
		if c.IsEmpty() {
			c.Shutdown()
			delete(r.clusters, id)
		}
	}
	removedClusters := before - len(r.clusters)

	r.logger.Info().
		Int("removed_affiliates", removedAffiliates).
		Int("removed_clusters", removedClusters).
		Int("remaining_clusters", len(r.clusters)).
		Msg("GC sweep finished")

	metrics.GCAffiliatesRemovedTotal.Add(float64(removedAffiliates))
	metrics.GCClustersRemovedTotal.Add(float64(removedClusters))
	r.updateGauges()
}

// Export returns a serializable view of every cluster.
func (r *Registry) Export() []*types.ClusterSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshots := make([]*types.ClusterSnapshot, 0, len(r.clusters))
	for _, c := range r.clusters {
		snapshots = append(snapshots, c.Snapshot())
	}
	return snapshots
}

// Restore inserts the persisted clusters under their own IDs. Expired
// affiliates are kept as-is; the next GC sweep cleans them up.
func (r *Registry) Restore(snapshots []*types.ClusterSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, snapshot := range snapshots {
		r.clusters[snapshot.ID] = cluster.NewFromSnapshot(snapshot)
	}

	r.logger.Info().Int("clusters", len(snapshots)).Msg("Clusters restored")
	r.updateGauges()
}

// ClusterCount returns the number of clusters in the registry.
func (r *Registry) ClusterCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clusters)
}

// updateGauges refreshes the registry gauges. Caller holds r.mu; affiliate
// counts are small so the recount is cheap.
func (r *Registry) updateGauges() {
	affiliates := 0
	for _, c := range r.clusters {
		affiliates += c.Len()
	}

	metrics.ClustersTotal.Set(float64(len(r.clusters)))
	metrics.AffiliatesTotal.Set(float64(affiliates))
}
