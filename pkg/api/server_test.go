package api

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/siderolabs/discovery-api/api/v1alpha1/server/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/tbshrst/talos-discovery/pkg/log"
	"github.com/tbshrst/talos-discovery/pkg/registry"
	"github.com/tbshrst/talos-discovery/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel})
	os.Exit(m.Run())
}

// testServer serves the API over an in-memory listener and returns a
// connected client.
func testServer(t *testing.T) pb.ClusterClient {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := NewServer(registry.New())

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return pb.NewClusterClient(conn)
}

func update(clusterID, affiliateID string, data []byte, endpoints [][]byte, ttlSeconds int64) *pb.AffiliateUpdateRequest {
	return &pb.AffiliateUpdateRequest{
		ClusterId:          clusterID,
		AffiliateId:        affiliateID,
		AffiliateData:      data,
		AffiliateEndpoints: endpoints,
		Ttl:                &durationpb.Duration{Seconds: ttlSeconds},
	}
}

func TestBasicUpsert(t *testing.T) {
	client := testServer(t)
	ctx := t.Context()

	_, err := client.AffiliateUpdate(ctx, update("x", "a1", []byte{0x01}, [][]byte{{0xAA}}, 60))
	require.NoError(t, err)

	resp, err := client.List(ctx, &pb.ListRequest{ClusterId: "x"})
	require.NoError(t, err)
	require.Len(t, resp.GetAffiliates(), 1)

	affiliate := resp.GetAffiliates()[0]
	assert.Equal(t, "a1", affiliate.GetId())
	assert.Equal(t, []byte{0x01}, affiliate.GetData())
	assert.Equal(t, [][]byte{{0xAA}}, affiliate.GetEndpoints())
}

func TestListUnknownCluster(t *testing.T) {
	client := testServer(t)

	_, err := client.List(t.Context(), &pb.ListRequest{ClusterId: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestDeleteUnknownCluster(t *testing.T) {
	client := testServer(t)

	_, err := client.AffiliateDelete(t.Context(), &pb.AffiliateDeleteRequest{
		ClusterId:   "missing",
		AffiliateId: "a1",
	})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestDeleteMissingFields(t *testing.T) {
	client := testServer(t)

	_, err := client.AffiliateDelete(t.Context(), &pb.AffiliateDeleteRequest{ClusterId: "x"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestLimitsRejection(t *testing.T) {
	client := testServer(t)
	ctx := t.Context()

	_, err := client.AffiliateUpdate(ctx, update("x", "a1", make([]byte, types.MaxPayloadLength+1), nil, 60))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	// No state change: the cluster was never created.
	_, err = client.List(ctx, &pb.ListRequest{ClusterId: "x"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestTTLRejection(t *testing.T) {
	client := testServer(t)
	ctx := t.Context()

	for _, ttl := range []*durationpb.Duration{nil, {Seconds: 0}, {Seconds: -5}, {Seconds: 7201}} {
		req := update("x", "a1", nil, nil, 0)
		req.Ttl = ttl

		_, err := client.AffiliateUpdate(ctx, req)
		assert.Equalf(t, codes.InvalidArgument, status.Code(err), "ttl %v", ttl)
	}
}

func TestWatchInitialSnapshotAndLiveEvent(t *testing.T) {
	client := testServer(t)
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	stream, err := client.Watch(ctx, &pb.WatchRequest{ClusterId: "y"})
	require.NoError(t, err)

	// First event: empty full-state snapshot of the lazily created cluster.
	resp, err := stream.Recv()
	require.NoError(t, err)
	assert.False(t, resp.GetDeleted())
	assert.Empty(t, resp.GetAffiliates())

	_, err = client.AffiliateUpdate(ctx, update("y", "a1", []byte{0x01}, nil, 60))
	require.NoError(t, err)

	resp, err = stream.Recv()
	require.NoError(t, err)
	assert.False(t, resp.GetDeleted())
	require.Len(t, resp.GetAffiliates(), 1)
	assert.Equal(t, "a1", resp.GetAffiliates()[0].GetId())
}

func TestWatchEstablishedAfterUpdates(t *testing.T) {
	client := testServer(t)
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	_, err := client.AffiliateUpdate(ctx, update("x", "a1", nil, nil, 60))
	require.NoError(t, err)
	_, err = client.AffiliateUpdate(ctx, update("x", "a2", nil, nil, 60))
	require.NoError(t, err)

	stream, err := client.Watch(ctx, &pb.WatchRequest{ClusterId: "x"})
	require.NoError(t, err)

	resp, err := stream.Recv()
	require.NoError(t, err)
	assert.False(t, resp.GetDeleted())
	assert.Len(t, resp.GetAffiliates(), 2)
}

func TestDeleteNotifiesWatchersWithRemainingSet(t *testing.T) {
	client := testServer(t)
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	_, err := client.AffiliateUpdate(ctx, update("z", "a1", nil, nil, 60))
	require.NoError(t, err)
	_, err = client.AffiliateUpdate(ctx, update("z", "a2", nil, nil, 60))
	require.NoError(t, err)

	stream, err := client.Watch(ctx, &pb.WatchRequest{ClusterId: "z"})
	require.NoError(t, err)

	resp, err := stream.Recv()
	require.NoError(t, err)
	require.Len(t, resp.GetAffiliates(), 2)

	_, err = client.AffiliateDelete(ctx, &pb.AffiliateDeleteRequest{
		ClusterId:   "z",
		AffiliateId: "a1",
	})
	require.NoError(t, err)

	// Full-state snapshot of the remaining membership, not a delta.
	resp, err = stream.Recv()
	require.NoError(t, err)
	assert.False(t, resp.GetDeleted())
	require.Len(t, resp.GetAffiliates(), 1)
	assert.Equal(t, "a2", resp.GetAffiliates()[0].GetId())
}

func TestWatchOversizedClusterID(t *testing.T) {
	client := testServer(t)
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	oversized := make([]byte, types.MaxIdentifierLength+1)
	for i := range oversized {
		oversized[i] = 'a'
	}

	stream, err := client.Watch(ctx, &pb.WatchRequest{ClusterId: string(oversized)})
	require.NoError(t, err)

	_, err = stream.Recv()
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHelloOverNonTCPTransport(t *testing.T) {
	client := testServer(t)

	// bufconn addresses carry no IP, which surfaces as the unresolvable
	// peer error.
	_, err := client.Hello(t.Context(), &pb.HelloRequest{ClusterId: "x", ClientVersion: "v1"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
