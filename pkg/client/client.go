package client

import (
	"context"
	"fmt"

	"github.com/siderolabs/discovery-api/api/v1alpha1/server/pb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Client wraps the discovery gRPC client for CLI usage. The transport is
// plaintext; payloads are end-to-end encrypted by the caller.
type Client struct {
	conn   *grpc.ClientConn
	client pb.ClusterClient
}

// NewClient connects to a discovery server
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return &Client{
		conn:   conn,
		client: pb.NewClusterClient(conn),
	}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Hello announces the client and returns its IP address as observed by the
// server.
func (c *Client) Hello(ctx context.Context, clusterID, clientVersion string) ([]byte, error) {
	resp, err := c.client.Hello(ctx, &pb.HelloRequest{
		ClusterId:     clusterID,
		ClientVersion: clientVersion,
	})
	if err != nil {
		return nil, err
	}

	return resp.GetClientIp(), nil
}

// AffiliateUpdate publishes an affiliate record with the given TTL in
// seconds.
func (c *Client) AffiliateUpdate(ctx context.Context, clusterID, affiliateID string, data []byte, endpoints [][]byte, ttlSeconds int64) error {
	_, err := c.client.AffiliateUpdate(ctx, &pb.AffiliateUpdateRequest{
		ClusterId:          clusterID,
		AffiliateId:        affiliateID,
		AffiliateData:      data,
		AffiliateEndpoints: endpoints,
		Ttl:                &durationpb.Duration{Seconds: ttlSeconds},
	})
	return err
}

// AffiliateDelete removes an affiliate record
func (c *Client) AffiliateDelete(ctx context.Context, clusterID, affiliateID string) error {
	_, err := c.client.AffiliateDelete(ctx, &pb.AffiliateDeleteRequest{
		ClusterId:   clusterID,
		AffiliateId: affiliateID,
	})
	return err
}

// List returns the cluster's current membership
func (c *Client) List(ctx context.Context, clusterID string) ([]*pb.Affiliate, error) {
	resp, err := c.client.List(ctx, &pb.ListRequest{ClusterId: clusterID})
	if err != nil {
		return nil, err
	}

	return resp.GetAffiliates(), nil
}

// Watch opens a membership event stream for the cluster
func (c *Client) Watch(ctx context.Context, clusterID string) (pb.Cluster_WatchClient, error) {
	return c.client.Watch(ctx, &pb.WatchRequest{ClusterId: clusterID})
}
