package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"github.com/siderolabs/discovery-api/api/v1alpha1/server/pb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/tbshrst/talos-discovery/pkg/cluster"
	"github.com/tbshrst/talos-discovery/pkg/log"
	"github.com/tbshrst/talos-discovery/pkg/registry"
	"github.com/tbshrst/talos-discovery/pkg/types"
)

// Server implements the Cluster gRPC service
type Server struct {
	pb.UnimplementedClusterServer
	registry *registry.Registry
	grpc     *grpc.Server
	logger   zerolog.Logger
}

// NewServer creates a new API server backed by the given registry
func NewServer(reg *registry.Registry) *Server {
	logger := log.WithComponent("api")

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryLoggingInterceptor(logger)),
		grpc.ChainStreamInterceptor(StreamLoggingInterceptor(logger)),
	)

	return &Server{
		registry: reg,
		grpc:     grpcServer,
		logger:   logger,
	}
}

// Start starts the gRPC server
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return s.Serve(lis)
}

// Serve registers the service and serves on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	pb.RegisterClusterServer(s.grpc, s)

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC API listening")
	return s.grpc.Serve(lis)
}

// Stop stops the gRPC server, giving in-flight unary requests a grace
// period. Watch streams are long-lived, so a hard stop follows.
func (s *Server) Stop() {
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.grpc.Stop()
	}
}

// Hello answers with the caller's observed IP address in network order. The
// redirect field is reserved and stays unset.
func (s *Server) Hello(ctx context.Context, req *pb.HelloRequest) (*pb.HelloResponse, error) {
	ip, err := clientIP(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Hello with unresolvable peer address")
		return nil, status.Error(codes.InvalidArgument, "couldn't parse IP address")
	}

	return &pb.HelloResponse{
		ClientIp: ip,
	}, nil
}

// Watch streams membership events for one cluster, creating it lazily. The
// first frame is always a full-state snapshot; the stream ends when the
// client goes away or the cluster is removed by GC.
func (s *Server) Watch(req *pb.WatchRequest, stream pb.Cluster_WatchServer) error {
	if err := validateClusterID(req.GetClusterId()); err != nil {
		return err
	}

	sub := s.registry.Subscribe(req.GetClusterId())
	defer sub.Close()

	for {
		select {
		case <-stream.Context().Done():
			return status.FromContextError(stream.Context().Err()).Err()
		case ev, ok := <-sub.Events():
			if !ok {
				// Cluster removed; subscribers observe end-of-stream.
				return nil
			}

			if err := stream.Send(eventToProto(ev)); err != nil {
				s.logger.Debug().Err(err).Str("cluster_id", req.GetClusterId()).Msg("Watch send failed")
				return err
			}
		}
	}
}

// AffiliateUpdate validates the request and upserts the affiliate, creating
// the cluster in the same critical section if needed.
func (s *Server) AffiliateUpdate(ctx context.Context, req *pb.AffiliateUpdateRequest) (*pb.AffiliateUpdateResponse, error) {
	if err := validateUpdateRequest(req); err != nil {
		s.logger.Error().Err(err).Str("cluster_id", req.GetClusterId()).Msg("Rejected affiliate update")
		return nil, err
	}

	err := s.registry.UpdateAffiliate(
		req.GetClusterId(),
		req.GetAffiliateId(),
		req.GetAffiliateData(),
		req.GetAffiliateEndpoints(),
		req.GetTtl().AsDuration(),
	)
	if err != nil {
		return nil, toStatus(err)
	}

	return &pb.AffiliateUpdateResponse{}, nil
}

// AffiliateDelete removes an affiliate from an existing cluster. A missing
// affiliate is a silent success; a missing cluster is NotFound. The cluster
// stays in the registry even when emptied.
func (s *Server) AffiliateDelete(ctx context.Context, req *pb.AffiliateDeleteRequest) (*pb.AffiliateDeleteResponse, error) {
	if req.GetClusterId() == "" || req.GetAffiliateId() == "" {
		return nil, status.Error(codes.InvalidArgument, "cluster ID and affiliate ID are required")
	}

	if err := s.registry.DeleteAffiliate(req.GetClusterId(), req.GetAffiliateId()); err != nil {
		return nil, toStatus(err)
	}

	return &pb.AffiliateDeleteResponse{}, nil
}

// List returns the current membership of an existing cluster.
func (s *Server) List(ctx context.Context, req *pb.ListRequest) (*pb.ListResponse, error) {
	if err := validateClusterID(req.GetClusterId()); err != nil {
		return nil, err
	}

	affiliates, err := s.registry.ListAffiliates(req.GetClusterId())
	if err != nil {
		return nil, toStatus(err)
	}

	return &pb.ListResponse{
		Affiliates: affiliatesToProto(affiliates),
	}, nil
}

// toStatus maps registry errors onto gRPC status codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, types.ErrClusterNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrTTLMissing), errors.Is(err, types.ErrTTLOutOfRange):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// clientIP resolves the peer's IP as 4- or 16-byte octets in network order.
func clientIP(ctx context.Context) ([]byte, error) {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return nil, errors.New("no peer address")
	}

	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return nil, err
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("unparsable peer address %q", host)
	}

	if ip4 := ip.To4(); ip4 != nil {
		return ip4, nil
	}
	return ip.To16(), nil
}

// Helper functions to convert internal records to wire shape

func affiliateToProto(a *types.Affiliate) *pb.Affiliate {
	return &pb.Affiliate{
		Id:        a.ID,
		Data:      a.Data,
		Endpoints: a.Endpoints,
	}
}

func affiliatesToProto(affiliates []*types.Affiliate) []*pb.Affiliate {
	result := make([]*pb.Affiliate, 0, len(affiliates))
	for _, a := range affiliates {
		result = append(result, affiliateToProto(a))
	}
	return result
}

func eventToProto(ev *cluster.Event) *pb.WatchResponse {
	return &pb.WatchResponse{
		Affiliates: affiliatesToProto(ev.Affiliates),
		Deleted:    ev.Deleted,
	}
}
