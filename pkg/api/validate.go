package api

import (
	"github.com/siderolabs/discovery-api/api/v1alpha1/server/pb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tbshrst/talos-discovery/pkg/types"
)

// validateClusterID enforces the identifier length cap on the cluster ID of
// Watch and List requests.
func validateClusterID(clusterID string) error {
	if len(clusterID) > types.MaxIdentifierLength {
		return status.Error(codes.InvalidArgument, "maximum identifier length exceeded")
	}
	return nil
}

// validateUpdateRequest enforces the size and TTL caps on an update before
// it reaches the registry.
func validateUpdateRequest(req *pb.AffiliateUpdateRequest) error {
	if len(req.GetClusterId()) > types.MaxIdentifierLength ||
		len(req.GetAffiliateId()) > types.MaxIdentifierLength {
		return status.Error(codes.InvalidArgument, "maximum identifier length exceeded")
	}

	if len(req.GetAffiliateData()) > types.MaxPayloadLength {
		return status.Error(codes.InvalidArgument, "maximum payload length exceeded")
	}

	for _, endpoint := range req.GetAffiliateEndpoints() {
		if len(endpoint) > types.MaxPayloadLength {
			return status.Error(codes.InvalidArgument, "maximum payload length exceeded")
		}
	}

	ttl := req.GetTtl()
	if ttl == nil {
		return status.Error(codes.InvalidArgument, "invalid TTL")
	}

	// TTL seconds must be strictly positive and whole-second bounded;
	// negative nanos would make the duration unrepresentable.
	if ttl.GetSeconds() <= 0 || ttl.GetSeconds() > int64(types.MaxTTL.Seconds()) || ttl.GetNanos() < 0 {
		return status.Error(codes.InvalidArgument, "maximum TTL exceeded")
	}

	return nil
}
