package api

import (
	"strings"
	"testing"

	"github.com/siderolabs/discovery-api/api/v1alpha1/server/pb"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/tbshrst/talos-discovery/pkg/types"
)

func validRequest() *pb.AffiliateUpdateRequest {
	return &pb.AffiliateUpdateRequest{
		ClusterId:          "x",
		AffiliateId:        "a1",
		AffiliateData:      []byte{0x01},
		AffiliateEndpoints: [][]byte{{0xAA}},
		Ttl:                &durationpb.Duration{Seconds: 60},
	}
}

func TestValidateClusterID(t *testing.T) {
	assert.NoError(t, validateClusterID("x"))
	assert.NoError(t, validateClusterID(strings.Repeat("a", types.MaxIdentifierLength)))

	err := validateClusterID(strings.Repeat("a", types.MaxIdentifierLength+1))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestValidateUpdateRequest(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*pb.AffiliateUpdateRequest)
		valid  bool
	}{
		{
			name:   "valid",
			mutate: func(r *pb.AffiliateUpdateRequest) {},
			valid:  true,
		},
		{
			name: "empty data and endpoints",
			mutate: func(r *pb.AffiliateUpdateRequest) {
				r.AffiliateData = nil
				r.AffiliateEndpoints = nil
			},
			valid: true,
		},
		{
			name: "data at cap",
			mutate: func(r *pb.AffiliateUpdateRequest) {
				r.AffiliateData = make([]byte, types.MaxPayloadLength)
			},
			valid: true,
		},
		{
			name: "ttl at cap",
			mutate: func(r *pb.AffiliateUpdateRequest) {
				r.Ttl = &durationpb.Duration{Seconds: 7200}
			},
			valid: true,
		},
		{
			name: "oversized cluster id",
			mutate: func(r *pb.AffiliateUpdateRequest) {
				r.ClusterId = strings.Repeat("a", types.MaxIdentifierLength+1)
			},
		},
		{
			name: "oversized affiliate id",
			mutate: func(r *pb.AffiliateUpdateRequest) {
				r.AffiliateId = strings.Repeat("a", types.MaxIdentifierLength+1)
			},
		},
		{
			name: "oversized data",
			mutate: func(r *pb.AffiliateUpdateRequest) {
				r.AffiliateData = make([]byte, types.MaxPayloadLength+1)
			},
		},
		{
			name: "oversized endpoint",
			mutate: func(r *pb.AffiliateUpdateRequest) {
				r.AffiliateEndpoints = [][]byte{make([]byte, types.MaxPayloadLength+1)}
			},
		},
		{
			name: "missing ttl",
			mutate: func(r *pb.AffiliateUpdateRequest) {
				r.Ttl = nil
			},
		},
		{
			name: "zero ttl seconds",
			mutate: func(r *pb.AffiliateUpdateRequest) {
				r.Ttl = &durationpb.Duration{Seconds: 0, Nanos: 500_000_000}
			},
		},
		{
			name: "negative ttl",
			mutate: func(r *pb.AffiliateUpdateRequest) {
				r.Ttl = &durationpb.Duration{Seconds: -1}
			},
		},
		{
			name: "ttl above cap",
			mutate: func(r *pb.AffiliateUpdateRequest) {
				r.Ttl = &durationpb.Duration{Seconds: 7201}
			},
		},
		{
			name: "negative ttl nanos",
			mutate: func(r *pb.AffiliateUpdateRequest) {
				r.Ttl = &durationpb.Duration{Seconds: 60, Nanos: -1}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			err := validateUpdateRequest(req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, codes.InvalidArgument, status.Code(err))
			}
		})
	}
}
