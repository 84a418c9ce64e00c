package api

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"

	"github.com/tbshrst/talos-discovery/pkg/metrics"
)

// UnaryLoggingInterceptor logs every unary RPC with its peer address and
// counts it per method.
func UnaryLoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		method := methodName(info.FullMethod)
		metrics.RequestsTotal.WithLabelValues(method).Inc()

		logger.Info().
			Str("method", method).
			Str("peer", peerAddr(ctx)).
			Msg("Cluster node request")

		return handler(ctx, req)
	}
}

// StreamLoggingInterceptor is the streaming counterpart of
// UnaryLoggingInterceptor.
func StreamLoggingInterceptor(logger zerolog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		method := methodName(info.FullMethod)
		metrics.RequestsTotal.WithLabelValues(method).Inc()

		logger.Info().
			Str("method", method).
			Str("peer", peerAddr(ss.Context())).
			Msg("Cluster node request")

		return handler(srv, ss)
	}
}

// methodName extracts the bare method from a full path such as
// "/sidero.discovery.server.Cluster/AffiliateUpdate".
func methodName(fullMethod string) string {
	parts := strings.Split(fullMethod, "/")
	return parts[len(parts)-1]
}

func peerAddr(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	return p.Addr.String()
}
