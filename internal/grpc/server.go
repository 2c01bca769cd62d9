// Package grpc exposes the proxy, hub and orchestrator over gRPC and provides
// the matching clients.
package grpc

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// NewServer creates a gRPC server that logs every call at debug level and
// failed calls at warn level.
func NewServer(logger hclog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(loggingInterceptor(logger))}, opts...)
	return grpc.NewServer(opts...)
}

func loggingInterceptor(logger hclog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Warn("rpc failed", "method", info.FullMethod, "code", status.Code(err), "error", err, "took", time.Since(start))
			return resp, err
		}
		logger.Debug("rpc", "method", info.FullMethod, "took", time.Since(start))
		return resp, nil
	}
}

// dial creates a lazily connected client. Plaintext is the default; callers
// may override the transport credentials through opts.
func dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	return grpc.NewClient(addr, opts...)
}
