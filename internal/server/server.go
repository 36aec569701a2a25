package server

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/gridduel/duel-server-go/internal/config"
)

// NewGRPCServer builds a gRPC server with the duel service and the standard
// health service registered. The returned health server reports SERVING for
// the duel service until the caller shuts it down.
func NewGRPCServer(cfg *config.Config, svc DuelServiceServer, logger *zap.Logger, extra ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
			AdminInterceptor(cfg.Auth.AdminPasswordHash, logger),
		),
	}
	if cfg.Server.GRPC.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.Server.GRPC.MaxConcurrentStreams)))
	}

	grpcServer := grpc.NewServer(append(opts, extra...)...)
	RegisterDuelServiceServer(grpcServer, svc)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return grpcServer, healthServer
}
