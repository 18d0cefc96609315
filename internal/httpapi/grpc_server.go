package httpapi

import (
	"context"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"tacklebase.app/internal/obs"
)

// GRPCHealthServer exposes readiness over the standard gRPC health
// protocol so orchestrators can probe the service without HTTP.
type GRPCHealthServer struct {
	healthpb.UnimplementedHealthServer

	readiness readinessChecker
}

func NewGRPCHealthServer(r readinessChecker) *GRPCHealthServer {
	return &GRPCHealthServer{readiness: r}
}

// Check evaluates readiness. Failures report NOT_SERVING rather than an
// RPC error so probes can distinguish "down" from "unreachable".
func (s *GRPCHealthServer) Check(ctx context.Context, _ *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if err := s.readiness.Check(ctx); err != nil {
		obs.SetReady(false)
		return &healthpb.HealthCheckResponse{
			Status: healthpb.HealthCheckResponse_NOT_SERVING,
		}, nil
	}
	obs.SetReady(true)
	return &healthpb.HealthCheckResponse{
		Status: healthpb.HealthCheckResponse_SERVING,
	}, nil
}

func (s *GRPCHealthServer) Watch(_ *healthpb.HealthCheckRequest, _ healthpb.Health_WatchServer) error {
	return status.Error(codes.Unimplemented, "watch is not supported")
}
