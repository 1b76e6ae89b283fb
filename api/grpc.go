package api

import (
	"fmt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"net"
)

const ServiceName = "qubic.crowdsensing.Campaign"

// GrpcServer exposes the standard health service and server reflection.
type GrpcServer struct {
	srv    *grpc.Server
	health *health.Server
}

func NewGrpcServer() *GrpcServer {
	srv := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)
	reflection.Register(srv)

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &GrpcServer{srv: srv, health: healthServer}
}

func (s *GrpcServer) Serve(lis net.Listener) error {
	if err := s.srv.Serve(lis); err != nil {
		return fmt.Errorf("serving grpc listener: %w", err)
	}
	return nil
}

// Stop reports NOT_SERVING and drains the open calls.
func (s *GrpcServer) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
