// Package grpcapi exposes the gRPC health and reflection services used by
// load balancers and grpcurl.
package grpcapi

import (
	"net"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"interview-assistant-service/internal/observability"
)

// ServiceName is the health service name probed for the interview API.
const ServiceName = "interview.assistant.InterviewService"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// New builds a gRPC server with health and reflection registered. Both
// services start NOT_SERVING until SetServing(true).
func New() *Server {
	g := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor()),
		grpc.StreamInterceptor(observability.StreamServerInterceptor()),
	)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(g)

	return &Server{grpc: g, health: hs}
}

// SetServing flips the reported health of the server and the interview
// service.
func (s *Server) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve blocks accepting connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	log.Info().Str("addr", lis.Addr().String()).Msg("Starting gRPC health server")
	if err := s.grpc.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Stop reports NOT_SERVING and drains open streams.
func (s *Server) Stop() {
	log.Info().Msg("Shutting down gRPC server")
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
