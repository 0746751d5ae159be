package grpcx

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server exposes liveness over gRPC for the platform's service mesh.
// Messaging RPCs live on the websocket and HTTP surfaces; the gRPC port
// carries health checks so orchestration can probe the process without
// speaking HTTP.
type Server struct {
	health *health.Server
}

func NewServer() *Server {
	return &Server{health: health.NewServer()}
}

func Register(grpcServer *grpc.Server, s *Server) {
	grpc_health_v1.RegisterHealthServer(grpcServer, s.health)
	reflection.Register(grpcServer)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
}

// Shutdown flips the health status so load balancers drain the instance
// before the listener closes.
func (s *Server) Shutdown(_ context.Context) {
	s.health.Shutdown()
}
