package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const ServiceName = "payment.v1.PaymentService"

// Probe reports whether a dependency the service needs is reachable.
type Probe func(ctx context.Context) error

// Server exposes the standard gRPC health protocol for orchestration probes.
type Server struct {
	log    *slog.Logger
	health *health.Server
	probes []Probe
}

func NewServer(log *slog.Logger, probes ...Probe) *Server {
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{log: log, health: hs, probes: probes}
}

func (s *Server) Register(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, s.health)
}

// Check runs every probe once and publishes the aggregate status.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for _, probe := range s.probes {
		if err := probe(ctx); err != nil {
			s.log.Warn("health probe failed", "err", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
			break
		}
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
	return status
}

// Watch re-runs the probes every interval until ctx ends, then reports
// NOT_SERVING so draining clients stop routing here.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		probeCtx, cancel := context.WithTimeout(ctx, interval)
		s.Check(probeCtx)
		cancel()

		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-t.C:
		}
	}
}

func Run(addr string, srv *Server) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := grpc.NewServer()
	srv.Register(gs)
	go func() {
		_ = gs.Serve(lis)
	}()
	return gs, nil
}
