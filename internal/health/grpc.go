package health

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported next to the overall "" status.
const ServiceName = "signal-gateway"

// GRPCServer exposes grpc.health.v1.Health, kept in sync with the database probe.
type GRPCServer struct {
	srv      *grpc.Server
	health   *grpchealth.Server
	checker  *Checker
	interval time.Duration
	log      zerolog.Logger
}

func NewGRPCServer(checker *Checker, interval time.Duration, log zerolog.Logger) *GRPCServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	s := &GRPCServer{
		srv:      grpc.NewServer(),
		health:   grpchealth.NewServer(),
		checker:  checker,
		interval: interval,
		log:      log,
	}
	healthpb.RegisterHealthServer(s.srv, s.health)
	return s
}

// Serve blocks serving gRPC on lis.
func (s *GRPCServer) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

// Watch probes immediately and then every interval until ctx is done.
func (s *GRPCServer) Watch(ctx context.Context) {
	s.refresh(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *GRPCServer) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if st := s.checker.Check(ctx); !st.Healthy() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.log.Warn().Str("database", st.Database).Msg("health probe failed")
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Stop marks every service as not serving and stops the server gracefully.
func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
