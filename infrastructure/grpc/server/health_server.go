package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported to health checkers besides the overall "" service.
const ServiceName = "gossip"

// Probe returns an error when a dependency is not usable.
type Probe func() error

// HealthServer publishes the process health over the standard gRPC health protocol.
// Its status follows the probes it runs on a fixed interval.
type HealthServer struct {
	log      *slog.Logger
	health   *health.Server
	probes   map[string]Probe
	interval time.Duration
}

func NewHealthServer(log *slog.Logger, interval time.Duration, probes map[string]Probe) *HealthServer {
	return &HealthServer{
		log:      log,
		health:   health.NewServer(),
		probes:   probes,
		interval: interval,
	}
}

func (s *HealthServer) Register(server *grpc.Server) {
	healthpb.RegisterHealthServer(server, s.health)
}

func (s *HealthServer) Run(ctx context.Context) error {
	s.Check()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Check()
		}
	}
}

// Check runs every probe once and updates the served status.
func (s *HealthServer) Check() {
	status := healthpb.HealthCheckResponse_SERVING
	for name, probe := range s.probes {
		if err := probe(); err != nil {
			s.log.Warn("Health probe failed", "probe", name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Shutdown reports NOT_SERVING to every watcher, used before stopping the server.
func (s *HealthServer) Shutdown() {
	s.health.Shutdown()
}
