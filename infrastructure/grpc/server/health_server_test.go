package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthServer_Follows_Probes(t *testing.T) {
	req := require.New(t)
	healthy := true
	health := NewHealthServer(logs.GetLoggerFromLevel(slog.LevelDebug), time.Hour, map[string]Probe{
		"store": func() error {
			if !healthy {
				return fmt.Errorf("store closed")
			}
			return nil
		},
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	grpcServer := grpc.NewServer()
	health.Register(grpcServer)
	go func() { _ = grpcServer.Serve(listener) }()
	defer grpcServer.Stop()

	conn, err := grpc.NewClient(listener.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	req.NoError(err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Given every probe passes
	health.Check()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_SERVING, resp.Status)

	// When the store probe fails
	healthy = false
	health.Check()

	// Then the service is reported down
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: ""})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}
