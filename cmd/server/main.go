package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/havaian/gossip/auth"
	"github.com/havaian/gossip/infrastructure/gateway"
	"github.com/havaian/gossip/infrastructure/grpc/server"
	"github.com/havaian/gossip/infrastructure/realtime"
	"github.com/havaian/gossip/internal"
	"github.com/havaian/gossip/moderation"
	"github.com/havaian/gossip/repositories"
	"github.com/havaian/gossip/runtime"
	"github.com/havaian/gossip/runtime/workers"
	"github.com/havaian/gossip/services"
	"github.com/havaian/gossip/sink"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run owns every resource so deferred closes happen before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	// A missing .env file is fine, the environment may already be set.
	_ = godotenv.Load()
	config, err := internal.Load()
	if err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	messageRepository := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	roomRepository := repositories.NewRoomRepository(db)
	userRepository := repositories.NewUserRepository(db)
	messageIndex := repositories.NewMessageIndex(blugeWriter, logger)

	// 3. Moderation engine and services
	hub := runtime.NewHub(logger, config.EventBufferSize)
	registry := runtime.NewRegistry()

	engine := moderation.NewEngine(logger, repositories.NewStore(db), messageRepository, roomRepository, hub, config.MaxContentLength).
		WithIndex(messageIndex)
	if words := config.CensoredWordList(); len(words) > 0 {
		censor, err := moderation.NewCensor(words, charReplacement, logger)
		if err != nil {
			return exitConfig, fmt.Errorf("censor init failed: %w", err)
		}
		engine.WithCensor(censor)
	}
	if config.DetectLanguage {
		engine.WithLanguageDetection()
	}

	hasher := auth.NewPasswordHasher(auth.DefaultParams)
	accessService := services.NewAccessService(userRepository, auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration), hasher, logger)
	userService := services.NewUserService(userRepository, roomRepository, hasher, logger)
	roomService := services.NewRoomService(roomRepository, userRepository, messageRepository, engine, hub, logger)

	if config.HasBootstrapAdmin() {
		created, err := accessService.Bootstrap(config.BootstrapAdminName, config.BootstrapAdminEmail, config.BootstrapAdminPassword)
		if err != nil {
			return exitConfig, fmt.Errorf("bootstrap admin failed: %w", err)
		}
		if created {
			logger.Info("First admin account created", "email", config.BootstrapAdminEmail)
		}
	}

	// 4. Supervised workers
	timeline := sink.NewTimeline(config.DisplayHistorySize)
	fanout := workers.NewEventFanout(logger, hub.Events(), registry, config.SinkTimeout).
		Add(sink.NewIndexSink(messageIndex, logger), timeline)
	sampler := workers.NewProcessSampler(logger, registry, config.MetricInterval)
	capacity := workers.NewChannelCapacityWorker(logger, []workers.NamedChannel{
		{Name: "events", Channel: hub.Events()},
	}, config.MetricInterval, config.LowCapacityThreshold)
	health := server.NewHealthServer(logger, config.MetricInterval, map[string]server.Probe{
		"badger": func() error {
			if db.IsClosed() {
				return errors.New("badger is closed")
			}
			return nil
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := workers.NewSupervisor(logger).WithRestartInterval(config.RestartInterval)
	sup.Add(fanout, sampler, capacity, health)
	supervised := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supervised)
	}()

	// 5. Request surface (HTTP + websocket) and gRPC health
	realtimeServer := realtime.NewServer(logger, accessService, registry, config.ConnectionBufferSize).
		WithRoomAccessCheck(config.EnforceRoomAccess)
	handler := gateway.NewHandler(logger, accessService, userService, roomService, engine, timeline)
	httpServer := &http.Server{
		Addr:              config.Address(),
		Handler:           gateway.NewRouter(logger, handler, realtimeServer, config.AllowedOrigins()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GRPCHealthPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	grpcServer := grpc.NewServer()
	health.Register(grpcServer)

	errChan := make(chan error, 2)
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	go func() {
		logger.Info("Starting gRPC health server", "address", grpcAddress)
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	code := exitOK
	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
	case err = <-errChan:
		logger.Error("Server failure, shutting down", "error", err)
		code = exitRuntime
	}

	// 7. Final Cleanup
	health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("HTTP shutdown incomplete", "error", shutdownErr)
	}
	realtimeServer.Close()
	grpcServer.GracefulStop()
	stop()
	sup.Stop()
	<-supervised
	logger.Info("Program stopped cleanly")

	return code, err
}
