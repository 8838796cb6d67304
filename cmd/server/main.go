package main

import (
	"context"
	"errors"
	"estate-chat/internal"
	"estate-chat/internal/app"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Exit codes to provide meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run keeps every defer on the exit path, main only turns the result into an exit code.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Storage, services and change feed
	a, err := app.New(ctx, config, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("Closing resources failed", "error", err)
		}
	}()

	if a.DB != nil && logger.Enabled(ctx, slog.LevelDebug) {
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
		internal.StartDebugServer(ctx, logger, a.DB, config.DebugPort, app.InspectMapper, func() map[string]any {
			return a.Monitoring.GetLatest().AsMap()
		})
	}

	errChan := make(chan error, 2)

	// 4. Start the engine (fanout and workers)
	logger.Info("Starting orchestrator...")
	a.Start(ctx)

	// 5. HTTP server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:              address,
		Handler:           a.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 6. gRPC health for the orchestrators probing the process
	var grpcServer *grpc.Server
	if config.GrpcHealthPort > 0 {
		healthAddress := fmt.Sprintf("%s:%d", config.Host, config.GrpcHealthPort)
		listener, err := net.Listen("tcp", healthAddress)
		if err != nil {
			return exitRuntime, fmt.Errorf("failed to listen on %s: %w", healthAddress, err)
		}
		grpcServer = grpc.NewServer()
		healthServer := health.NewServer()
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(grpcServer, healthServer)
		go func() {
			logger.Info("Starting gRPC health server", "address", healthAddress)
			if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errChan <- fmt.Errorf("gRPC health server error: %w", err)
			}
		}()
	}

	// 7. Wait for Stop or Error
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
	}

	// 8. Graceful shutdown: websockets first, then the listener, then the workers
	logger.Info("Shutting down gracefully...")
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.Server.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	a.Stop()

	if runErr != nil {
		return exitRuntime, runErr
	}
	logger.Info("Program stopped cleanly")
	return exitOK, nil
}
