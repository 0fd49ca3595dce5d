package api

import (
	"NetDeviation/internal/config"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported by the gRPC health service.
const ServiceName = "netdev.api"

// Serve runs the HTTP API and the gRPC health service until ctx is done, then
// shuts both down gracefully.
func Serve(ctx context.Context, cfg config.APIConfig, handler http.Handler, logger log.FieldLogger) error {
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GrpcListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GrpcListenAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("gRPC health server starting on %s", cfg.GrpcListenAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.HttpListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("HTTP API server starting on %s", cfg.HttpListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	logger.Info("Servers shutting down...")

	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, err)
	}

	logger.Info("All servers exited.")
	return serveErr
}
