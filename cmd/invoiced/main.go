package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/invoice-reader/internal/app"
	"github.com/joseph-ayodele/invoice-reader/internal/common"
	"github.com/joseph-ayodele/invoice-reader/internal/export"
	"github.com/joseph-ayodele/invoice-reader/internal/observability/metrics"
	"github.com/joseph-ayodele/invoice-reader/internal/server"
	"github.com/joseph-ayodele/invoice-reader/internal/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(2)
	}
	flag.StringVar(&cfg.Server.HTTPAddr, "http", cfg.Server.HTTPAddr, "HTTP listen address")
	flag.StringVar(&cfg.Server.GRPCAddr, "grpc", cfg.Server.GRPCAddr, "gRPC health listen address (empty disables)")
	flag.StringVar(&cfg.Server.OutputDir, "out", cfg.Server.OutputDir, "directory for per-session CSV files")
	flag.Parse()

	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pm := metrics.New()
	proc, err := app.NewProcessor(cfg, pm, logger)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(2)
	}

	sessions := session.NewManager(session.ManagerConfig{
		OutputDir:  cfg.Server.OutputDir,
		ScratchDir: cfg.Server.ScratchDir,
		TTL:        cfg.Server.SessionTTL,
	}, logger)

	h := server.NewHandler(server.Options{
		Processor:      proc,
		Sessions:       sessions,
		Exporter:       export.NewService(logger),
		Metrics:        pm,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		Logger:         logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http serving", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("grpc listen", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			logger.Info("grpc health serving", "addr", cfg.Server.GRPCAddr)
			return grpcServer.Serve(lis)
		})
	}

	g.Go(func() error {
		sessions.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		hs.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
		grpcServer.GracefulStop()

		if err := sessions.Shutdown(); err != nil {
			logger.Error("session teardown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped.")
}
