package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpcapi "custody-backend/internal/api/grpc"
	httpapi "custody-backend/internal/api/http"
	"custody-backend/internal/artifact"
	"custody-backend/internal/bootstrap"
	"custody-backend/internal/config"
	"custody-backend/internal/logger"
	"custody-backend/internal/service"
	"custody-backend/internal/storage"
	"custody-backend/internal/telemetry"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Asset Custody Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress(), "health_address", cfg.GetHealthAddress())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open asset store: %v", err)
	}
	defer store.Close()

	files, err := storage.NewLocalStorage(cfg.Storage.BaseURL, cfg.Storage.Dir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	logger.Info("Using local file storage", "dir", cfg.Storage.Dir)

	locator, err := bootstrap.NewLocator(cfg)
	if err != nil {
		log.Fatalf("Failed to build artifact locator: %v", err)
	}
	var artifactCache storage.Storage
	if cfg.Artifact.CacheEnabled {
		// Kept apart from files: nothing routes to the cache root.
		cache, err := storage.NewLocalStorage("", cfg.Artifact.CacheDir)
		if err != nil {
			log.Fatalf("Failed to initialize artifact cache: %v", err)
		}
		artifactCache = cache
		logger.Info("Using artifact cache", "dir", cfg.Artifact.CacheDir)
	}

	oracle, err := bootstrap.NewIdentityOracle(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize identity oracle: %v", err)
	}
	notifier, err := bootstrap.NewNotifier(cfg, locator)
	if err != nil {
		log.Fatalf("Failed to initialize notifier: %v", err)
	}

	// Initialize Services
	lifecycleSvc := service.NewLifecycleService(store.Assets)
	artifactSvc := service.NewArtifactService(store.Assets, artifact.NewDeriver(locator, cfg.Artifact.QRSize), artifactCache)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Lifecycle:          lifecycleSvc,
		Artifacts:          artifactSvc,
		Notifier:           notifier,
		Oracle:             oracle,
		Files:              files,
		BaseURL:            cfg.Storage.BaseURL,
		DownloadExpiry:     cfg.DownloadExpiry(),
		RateLimitPerMinute: cfg.Artifact.RateLimitPerMinute,
		RateLimitBurst:     cfg.Artifact.RateLimitBurst,
	})
	httpServer := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
	}

	var health *grpcapi.HealthServer
	if addr := cfg.GetHealthAddress(); addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Fatalf("Failed to listen on health address %s: %v", addr, err)
		}
		health = grpcapi.NewHealthServer()
		go health.Watch(ctx, store.Ping, 15*time.Second)
		go func() {
			logger.Info("gRPC health server listening", "address", addr)
			if err := health.Server.Serve(lis); err != nil {
				logger.Error("gRPC health server error", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("HTTP server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	if health != nil {
		health.Shutdown()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Tracer shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}
