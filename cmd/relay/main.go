package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"peerlink/internal/core/services"
	httphandlers "peerlink/internal/handlers/http"
	"peerlink/internal/infrastructure/middleware"
	"peerlink/internal/infrastructure/monitoring"
	"peerlink/internal/infrastructure/repositories"
	signalws "peerlink/internal/infrastructure/signal"
	"peerlink/pkg/config"
	"peerlink/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/peerlink/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	// Offline store backend (Redis or memory fallback)
	storeFactory := repositories.NewStoreFactory(cfg, log)
	defer storeFactory.Close()
	store := storeFactory.CreateOfflineStore(cfg)

	// Metrics
	var observer services.Observer = services.NopObserver{}
	var metrics *monitoring.RelayMetrics
	if cfg.Monitoring.PrometheusEnabled {
		metrics = monitoring.NewRelayMetrics(prometheus.DefaultRegisterer)
		metrics.RegisterQueueDepth(func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			depth, err := store.QueueDepth(ctx)
			if err != nil {
				return 0
			}
			return float64(depth)
		})
		observer = metrics
	}

	// Core relay components
	registry := services.NewConnectionRegistry(log)
	router := services.NewSignalingRouter(registry, store, observer, log)
	presence := services.NewPresenceBroadcaster(registry, log)
	supervisor := services.NewLivenessSupervisor(registry, observer, log)
	wsServer := signalws.NewServer(registry, store, router, presence, observer, cfg, log)

	// Background tasks: liveness probing and TTL sweeps, both stopped
	// at shutdown via context cancellation.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go supervisor.Run(bgCtx, cfg.Relay.PingInterval)
	go services.RunSweeper(bgCtx, store, cfg.Relay.SweepInterval, observer, log)

	// HTTP surface
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.RecoveryMiddleware(log))
	engine.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	engine.GET("/ws", gin.WrapF(wsServer.HandleWebSocket))

	statsHandler := httphandlers.NewStatsHandler(registry, store, router, storeFactory.HealthCheck)
	statsHandler.SetupRoutes(engine)

	if cfg.Monitoring.PrometheusEnabled {
		engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:    cfg.Relay.Address,
		Handler: engine,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting PeerLink relay on %s", cfg.Relay.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down PeerLink relay...")

	// Stop timers first, then drain connections.
	bgCancel()
	registry.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Relay.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}
}
