package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nimbusrelay/signalrelay/internal/v1/bridge"
	"github.com/nimbusrelay/signalrelay/internal/v1/bus"
	"github.com/nimbusrelay/signalrelay/internal/v1/config"
	"github.com/nimbusrelay/signalrelay/internal/v1/health"
	"github.com/nimbusrelay/signalrelay/internal/v1/logging"
	"github.com/nimbusrelay/signalrelay/internal/v1/middleware"
	"github.com/nimbusrelay/signalrelay/internal/v1/room"
	"github.com/nimbusrelay/signalrelay/internal/v1/transport"
)

func main() {
	envPaths := []string{".env", "../../.env", "../../../.env"}
	var envLoaded bool
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		slog.Warn("no .env file found in any expected location, relying on environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var redisService *bus.Service
	var distributionBridge bridge.Bridge = bridge.Noop{}
	if cfg.RedisURL != "" {
		redisService, err = bus.NewService(ctx, cfg.RedisURL, "")
		if err != nil {
			logging.Warn(ctx, "bridge: redis unavailable, degrading to single-instance mode",
				zap.Error(bridge.ErrPubSubUnavailable))
			redisService = nil
			distributionBridge = bridge.Noop{}
		} else {
			distributionBridge = bridge.NewRedis(redisService)
		}
	}

	manager := room.NewManager(distributionBridge, room.ManagerConfig{
		MessageCacheCapacity:   cfg.MessageCacheCapacity,
		RoomSubscriptionLinger: cfg.RoomSubscriptionLinger,
	})

	supervisor := room.NewSupervisor(manager, cfg.HeartbeatInterval, cfg.PongTimeout)
	supervisorCtx, stopSupervisor := context.WithCancel(ctx)
	go supervisor.Run(supervisorCtx)

	hub := transport.NewHub(manager, cfg.PongTimeout, cfg.DisconnectTimeout)
	healthHandler := health.NewHandler(redisService)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	router.Use(cors.New(corsConfig))
	router.Use(middleware.CorrelationID())

	router.GET("/ws", hub.ServeWs)
	router.GET(cfg.MetricsPath, gin.WrapH(promhttp.Handler()))
	router.GET("/healthz/live", healthHandler.Liveness)
	router.GET("/healthz/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	if len(cfg.TLSCAFiles) > 0 {
		pool := x509.NewCertPool()
		for _, caFile := range cfg.TLSCAFiles {
			pem, err := os.ReadFile(caFile)
			if err != nil {
				logging.Error(ctx, "failed to read TLS CA file", zap.String("path", caFile), zap.Error(err))
				os.Exit(1)
			}
			if !pool.AppendCertsFromPEM(pem) {
				logging.Error(ctx, "TLS CA file contained no usable certificates", zap.String("path", caFile))
				os.Exit(1)
			}
		}
		srv.TLSConfig = &tls.Config{
			ClientCAs:  pool,
			ClientAuth: tls.RequireAndVerifyClientCert,
		}
	}

	go func() {
		logging.Info(ctx, "relay starting", zap.String("port", cfg.Port))

		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "relay server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	stopSupervisor()
	hub.Shutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "relay server forced to shutdown", zap.Error(err))
	}
	if redisService != nil {
		_ = redisService.Close()
	}

	logging.Info(ctx, "relay exited")
}

func allowedOriginsFromEnv(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return fallback
	}
	return origins
}
