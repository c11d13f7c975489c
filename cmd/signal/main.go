package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"playmesh/internal/core/ports"
	"playmesh/internal/core/services"
	httphandlers "playmesh/internal/handlers/http"
	"playmesh/internal/infrastructure/middleware"
	"playmesh/internal/infrastructure/monitoring"
	"playmesh/internal/infrastructure/repositories/memory"
	redisrepo "playmesh/internal/infrastructure/repositories/redis"
	signalws "playmesh/internal/infrastructure/signal"
	"playmesh/pkg/config"
	"playmesh/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zlog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zlog.Sync()
	log := zlog.Sugar()

	log.Infow("starting relay", "address", cfg.Server.Address, "redis", cfg.Redis.Enabled)

	var collector *monitoring.PrometheusCollector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector()
		go serveMetrics(cfg.Monitoring.PrometheusPort, log)
	}

	rooms, mailboxes, cleanup, err := buildRepositories(cfg, collector, log)
	if err != nil {
		log.Fatalw("repository initialization failed", "error", err)
	}
	defer cleanup()

	roomService := services.NewRoomService(rooms, mailboxes, log)

	wsServer := signalws.NewWebSocketServer(roomService, collector, log)
	wsServer.SetPingInterval(cfg.Signal.PingInterval)
	wsServer.SetDeliverInterval(cfg.Signal.DeliverInterval)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.NewLoggingMiddleware(zlog))
	if cfg.RateLimiting.Enabled {
		router.Use(middleware.NewRateLimitMiddleware(cfg))
	}

	httphandlers.NewSignalHandler(roomService, collector).SetupRoutes(router)
	router.GET("/ws", gin.WrapF(wsServer.HandleWebSocket))
	router.GET("/health", gin.WrapF(wsServer.HealthCheck))

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()
	log.Infow("relay listening", "address", cfg.Server.Address)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorw("shutdown incomplete", "error", err)
	}
	log.Info("stopped")
}

// buildRepositories wires the room and mailbox stores: Redis when
// enabled, otherwise in-process memory with background janitors. Mailbox
// head eviction feeds the dropped-messages counter.
func buildRepositories(cfg *config.Config, collector *monitoring.PrometheusCollector, log *zap.SugaredLogger) (ports.RoomRepository, ports.MailboxRepository, func(), error) {
	onEvict := func(count int) {
		if collector == nil {
			return
		}
		for i := 0; i < count; i++ {
			collector.MessageDropped()
		}
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewClient(redisrepo.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		log.Infow("using redis repositories", "address", cfg.Redis.Address)
		rooms := redisrepo.NewRedisRoomRepository(client, cfg.Room.TTL)
		mailboxes := redisrepo.NewRedisMailboxRepository(client, cfg.Room.MailboxLimit, cfg.Room.MailboxTTL)
		mailboxes.OnEvict(onEvict)
		return rooms, mailboxes, func() { client.Close() }, nil
	}

	rooms := memory.NewMemoryRoomRepository(cfg.Room.TTL)
	mailboxes := memory.NewMemoryMailboxRepository(cfg.Room.MailboxLimit, cfg.Room.MailboxTTL)
	mailboxes.OnEvict(onEvict)
	cleanup := func() {
		rooms.Close()
		mailboxes.Close()
	}
	return rooms, mailboxes, cleanup, nil
}

func serveMetrics(port int, log *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	log.Infow("metrics listening", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorw("metrics server failed", "error", err)
	}
}
