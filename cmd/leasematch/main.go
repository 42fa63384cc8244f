package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/leasematch/leasematch/internal/auth"
	"github.com/leasematch/leasematch/internal/config"
	"github.com/leasematch/leasematch/internal/database"
	"github.com/leasematch/leasematch/internal/kpi"
	"github.com/leasematch/leasematch/internal/listing"
	"github.com/leasematch/leasematch/internal/matching"
	"github.com/leasematch/leasematch/internal/realtime"
	"github.com/leasematch/leasematch/internal/server"
	"github.com/leasematch/leasematch/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	configPath := flag.String("config", os.Getenv("LEASEMATCH_CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := database.NewPostgresDB(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zapLogger.Fatal("Failed to run migrations", zap.Error(err))
	}

	repo := listing.NewRepository(db, zapLogger)
	store := matching.NewStore(db, zapLogger)
	scorer := matching.NewScorer(cfg.Scoring)

	var kpiOpts []kpi.Option
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		kpiOpts = append(kpiOpts, kpi.WithRedis(redisClient))
	}
	kpiCache := kpi.NewCache(repo, cfg.KPI.TTL, cfg.KPI.ComputeTimeout, zapLogger, kpiOpts...)

	verifier := auth.NewJWTVerifier(cfg.JWT.Secret)
	registry := realtime.NewRegistry()
	dashboard := server.NewDashboardService(repo, store, kpiCache)
	gateway := realtime.NewGateway(cfg.Realtime, verifier, dashboard, registry, zapLogger)

	// mutation sites raise KPI events through the cache; the gateway pushes
	// kpi-invalidated to whoever is connected
	kpiCache.SetListener(gateway)

	orchestrator := matching.NewOrchestrator(repo, store, scorer, kpiCache, gateway, cfg.Scoring.TopN, zapLogger)

	srv := server.NewServer(cfg.HTTP, zapLogger, orchestrator, store, kpiCache, gateway, verifier)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		zapLogger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		zapLogger.Error("http server failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}
