package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/smertin-nikita/market/internal/cache"
	"github.com/smertin-nikita/market/internal/config"
	market "github.com/smertin-nikita/market/internal/http"
	"github.com/smertin-nikita/market/internal/metrics"
	"github.com/smertin-nikita/market/internal/publisher"
	"github.com/smertin-nikita/market/internal/repository"
	"github.com/smertin-nikita/market/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	creds := &repository.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.MigrationsDir,
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("connected to postgres", zap.String("host", cfg.PostgresHost))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	basketCache := cache.NewRedisCache(redisClient)

	orderService := service.NewOrderService(repo, basketCache, logger)

	m := metrics.NewServerMetrics("api")
	orderHandler := market.NewOrderHandler(orderService, cfg.RequestTimeout)
	basketHandler := market.NewBasketHandler(orderService, cfg.RequestTimeout)
	router := market.NewRouter(orderHandler, basketHandler, repo, m, cfg.RequestTimeout)

	pollerCtx, stopPoller := context.WithCancel(context.Background())
	poller := publisher.NewOutboxPoller(repo, logger, cfg.KafkaTopic, cfg.KafkaBrokers...)
	go poller.Run(pollerCtx)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: otelhttp.NewHandler(router, "market-api"),
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	stopPoller()
	if err := poller.Close(); err != nil {
		logger.Warn("failed to close kafka writer", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
