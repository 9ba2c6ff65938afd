package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	httpadapter "campaign-discounts/internal/adapter/http"
	"campaign-discounts/internal/adapter/memory"
	"campaign-discounts/internal/adapter/postgres"
	redislock "campaign-discounts/internal/adapter/redis"
	"campaign-discounts/internal/adapter/usecase"
	"campaign-discounts/internal/config"
	"campaign-discounts/internal/core/port"
	"campaign-discounts/internal/db"
	"campaign-discounts/internal/metrics"
)

// main is the entry point of the discount service. It loads configuration,
// optionally runs database migrations, initializes storage and the use case,
// then starts the HTTP server. On receiving a termination signal it
// gracefully shuts down the server.
func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		return 1
	}

	logger := slog.New(cfg.Log.Handler(os.Stdout)).With(slog.String("env", cfg.Env))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loc, err := cfg.Discount.Location()
	if err != nil {
		logger.Error("invalid discount timezone", slog.Any("error", err))
		return 1
	}

	var repo port.CampaignRepository
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		repo = memory.NewCampaignRepository()
	default:
		// Optionally run migrations if configured. We use the Psql sub‑config.
		if cfg.Psql.RunMigrations {
			if err = db.Migrate(cfg.Psql.Addr.String()); err != nil {
				logger.Error("migration error", slog.Any("error", err))
				return 1
			}
			logger.Info("migrations applied successfully")
		}

		pool, err := db.NewPostgresPool(ctx, cfg.Psql)
		if err != nil {
			logger.Error("database connection error", slog.Any("error", err))
			return 1
		}
		defer pool.Close()
		repo = postgres.NewCampaignRepository(pool)
	}

	if cfg.Psql.Seed {
		if err = db.Seed(ctx, repo, time.Now()); err != nil {
			logger.Error("seed error", slog.Any("error", err))
			return 1
		}
		logger.Info("demo data seeded")
	}

	opts := []usecase.Option{usecase.WithLocation(loc)}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if cfg.Metrics.Enabled {
		opts = append(opts, usecase.WithMetrics(metrics.New(registry)))
	}

	if cfg.Redis.Enabled {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err = client.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Error("redis connection error", slog.Any("error", err))
			return 1
		}
		opts = append(opts, usecase.WithLocker(redislock.NewLocker(client, cfg.Redis.LockTTL, cfg.Redis.LockWait, logger)))
		logger.Info("distributed campaign lock enabled", slog.String("addr", cfg.Redis.Addr))
	}

	svc := usecase.NewCampaignUseCase(repo, opts...)

	var handlerOpts []httpadapter.Option
	if cfg.Metrics.Enabled {
		handlerOpts = append(handlerOpts, httpadapter.WithMetrics(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
	handler := httpadapter.NewHandler(svc, logger, handlerOpts...)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			slog.Int("port", int(cfg.HTTP.Port)),
			slog.String("storage", cfg.StorageDriver),
			slog.String("timezone", loc.String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err = <-serveErr:
		if err != nil {
			logger.Error("server error", slog.Any("error", err))
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return 1
	}
	logger.Info("server gracefully stopped")
	return 0
}
