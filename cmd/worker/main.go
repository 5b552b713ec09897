package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dunamismax/stylizer/internal/config"
	"github.com/dunamismax/stylizer/internal/logging"
	"github.com/dunamismax/stylizer/internal/storage"
	"github.com/dunamismax/stylizer/internal/store"
	"github.com/dunamismax/stylizer/internal/telemetry"
	"github.com/dunamismax/stylizer/internal/webhook"
	"github.com/dunamismax/stylizer/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger := logging.New("info", "stylizer-worker")
		logger.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.LogLevel, "stylizer-worker")

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error().Err(err).Msg("worker exited")
		os.Exit(1)
	}
}

// run blocks in the asynq server until SIGINT or SIGTERM.
func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	shutdownTracing, err := telemetry.SetupTracing(ctx, "stylizer-worker", cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown error")
		}
	}()

	storageClient, err := storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("storage client setup: %w", err)
	}

	startupCtx, cancelStartup := context.WithTimeout(ctx, 15*time.Second)
	defer cancelStartup()
	if err := storageClient.EnsureBucket(startupCtx); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", storageClient.Bucket(), err)
	}

	var conversions store.ConversionStore = store.NewMemoryConversionStore()
	if cfg.Database.DSN != "" {
		pg, err := store.NewPostgresConversionStore(startupCtx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("postgres setup: %w", err)
		}
		defer pg.Close()
		conversions = pg
	} else {
		logger.Warn().Msg("POSTGRES_DSN not set; conversion records are kept in memory")
	}

	deps := worker.Deps{
		Storage: storageClient,
		Store:   conversions,
	}
	if cfg.Archive.WebhookURL != "" {
		deps.Webhook = webhook.NewClient(webhook.Config{
			SigningSecret: cfg.Archive.WebhookSecret,
			MaxAttempts:   3,
		})
		deps.WebhookURL = cfg.Archive.WebhookURL
	}

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, deps)
	if err != nil {
		return fmt.Errorf("worker setup: %w", err)
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           srv.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.Worker.MetricsAddr).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(ctx)
	}()

	logger.Info().
		Int("concurrency", cfg.Worker.Concurrency).
		Str("queue", cfg.Queue.Name).
		Str("redis", cfg.Queue.RedisAddr).
		Str("bucket", storageClient.Bucket()).
		Msg("starting worker")

	return srv.Run()
}
