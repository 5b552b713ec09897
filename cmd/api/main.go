package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/stylizer/internal/api"
	"github.com/dunamismax/stylizer/internal/config"
	"github.com/dunamismax/stylizer/internal/domain"
	"github.com/dunamismax/stylizer/internal/inference"
	"github.com/dunamismax/stylizer/internal/logging"
	"github.com/dunamismax/stylizer/internal/pipeline"
	"github.com/dunamismax/stylizer/internal/queue"
	"github.com/dunamismax/stylizer/internal/ratelimit"
	"github.com/dunamismax/stylizer/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger := logging.New("info", "stylizer-api")
		logger.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.LogLevel, "stylizer-api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("api exited")
		stop()
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	shutdownTracing, err := telemetry.SetupTracing(ctx, "stylizer-api", cfg.Tracing, logger)
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

	policy, err := domain.ParseAlignmentPolicy(cfg.Model.Alignment)
	if err != nil {
		return err
	}
	resampler, err := pipeline.ParseResampler(cfg.Model.Resampler)
	if err != nil {
		return err
	}

	if err := pipeline.Startup(); err != nil {
		return fmt.Errorf("image runtime startup: %w", err)
	}
	defer pipeline.Shutdown()

	model, err := inference.FromConfig(cfg.Model, logger)
	if err != nil {
		return fmt.Errorf("load style model: %w", err)
	}
	defer func() {
		if err := model.Close(); err != nil {
			logger.Warn().Err(err).Msg("model close error")
		}
	}()

	metrics := api.NewMetrics()
	processor, err := pipeline.NewProcessor(model, policy,
		pipeline.WithResampler(resampler),
		pipeline.WithMaxPixels(cfg.Model.MaxPixels),
		pipeline.WithObserver(metrics),
	)
	if err != nil {
		return fmt.Errorf("build processor: %w", err)
	}

	opts := api.Options{
		RateLimitUserIDHeader: cfg.RateLimit.UserIDHeader,
		AllowedOrigins:        cfg.API.AllowedOrigins,
		MaxUploadBytes:        cfg.API.MaxUploadBytes,
		Metrics:               metrics,
	}

	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer redisClient.Close()

		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Window, "")
		if err != nil {
			return fmt.Errorf("rate limiter setup: %w", err)
		}
		opts.RateLimiter = limiter
	}

	if cfg.Archive.Enabled {
		queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
		defer func() {
			if err := queueClient.Close(); err != nil {
				logger.Warn().Err(err).Msg("queue client close error")
			}
		}()
		opts.Archiver = queueClient
	}

	app := api.NewServer(logger, processor, opts)

	httpServer := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.API.Addr).
			Str("model", model.Name()).
			Str("policy", policy.String()).
			Bool("archive", cfg.Archive.Enabled).
			Bool("rate_limit", cfg.RateLimit.Enabled).
			Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info().Msg("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	app.Wait()
	return nil
}
