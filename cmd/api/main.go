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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/flipconvert/internal/api/handler"
	"github.com/hszk-dev/flipconvert/internal/api/middleware"
	"github.com/hszk-dev/flipconvert/internal/config"
	"github.com/hszk-dev/flipconvert/internal/domain/repository"
	"github.com/hszk-dev/flipconvert/internal/infrastructure/cache"
	"github.com/hszk-dev/flipconvert/internal/infrastructure/queue"
	"github.com/hszk-dev/flipconvert/internal/infrastructure/storage"
	"github.com/hszk-dev/flipconvert/internal/transcoder"
	"github.com/hszk-dev/flipconvert/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Server.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Initialize infrastructure clients
	storageClient, err := storage.NewClient(ctx, storage.ClientConfig{
		Endpoint:       cfg.MinIO.Endpoint,
		PublicEndpoint: cfg.MinIO.PublicEndpoint,
		AccessKey:      cfg.MinIO.AccessKey,
		SecretKey:      cfg.MinIO.SecretKey,
		Bucket:         cfg.MinIO.Bucket,
		UseSSL:         cfg.MinIO.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	logger.Info("connected to MinIO", slog.String("bucket", storageClient.Bucket()))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	checks := map[string]handler.HealthCheck{
		"minio": storageClient.Ping,
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}

	// Events are optional; conversions proceed without a broker.
	var events repository.EventPublisher
	if cfg.RabbitMQ.Enabled {
		queueCfg := queue.DefaultClientConfig(cfg.RabbitMQ.URL())
		queueCfg.Exchange = cfg.RabbitMQ.EventsExchange

		queueClient, err := queue.NewClient(ctx, queueCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer queueClient.Close()
		events = queueClient
		checks["rabbitmq"] = queueClient.Ping
		logger.Info("connected to RabbitMQ", slog.String("exchange", queueCfg.Exchange))
	}

	pool, closeTranscoders, err := newConverterPool(cfg.Converter)
	if err != nil {
		return err
	}
	defer closeTranscoders()
	logger.Info("converter pool ready", slog.Int("size", pool.Size()))

	conversionSvc := usecase.NewConversionService(
		pool,
		storageClient,
		cache.NewRedisArtifactCache(redisClient),
		events,
		usecase.ConversionServiceConfig{
			ArtifactTTL:       cfg.Redis.ArtifactTTL,
			DownloadURLExpiry: cfg.MinIO.DownloadURLExpiry,
		},
	)

	healthHandler := handler.NewHealthHandler(checks)
	conversionHandler := handler.NewConversionHandler(conversionSvc, cfg.Server.MaxUploadBytes)

	r := setupRouter(logger, healthHandler, conversionHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	// Shutdown waits for in-flight conversions, whose cleanup must finish
	// before the transcoders' staging directories are removed.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// newConverterPool creates one FFmpeg transcoder per pooled converter.
// The returned func removes every transcoder's staging directory.
func newConverterPool(cfg config.ConverterConfig) (*usecase.ConverterPool, func(), error) {
	if err := os.MkdirAll(cfg.StagingDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	var transcoders []*transcoder.FFmpegTranscoder
	closeAll := func() {
		for _, tc := range transcoders {
			if err := tc.Close(); err != nil {
				slog.Warn("failed to remove staging directory",
					"dir", tc.WorkDir(),
					"error", err,
				)
			}
		}
	}

	converters := make([]*usecase.Converter, 0, cfg.PoolSize)
	for range cfg.PoolSize {
		tc, err := transcoder.NewFFmpegTranscoder(transcoder.FFmpegConfig{
			FFmpegPath: cfg.FFmpegPath,
			StagingDir: cfg.StagingDir,
			LogLevel:   cfg.LogLevel,
		})
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to create transcoder: %w", err)
		}
		transcoders = append(transcoders, tc)
		converters = append(converters, usecase.NewConverter(tc))
	}

	pool, err := usecase.NewConverterPool(converters...)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return pool, closeAll, nil
}

func setupRouter(logger *slog.Logger, health *handler.HealthHandler, conversions *handler.ConversionHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", health.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/formats", conversions.Formats)
		r.Get("/targets", conversions.Targets)
		r.Post("/conversions", conversions.Convert)
		r.Get("/artifacts/{id}", conversions.GetArtifact)
	})

	return r
}
