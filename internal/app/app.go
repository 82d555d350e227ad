package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sessionscribe/internal/config"
	"sessionscribe/internal/logging"
	"sessionscribe/internal/metrics"
	"sessionscribe/internal/storage"
	"sessionscribe/internal/sweeper"
	"sessionscribe/internal/transcribe"
	"sessionscribe/internal/upload"
)

// App holds the wired dependency graph shared by the serve and sweep
// commands.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	DB       *sql.DB
	Sessions *upload.PostgresStore
	Blobs    *storage.MinioStore
	Service  *upload.Service
	Sweeper  *sweeper.Sweeper

	redisClient *redis.Client
}

// New loads configuration and wires every component of the pipeline. The
// database schema is ensured on startup so a fresh environment works without
// a separate migration step.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.IsDevelopment())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	db, err := upload.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sessions := upload.NewPostgresStore(db)
	if err := sessions.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	blobs, err := storage.NewMinioStore(ctx, storage.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to blob storage: %w", err)
	}

	provider, err := transcribe.NewGroqProvider(transcribe.GroqConfig{
		APIKey:   cfg.GroqAPIKey,
		BaseURL:  cfg.GroqBaseURL,
		Model:    cfg.WhisperModel,
		Language: cfg.Language,
		Prompt:   cfg.Prompt,
		Timeout:  cfg.ProviderTimeout,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create transcription provider: %w", err)
	}

	retrier := transcribe.NewRetrier(transcribe.RetryPolicy{
		MaxAttempts:      cfg.MaxAttempts,
		RateLimitBackoff: cfg.RateLimitBackoff,
		RateLimitMargin:  cfg.RateLimitMargin,
		TransientBackoff: cfg.TransientBackoff,
	}, logger, m)
	transcoder := transcribe.NewFFmpegTranscoder(logger)
	segmenter := transcribe.NewSegmenter(provider, retrier, transcoder, cfg.MaxRequestBytes, logger, m)

	var redisClient *redis.Client
	var locks upload.Locker
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		locks = upload.NewRedisLocker(redisClient, upload.LockTTL(cfg.FinalizeTimeout))
		logger.Info("using redis finalize lock", zap.String("addr", cfg.RedisAddr))
	} else {
		locks = upload.NewMemoryLocker()
	}

	assembler := upload.NewAssembler(blobs, logger, m)
	service := upload.NewService(sessions, blobs, assembler, segmenter, locks, upload.ServiceConfig{
		Retention:        cfg.Retention,
		OperationTimeout: cfg.FinalizeTimeout,
	}, logger, m)

	sw := sweeper.New(sessions, blobs, cfg.SweepBatchSize, logger, m)

	return &App{
		Config:      cfg,
		Logger:      logger,
		Registry:    registry,
		Metrics:     m,
		DB:          db,
		Sessions:    sessions,
		Blobs:       blobs,
		Service:     service,
		Sweeper:     sw,
		redisClient: redisClient,
	}, nil
}

// Close releases held connections.
func (a *App) Close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.Logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("failed to close database", zap.Error(err))
		}
	}
	a.Logger.Sync()
}
