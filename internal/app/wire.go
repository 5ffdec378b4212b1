package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/flipscout/flipscout/internal/blob/s3"
	"github.com/flipscout/flipscout/internal/cache/redis"
	"github.com/flipscout/flipscout/internal/config"
	"github.com/flipscout/flipscout/internal/domain"
	"github.com/flipscout/flipscout/internal/marketplace"
	"github.com/flipscout/flipscout/internal/notify"
	"github.com/flipscout/flipscout/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	DealStore        domain.DealStore
	AuditStore       domain.AuditStore
	SkipStore        domain.SkipStore
	ObservationStore domain.ObservationStore

	// Caches
	ConsensusCache domain.ConsensusCache
	LockManager    domain.LockManager
	RateLimiter    domain.RateLimiter

	// Marketplace
	ListingSource domain.ListingSource

	// Blob storage (nil unless S3 is enabled)
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   *s3blob.DealArchiver

	// Notifications
	Notifier *notify.Notifier
}

// scans returns true for modes that run the scan loop.
func scans(mode string) bool {
	return mode == "scan" || mode == "full"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.DealStore = postgres.NewDealStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)
	deps.SkipStore = postgres.NewSkipStore(pool)
	deps.ObservationStore = postgres.NewObservationStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.ConsensusCache = redis.NewConsensusCache(redisClient, cfg.Pricing.ConsensusTTL.Duration)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- Marketplace (only for modes that scan) ---
	if scans(cfg.Mode) {
		deps.ListingSource = marketplace.NewClient(
			cfg.Marketplace.BaseURL,
			cfg.Marketplace.ApiKey,
			cfg.Marketplace.Category,
		)
	}

	// --- S3 blob storage (optional cold storage) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewDealArchiver(
			deps.BlobWriter,
			deps.BlobReader,
			deps.DealStore,
			deps.AuditStore,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
