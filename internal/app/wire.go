package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/crossarb/internal/blob/s3"
	cachemem "github.com/alanyoungcy/crossarb/internal/cache/memory"
	"github.com/alanyoungcy/crossarb/internal/cache/redis"
	"github.com/alanyoungcy/crossarb/internal/config"
	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/notify"
	"github.com/alanyoungcy/crossarb/internal/store/memory"
	"github.com/alanyoungcy/crossarb/internal/store/postgres"
)

// Dependencies bundles the infrastructure-level dependencies the application
// modes share. Pipeline components are built per mode on top of these.
type Dependencies struct {
	// Stores. Either all Postgres-backed or all in-memory; the pipeline
	// components only see the interfaces.
	Opportunities domain.OpportunityStore
	Plans         domain.PlanStore
	Executions    domain.ExecutionStore
	Audit         domain.AuditStore

	// Caches. Nil when Redis is not configured, except Seen and Bus which
	// fall back to in-process implementations.
	Quotes  domain.QuoteCache
	Seen    domain.SeenCache
	Limiter domain.RateLimiter
	Bus     domain.EventBus

	// Blob storage. Nil unless archiving is enabled.
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	// Notifications.
	Notifier *notify.Notifier
}

// usesPostgres reports whether the configuration names a database. Without
// one, the in-memory stores back the pipeline (single-process only).
func usesPostgres(cfg *config.Config) bool {
	return cfg.Store.DSN != "" || cfg.Store.Host != ""
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	if usesPostgres(cfg) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Store.DSN,
			Host:     cfg.Store.Host,
			Port:     cfg.Store.Port,
			Database: cfg.Store.Database,
			User:     cfg.Store.User,
			Password: cfg.Store.Password,
			SSLMode:  cfg.Store.SSLMode,
			MaxConns: cfg.Store.PoolMaxConns,
			MinConns: cfg.Store.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Store.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Opportunities = postgres.NewOpportunityStore(pool)
		deps.Plans = postgres.NewPlanStore(pool)
		deps.Executions = postgres.NewExecutionStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
	} else {
		logger.Warn("no database configured, using in-memory stores")
		deps.Opportunities = memory.NewOpportunityStore()
		deps.Plans = memory.NewPlanStore()
		deps.Executions = memory.NewExecutionStore()
		deps.Audit = memory.NewAuditStore()
	}

	if cfg.Redis.Addr != "" {
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

		deps.Quotes = redis.NewQuoteCache(redisClient)
		deps.Seen = redis.NewSeenCache(redisClient)
		deps.Limiter = redis.NewRateLimiter(redisClient)
		deps.Bus = redis.NewEventBus(redisClient)
	} else {
		deps.Seen = cachemem.NewSeenCache()
		deps.Bus = cachemem.NewEventBus()
	}

	if cfg.Archive.Enabled {
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

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			deps.Opportunities,
			deps.Plans,
			deps.Executions,
			deps.Audit,
		)
	}

	senders := notify.SendersFromConfig(
		cfg.Notify.TelegramToken,
		cfg.Notify.TelegramChatID,
		cfg.Notify.DiscordWebhookURL,
	)
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
