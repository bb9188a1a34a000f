package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/tablr/orderwatch/internal/blob/s3"
	"github.com/tablr/orderwatch/internal/config"
	"github.com/tablr/orderwatch/internal/domain"
	"github.com/tablr/orderwatch/internal/notify"
	"github.com/tablr/orderwatch/internal/platform/orderapi"
	"github.com/tablr/orderwatch/internal/store/postgres"
	"github.com/tablr/orderwatch/internal/store/redis"
)

// Dependencies bundles every concrete dependency the application needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	OrderAPI *orderapi.Client

	Store domain.StateStore
	Bus   domain.SignalBus

	// Archive is nil when postgres is disabled.
	Archive domain.NotificationArchive

	// BlobWriter is nil when the cold-storage archiver is disabled.
	BlobWriter domain.BlobWriter

	// Dispatchers holds one push fan-out per role; admin and courier reach
	// different device recipients.
	Dispatchers map[domain.Role]*notify.Dispatcher
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Order API ---
	deps.OrderAPI = orderapi.NewClient(
		cfg.OrderAPI.BaseURL,
		cfg.OrderAPI.APIKey,
		cfg.OrderAPI.HistoryLimit,
		cfg.OrderAPI.Timeout.Duration,
	)

	// --- Redis (state store + signal bus) ---
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

	deps.Store = redis.NewStateStore(redisClient)
	deps.Bus = redis.NewSignalBus(redisClient)

	// --- PostgreSQL (dispatch history) ---
	if cfg.Postgres.Enabled {
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

		deps.Archive = postgres.NewNotificationArchive(pgClient.Pool())
	}

	// --- S3 cold storage (only when the archiver is enabled) ---
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
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- Push dispatch, one fan-out per role ---
	var ops []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		ops = append(ops, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}

	deps.Dispatchers = map[domain.Role]*notify.Dispatcher{
		domain.RoleAdmin: notify.NewDispatcher(append([]notify.Sender{
			notify.NewPushSender(cfg.Notify.PushGatewayURL, cfg.Notify.PushAccessToken, cfg.Notify.AdminRecipients),
		}, ops...), logger),
		domain.RoleCourier: notify.NewDispatcher(append([]notify.Sender{
			notify.NewPushSender(cfg.Notify.PushGatewayURL, cfg.Notify.PushAccessToken, cfg.Notify.CourierRecipients),
		}, ops...), logger),
	}

	return deps, cleanup, nil
}
