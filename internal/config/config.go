// Package config defines the top-level configuration for orderwatch and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ORDERWATCH_* environment variables.
type Config struct {
	OrderAPI OrderAPIConfig `toml:"order_api"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Engine   EngineConfig   `toml:"engine"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// OrderAPIConfig holds the remote Order API endpoints and fetch parameters.
type OrderAPIConfig struct {
	BaseURL      string   `toml:"base_url"`
	APIKey       string   `toml:"api_key"`
	HistoryLimit int      `toml:"history_limit"`
	Timeout      duration `toml:"timeout"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds connection parameters for the notification archive.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for cold storage.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// VariantConfig holds the per-role engine cadence.
type VariantConfig struct {
	Enabled           bool     `toml:"enabled"`
	PollInterval      duration `toml:"poll_interval"`
	HeartbeatInterval duration `toml:"heartbeat_interval"`
}

// EngineConfig holds diff-engine parameters shared by both variants plus the
// per-variant cadence.
type EngineConfig struct {
	LedgerCap int           `toml:"ledger_cap"`
	FeedCap   int           `toml:"feed_cap"`
	Admin     VariantConfig `toml:"admin"`
	Courier   VariantConfig `toml:"courier"`
}

// ArchiveConfig holds cold-storage offload parameters.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds push gateway and ops-channel credentials.
type NotifyConfig struct {
	PushGatewayURL    string   `toml:"push_gateway_url"`
	PushAccessToken   string   `toml:"push_access_token"`
	AdminRecipients   []string `toml:"admin_recipients"`
	CourierRecipients []string `toml:"courier_recipients"`
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "15s", "2m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "15s" or "2m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		OrderAPI: OrderAPIConfig{
			BaseURL:      "http://localhost:4000/api",
			HistoryLimit: 10,
			Timeout:      duration{30 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Enabled:       true,
			Host:          "localhost",
			Port:          5432,
			Database:      "orderwatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "orderwatch-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Engine: EngineConfig{
			LedgerCap: 100,
			FeedCap:   30,
			Admin: VariantConfig{
				Enabled:      true,
				PollInterval: duration{2 * time.Minute},
			},
			Courier: VariantConfig{
				Enabled:           true,
				PollInterval:      duration{15 * time.Second},
				HeartbeatInterval: duration{2 * time.Minute},
			},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Cron:          "0 3 1 * *",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			PushGatewayURL: "https://exp.host/--/api/v2/push/send",
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Order API
	if c.OrderAPI.BaseURL == "" {
		errs = append(errs, "order_api: base_url must not be empty")
	}
	if c.OrderAPI.HistoryLimit <= 0 {
		errs = append(errs, "order_api: history_limit must be > 0")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Engine
	if c.Engine.LedgerCap < 1 {
		errs = append(errs, "engine: ledger_cap must be >= 1")
	}
	if c.Engine.FeedCap < 1 {
		errs = append(errs, "engine: feed_cap must be >= 1")
	}
	if !c.Engine.Admin.Enabled && !c.Engine.Courier.Enabled {
		errs = append(errs, "engine: at least one of admin or courier must be enabled")
	}
	if c.Engine.Admin.Enabled && c.Engine.Admin.PollInterval.Duration <= 0 {
		errs = append(errs, "engine: admin poll_interval must be > 0")
	}
	if c.Engine.Courier.Enabled {
		if c.Engine.Courier.PollInterval.Duration <= 0 {
			errs = append(errs, "engine: courier poll_interval must be > 0")
		}
		if c.Engine.Courier.HeartbeatInterval.Duration <= 0 {
			errs = append(errs, "engine: courier heartbeat_interval must be > 0")
		}
	}

	// Archive needs both Postgres rows to read and S3 to write.
	if c.Archive.Enabled {
		if !c.Postgres.Enabled {
			errs = append(errs, "archive: requires postgres to be enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
