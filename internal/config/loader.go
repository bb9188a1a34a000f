package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ORDERWATCH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ORDERWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Order API ──
	setStr(&cfg.OrderAPI.BaseURL, "ORDERWATCH_ORDER_API_BASE_URL")
	setStr(&cfg.OrderAPI.APIKey, "ORDERWATCH_ORDER_API_KEY")
	setInt(&cfg.OrderAPI.HistoryLimit, "ORDERWATCH_ORDER_API_HISTORY_LIMIT")
	setDuration(&cfg.OrderAPI.Timeout, "ORDERWATCH_ORDER_API_TIMEOUT")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ORDERWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ORDERWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ORDERWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ORDERWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ORDERWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ORDERWATCH_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "ORDERWATCH_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ORDERWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ORDERWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ORDERWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ORDERWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ORDERWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ORDERWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ORDERWATCH_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ORDERWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ORDERWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ORDERWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ORDERWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ORDERWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "ORDERWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ORDERWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ORDERWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ORDERWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ORDERWATCH_S3_FORCE_PATH_STYLE")

	// ── Engine ──
	setInt(&cfg.Engine.LedgerCap, "ORDERWATCH_ENGINE_LEDGER_CAP")
	setInt(&cfg.Engine.FeedCap, "ORDERWATCH_ENGINE_FEED_CAP")
	setBool(&cfg.Engine.Admin.Enabled, "ORDERWATCH_ENGINE_ADMIN_ENABLED")
	setDuration(&cfg.Engine.Admin.PollInterval, "ORDERWATCH_ENGINE_ADMIN_POLL_INTERVAL")
	setBool(&cfg.Engine.Courier.Enabled, "ORDERWATCH_ENGINE_COURIER_ENABLED")
	setDuration(&cfg.Engine.Courier.PollInterval, "ORDERWATCH_ENGINE_COURIER_POLL_INTERVAL")
	setDuration(&cfg.Engine.Courier.HeartbeatInterval, "ORDERWATCH_ENGINE_COURIER_HEARTBEAT_INTERVAL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ORDERWATCH_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "ORDERWATCH_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "ORDERWATCH_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ORDERWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ORDERWATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ORDERWATCH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ORDERWATCH_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.PushGatewayURL, "ORDERWATCH_NOTIFY_PUSH_GATEWAY_URL")
	setStr(&cfg.Notify.PushAccessToken, "ORDERWATCH_NOTIFY_PUSH_ACCESS_TOKEN")
	setStringSlice(&cfg.Notify.AdminRecipients, "ORDERWATCH_NOTIFY_ADMIN_RECIPIENTS")
	setStringSlice(&cfg.Notify.CourierRecipients, "ORDERWATCH_NOTIFY_COURIER_RECIPIENTS")
	setStr(&cfg.Notify.TelegramToken, "ORDERWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ORDERWATCH_NOTIFY_TELEGRAM_CHAT_ID")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ORDERWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
