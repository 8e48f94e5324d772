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
// built-in defaults, applies ARBD_* environment variable overrides, and
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

// applyEnvOverrides reads well-known ARBD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Store ──
	setStr(&cfg.Store.DSN, "ARBD_STORE_DSN")
	setStr(&cfg.Store.Host, "ARBD_STORE_HOST")
	setInt(&cfg.Store.Port, "ARBD_STORE_PORT")
	setStr(&cfg.Store.Database, "ARBD_STORE_DATABASE")
	setStr(&cfg.Store.User, "ARBD_STORE_USER")
	setStr(&cfg.Store.Password, "ARBD_STORE_PASSWORD")
	setStr(&cfg.Store.SSLMode, "ARBD_STORE_SSL_MODE")
	setInt(&cfg.Store.PoolMaxConns, "ARBD_STORE_POOL_MAX_CONNS")
	setInt(&cfg.Store.PoolMinConns, "ARBD_STORE_POOL_MIN_CONNS")
	setBool(&cfg.Store.RunMigrations, "ARBD_STORE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBD_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBD_S3_FORCE_PATH_STYLE")

	// ── Pricing ──
	setStr(&cfg.Pricing.Source, "ARBD_PRICING_SOURCE")
	setDuration(&cfg.Pricing.FetchTimeout, "ARBD_PRICING_FETCH_TIMEOUT")

	// ── Detector ──
	setDuration(&cfg.Detector.Interval, "ARBD_DETECTOR_INTERVAL")
	setFloat64(&cfg.Detector.MinSpreadBps, "ARBD_DETECTOR_MIN_SPREAD_BPS")
	setFloat64(&cfg.Detector.ProfitScale, "ARBD_DETECTOR_PROFIT_SCALE")
	setDuration(&cfg.Detector.SeenTTL, "ARBD_DETECTOR_SEEN_TTL")

	// ── Optimizer ──
	setFloat64(&cfg.Optimizer.MaxTradeSizeUSD, "ARBD_OPTIMIZER_MAX_TRADE_SIZE_USD")
	setFloat64(&cfg.Optimizer.MinProfitBps, "ARBD_OPTIMIZER_MIN_PROFIT_BPS")
	setFloat64(&cfg.Optimizer.BridgeFeeUSD, "ARBD_OPTIMIZER_BRIDGE_FEE_USD")
	setFloat64(&cfg.Optimizer.BaseGasUSD, "ARBD_OPTIMIZER_BASE_GAS_USD")
	setFloat64(&cfg.Optimizer.LargeTradeGasUSD, "ARBD_OPTIMIZER_LARGE_TRADE_GAS_USD")
	setFloat64(&cfg.Optimizer.DefaultSlipBps, "ARBD_OPTIMIZER_DEFAULT_SLIPPAGE_BPS")

	// ── Gate ──
	setStr(&cfg.Gate.Oracle, "ARBD_GATE_ORACLE")
	setStr(&cfg.Gate.URL, "ARBD_GATE_URL")
	setStr(&cfg.Gate.APIKey, "ARBD_GATE_API_KEY")
	setDuration(&cfg.Gate.Timeout, "ARBD_GATE_TIMEOUT")
	setInt(&cfg.Gate.ConfidenceMin, "ARBD_GATE_CONFIDENCE_MIN")
	setInt(&cfg.Gate.RatePerMinute, "ARBD_GATE_RATE_PER_MINUTE")

	// ── Planner ──
	setDuration(&cfg.Planner.Interval, "ARBD_PLANNER_INTERVAL")
	setInt(&cfg.Planner.Batch, "ARBD_PLANNER_BATCH")
	setDuration(&cfg.Planner.DeadlineWindow, "ARBD_PLANNER_DEADLINE_WINDOW")
	setDuration(&cfg.Planner.DedupTTL, "ARBD_PLANNER_DEDUP_TTL")

	// ── Stager ──
	setStr(&cfg.Stager.URL, "ARBD_STAGER_URL")
	setDuration(&cfg.Stager.SubmitTimeout, "ARBD_STAGER_SUBMIT_TIMEOUT")
	setDuration(&cfg.Stager.PollInterval, "ARBD_STAGER_POLL_INTERVAL")
	setInt(&cfg.Stager.MaxAttempts, "ARBD_STAGER_MAX_ATTEMPTS")
	setInt(&cfg.Stager.MaxBlockAhead, "ARBD_STAGER_MAX_BLOCK_AHEAD")

	// ── Coordinator ──
	setDuration(&cfg.Coordinator.Interval, "ARBD_COORDINATOR_INTERVAL")
	setInt(&cfg.Coordinator.Batch, "ARBD_COORDINATOR_BATCH")
	setInt(&cfg.Coordinator.MaxConcurrent, "ARBD_COORDINATOR_MAX_CONCURRENT")

	// ── Signer ──
	setStr(&cfg.Signer.PrivateKey, "ARBD_SIGNER_PRIVATE_KEY")
	setStr(&cfg.Signer.EncryptedKeyPath, "ARBD_SIGNER_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Signer.KeyPassword, "ARBD_SIGNER_KEY_PASSWORD")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ARBD_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "ARBD_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "ARBD_ARCHIVE_INTERVAL")
	setBool(&cfg.Archive.DeleteAfter, "ARBD_ARCHIVE_DELETE_AFTER")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARBD_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBD_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBD_MODE")
	setStr(&cfg.LogLevel, "ARBD_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
