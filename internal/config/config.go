// Package config defines the top-level configuration for the crossarb
// pipeline and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// duration wraps time.Duration so it can be written as "15s" in TOML.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBD_* environment variables.
// A Config is built once at startup and passed into components by value;
// components never mutate it.
type Config struct {
	Store       StoreConfig       `toml:"store"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Pricing     PricingConfig     `toml:"pricing"`
	Detector    DetectorConfig    `toml:"detector"`
	Optimizer   OptimizerConfig   `toml:"optimizer"`
	Gate        GateConfig        `toml:"gate"`
	Planner     PlannerConfig     `toml:"planner"`
	Stager      StagerConfig      `toml:"stager"`
	Coordinator CoordinatorConfig `toml:"coordinator"`
	Signer      SignerConfig      `toml:"signer"`
	Archive     ArchiveConfig     `toml:"archive"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// StoreConfig holds PostgreSQL connection parameters.
type StoreConfig struct {
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

// RedisConfig holds Redis connection parameters. Redis is optional: it backs
// the quote cache, detector seen-cache, oracle rate limiter, and the event
// bus for the WebSocket hub. Leave Addr empty to run without it.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// VenueConfig describes one venue the pipeline can observe and trade on.
type VenueConfig struct {
	Name   string            `toml:"name"`
	Chain  string            `toml:"chain"`
	RPCURL string            `toml:"rpc_url"`
	Feeds  map[string]string `toml:"feeds"` // token symbol -> price feed contract address
}

// PricingConfig selects and parameterizes the price source.
type PricingConfig struct {
	// Source is "feed" (on-chain aggregator reads) or "sim".
	Source       string        `toml:"source"`
	FetchTimeout duration      `toml:"fetch_timeout"`
	Venues       []VenueConfig `toml:"venues"`
}

// WatchTupleConfig is one (token, venue pair) the detector samples.
type WatchTupleConfig struct {
	Token  string `toml:"token"`
	VenueA string `toml:"venue_a"`
	VenueB string `toml:"venue_b"`
}

// DetectorConfig holds opportunity detection parameters.
type DetectorConfig struct {
	Interval     duration           `toml:"interval"`
	MinSpreadBps float64            `toml:"min_spread_bps"`
	ProfitScale  float64            `toml:"profit_scale"`
	SeenTTL      duration           `toml:"seen_ttl"`
	Tuples       []WatchTupleConfig `toml:"tuples"`
}

// OptimizerConfig holds trade sizing parameters.
type OptimizerConfig struct {
	CandidateSizesUSD []float64          `toml:"candidate_sizes_usd"`
	MaxTradeSizeUSD   float64            `toml:"max_trade_size_usd"`
	MinProfitBps      float64            `toml:"min_profit_bps"`
	BridgeFeeUSD      float64            `toml:"bridge_fee_usd"`
	BaseGasUSD        float64            `toml:"base_gas_usd"`
	LargeTradeGasUSD  float64            `toml:"large_trade_gas_usd"`
	SlippageBaseBps   map[string]float64 `toml:"slippage_base_bps"`
	DefaultSlipBps    float64            `toml:"default_slippage_bps"`
}

// GateConfig holds validation gate parameters.
type GateConfig struct {
	// Oracle is "http" or "rules".
	Oracle        string   `toml:"oracle"`
	URL           string   `toml:"url"`
	APIKey        string   `toml:"api_key"`
	Timeout       duration `toml:"timeout"`
	ConfidenceMin int      `toml:"confidence_min"`
	RatePerMinute int      `toml:"rate_per_minute"`
}

// PlannerConfig holds the planning loop parameters.
type PlannerConfig struct {
	Interval       duration `toml:"interval"`
	Batch          int      `toml:"batch"`
	DeadlineWindow duration `toml:"deadline_window"`
	DedupTTL       duration `toml:"dedup_ttl"`
}

// StagerConfig holds bundle staging parameters.
type StagerConfig struct {
	URL           string   `toml:"url"`
	SubmitTimeout duration `toml:"submit_timeout"`
	PollInterval  duration `toml:"poll_interval"`
	MaxAttempts   int      `toml:"max_attempts"`
	MaxBlockAhead int      `toml:"max_block_ahead"`
}

// CoordinatorConfig holds execution coordination parameters.
type CoordinatorConfig struct {
	Interval      duration `toml:"interval"`
	Batch         int      `toml:"batch"`
	MaxConcurrent int      `toml:"max_concurrent"`
}

// SignerConfig holds the bundle-submission signing key. The key never signs
// real settlement transactions; it authenticates staging requests.
type SignerConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ArchiveConfig holds retention archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
	DeleteAfter   bool     `toml:"delete_after"`
}

// ServerConfig holds the read-only API server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel parameters.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with working defaults for everything
// except credentials and endpoints.
func Defaults() Config {
	return Config{
		Store: StoreConfig{
			Port:          5432,
			SSLMode:       "disable",
			PoolMaxConns:  8,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Pricing: PricingConfig{
			Source:       "sim",
			FetchTimeout: duration{5 * time.Second},
		},
		Detector: DetectorConfig{
			Interval:     duration{10 * time.Second},
			MinSpreadBps: 20,
			ProfitScale:  1000,
			SeenTTL:      duration{time.Minute},
		},
		Optimizer: OptimizerConfig{
			CandidateSizesUSD: []float64{1_000, 5_000, 10_000, 25_000, 50_000},
			MaxTradeSizeUSD:   50_000,
			MinProfitBps:      20,
			BridgeFeeUSD:      8,
			BaseGasUSD:        8,
			LargeTradeGasUSD:  5,
			DefaultSlipBps:    10,
			SlippageBaseBps: map[string]float64{
				"WETH": 5,
				"USDC": 2,
				"USDT": 3,
				"WBTC": 8,
			},
		},
		Gate: GateConfig{
			Oracle:        "rules",
			Timeout:       duration{30 * time.Second},
			ConfidenceMin: 70,
			RatePerMinute: 30,
		},
		Planner: PlannerConfig{
			Interval:       duration{5 * time.Second},
			Batch:          10,
			DeadlineWindow: duration{5 * time.Minute},
			DedupTTL:       duration{2 * time.Minute},
		},
		Stager: StagerConfig{
			SubmitTimeout: duration{10 * time.Second},
			PollInterval:  duration{12 * time.Second},
			MaxAttempts:   10,
			MaxBlockAhead: 2,
		},
		Coordinator: CoordinatorConfig{
			Interval:      duration{15 * time.Second},
			Batch:         5,
			MaxConcurrent: 5,
		},
		Archive: ArchiveConfig{
			RetentionDays: 30,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// Validate checks the configuration for internal consistency. It is called
// once after Load; components assume a validated config.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "watch", "plan", "execute", "serve", "full":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if c.Detector.MinSpreadBps <= 0 {
		return fmt.Errorf("config: detector.min_spread_bps must be positive")
	}
	if c.Detector.Interval.Duration <= 0 {
		return fmt.Errorf("config: detector.interval must be positive")
	}
	venues := make(map[string]bool, len(c.Pricing.Venues))
	for _, v := range c.Pricing.Venues {
		if v.Name == "" {
			return fmt.Errorf("config: pricing venue with empty name")
		}
		venues[v.Name] = true
	}
	for _, t := range c.Detector.Tuples {
		if t.Token == "" || t.VenueA == "" || t.VenueB == "" {
			return fmt.Errorf("config: detector tuple must set token, venue_a, venue_b")
		}
		if t.VenueA == t.VenueB {
			return fmt.Errorf("config: detector tuple %s compares venue %s with itself", t.Token, t.VenueA)
		}
		if len(venues) > 0 && (!venues[t.VenueA] || !venues[t.VenueB]) {
			return fmt.Errorf("config: detector tuple %s references unknown venue", t.Token)
		}
	}

	if c.Optimizer.MaxTradeSizeUSD <= 0 {
		return fmt.Errorf("config: optimizer.max_trade_size_usd must be positive")
	}
	if len(c.Optimizer.CandidateSizesUSD) == 0 {
		return fmt.Errorf("config: optimizer.candidate_sizes_usd must not be empty")
	}

	switch c.Gate.Oracle {
	case "http":
		if c.Gate.URL == "" {
			return fmt.Errorf("config: gate.url is required for the http oracle")
		}
	case "rules":
	default:
		return fmt.Errorf("config: unsupported gate.oracle %q", c.Gate.Oracle)
	}
	if c.Gate.Timeout.Duration <= 0 {
		return fmt.Errorf("config: gate.timeout must be positive")
	}
	if c.Gate.ConfidenceMin < 0 || c.Gate.ConfidenceMin > 100 {
		return fmt.Errorf("config: gate.confidence_min must be in [0,100]")
	}

	if c.Stager.MaxAttempts <= 0 {
		return fmt.Errorf("config: stager.max_attempts must be positive")
	}
	if c.Stager.PollInterval.Duration <= 0 {
		return fmt.Errorf("config: stager.poll_interval must be positive")
	}

	if c.Coordinator.Batch <= 0 {
		return fmt.Errorf("config: coordinator.batch must be positive")
	}
	if c.Coordinator.MaxConcurrent <= 0 {
		return fmt.Errorf("config: coordinator.max_concurrent must be positive")
	}

	if c.Planner.DeadlineWindow.Duration <= 0 {
		return fmt.Errorf("config: planner.deadline_window must be positive")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("config: server.port out of range")
	}

	return nil
}

// Venue resolves a configured venue by name.
func (c *Config) Venue(name string) (VenueConfig, bool) {
	for _, v := range c.Pricing.Venues {
		if v.Name == name {
			return v, true
		}
	}
	return VenueConfig{}, false
}
