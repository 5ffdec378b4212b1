// Package config defines the top-level configuration for the flip scout
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by FLIPSCOUT_* environment variables.
type Config struct {
	Marketplace MarketplaceConfig `toml:"marketplace"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Scan        ScanConfig        `toml:"scan"`
	Pricing     PricingConfig     `toml:"pricing"`
	Vault       VaultConfig       `toml:"vault"`
	Scoring     ScoringConfig     `toml:"scoring"`
	Deal        DealConfig        `toml:"deal"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// MarketplaceConfig holds the listing-search API endpoint and credentials.
type MarketplaceConfig struct {
	BaseURL  string `toml:"base_url"`
	ApiKey   string `toml:"api_key"`
	Category string `toml:"category"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters. Archival is
// optional; leave Enabled false to skip cold storage entirely.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ScanConfig holds the scan-cycle parameters.
type ScanConfig struct {
	// Queries are the marketplace search terms evaluated each cycle.
	Queries []string `toml:"queries"`

	// MinPrice and MaxPrice bound the asking price of candidate listings.
	MinPrice float64 `toml:"min_price"`
	MaxPrice float64 `toml:"max_price"`

	PageSize int      `toml:"page_size"`
	Interval duration `toml:"interval"`

	// LockKey and LockTTL configure the distributed cycle lock so only one
	// scanner instance runs at a time.
	LockKey string   `toml:"lock_key"`
	LockTTL duration `toml:"lock_ttl"`

	// Workers bounds concurrent candidate evaluations per cycle.
	Workers int `toml:"workers"`

	// ResurfaceLimit caps how many parked candidates are reconsidered when
	// the active slot frees up.
	ResurfaceLimit int `toml:"resurface_limit"`

	// TrendWindow is the lookback for directional price momentum.
	TrendWindow duration `toml:"trend_window"`

	// DedupTTL suppresses re-evaluation of unchanged listings within the
	// window. Zero disables suppression.
	DedupTTL duration `toml:"dedup_ttl"`
}

// PricingConfig holds consensus-aggregation parameters.
type PricingConfig struct {
	MinSources    int      `toml:"min_sources"`
	IQRMultiplier float64  `toml:"iqr_multiplier"`
	MaxConfidence float64  `toml:"max_confidence"`
	ConsensusTTL  duration `toml:"consensus_ttl"`
}

// VaultConfig holds the custodial admission parameters.
type VaultConfig struct {
	CustodialMinimum float64 `toml:"custodial_minimum"`
	SafetyBuffer     float64 `toml:"safety_buffer"`
}

// ScoringConfig holds the opportunity scorer's parameters. Zero values fall
// back to the scorer's built-in defaults.
type ScoringConfig struct {
	ProfitScale      float64 `toml:"profit_scale"`
	ReturnScale      float64 `toml:"return_scale"`
	MinTrustRating   float64 `toml:"min_trust_rating"`
	MinReturnRatio   float64 `toml:"min_return_ratio"`
	ThinMarginBuffer float64 `toml:"thin_margin_buffer"`
	PerFlagPenalty   float64 `toml:"per_flag_penalty"`

	// ProcessingFee is the flat authentication/grading cost per item.
	ProcessingFee float64 `toml:"processing_fee"`

	// PlatformFeeRate is the resale platform's cut of the final sale value,
	// as a fraction (0.13 for 13%).
	PlatformFeeRate float64 `toml:"platform_fee_rate"`
}

// DealConfig holds the admission thresholds for committing to a deal.
type DealConfig struct {
	MinTotalScore float64 `toml:"min_total_score"`
	MinProfit     float64 `toml:"min_profit"`
	MaxInvestment float64 `toml:"max_investment"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	ApiKey      string   `toml:"api_key"`

	// RateLimit is the per-client request budget per minute; zero disables
	// rate limiting.
	RateLimit int `toml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	Retries           int      `toml:"retries"`
	Backoff           duration `toml:"backoff"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Marketplace: MarketplaceConfig{
			BaseURL:  "https://api.ebay.com/buy/browse/v1",
			Category: "collectibles",
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "flipscout",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "flipscout-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Scan: ScanConfig{
			Queries:        []string{},
			MinPrice:       50,
			MaxPrice:       600,
			PageSize:       50,
			Interval:       duration{15 * time.Minute},
			LockKey:        "scan_cycle",
			LockTTL:        duration{20 * time.Minute},
			Workers:        4,
			ResurfaceLimit: 5,
			TrendWindow:    duration{7 * 24 * time.Hour},
			DedupTTL:       duration{time.Hour},
		},
		Pricing: PricingConfig{
			MinSources:    2,
			IQRMultiplier: 1.5,
			MaxConfidence: 0.95,
			ConsensusTTL:  duration{15 * time.Minute},
		},
		Vault: VaultConfig{
			CustodialMinimum: 250,
			SafetyBuffer:     50,
		},
		Scoring: ScoringConfig{
			ProfitScale:      2000,
			ReturnScale:      4,
			MinTrustRating:   98,
			MinReturnRatio:   3,
			ThinMarginBuffer: 50,
			PerFlagPenalty:   20,
			ProcessingFee:    25,
			PlatformFeeRate:  0.13,
		},
		Deal: DealConfig{
			MinTotalScore: 60,
			MinProfit:     400,
			MaxInvestment: 600,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
		},
		Notify: NotifyConfig{
			Events:  []string{"deal_pending", "deal_approved", "deal_rejected", "deal_completed", "scan_summary"},
			Retries: 3,
			Backoff: duration{2 * time.Second},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":  true,
	"serve": true,
	"full":  true,
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

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, serve, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Marketplace settings are required whenever the scan loop runs.
	scans := c.Mode == "scan" || c.Mode == "full"
	if scans {
		if c.Marketplace.BaseURL == "" {
			errs = append(errs, "marketplace: base_url must not be empty for mode "+c.Mode)
		}
		if c.Marketplace.ApiKey == "" {
			errs = append(errs, "marketplace: api_key is required for mode "+c.Mode)
		}
		if len(c.Scan.Queries) == 0 {
			errs = append(errs, "scan: at least one query is required for mode "+c.Mode)
		}
	}

	// Postgres
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
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Scan
	if c.Scan.MinPrice < 0 {
		errs = append(errs, "scan: min_price must be >= 0")
	}
	if c.Scan.MaxPrice > 0 && c.Scan.MaxPrice < c.Scan.MinPrice {
		errs = append(errs, "scan: max_price must not be below min_price")
	}
	if c.Scan.Interval.Duration <= 0 {
		errs = append(errs, "scan: interval must be > 0")
	}
	if c.Scan.LockTTL.Duration <= c.Scan.Interval.Duration/2 {
		errs = append(errs, "scan: lock_ttl should comfortably exceed half the scan interval")
	}
	if c.Scan.Workers < 1 {
		errs = append(errs, "scan: workers must be >= 1")
	}

	// Pricing
	if c.Pricing.MinSources < 2 {
		errs = append(errs, "pricing: min_sources must be >= 2; a single source cannot corroborate itself")
	}
	if c.Pricing.MaxConfidence <= 0 || c.Pricing.MaxConfidence >= 1 {
		errs = append(errs, "pricing: max_confidence must be in (0, 1)")
	}

	// Vault
	if c.Vault.CustodialMinimum <= 0 {
		errs = append(errs, "vault: custodial_minimum must be > 0")
	}
	if c.Vault.SafetyBuffer < 0 {
		errs = append(errs, "vault: safety_buffer must be >= 0")
	}

	// Scoring
	if c.Scoring.PlatformFeeRate < 0 || c.Scoring.PlatformFeeRate >= 1 {
		errs = append(errs, "scoring: platform_fee_rate must be in [0, 1)")
	}
	if c.Scoring.ProcessingFee < 0 {
		errs = append(errs, "scoring: processing_fee must be >= 0")
	}

	// Deal
	if c.Deal.MinTotalScore < 0 || c.Deal.MinTotalScore > 100 {
		errs = append(errs, "deal: min_total_score must be in [0, 100]")
	}
	if c.Deal.MinProfit < 0 {
		errs = append(errs, "deal: min_profit must be >= 0")
	}
	if c.Deal.MaxInvestment < 0 {
		errs = append(errs, "deal: max_investment must be >= 0 (zero disables the cap)")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
