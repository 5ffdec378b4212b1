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
// built-in defaults, applies FLIPSCOUT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known FLIPSCOUT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Marketplace ──
	setStr(&cfg.Marketplace.BaseURL, "FLIPSCOUT_MARKETPLACE_BASE_URL")
	setStr(&cfg.Marketplace.ApiKey, "FLIPSCOUT_MARKETPLACE_API_KEY")
	setStr(&cfg.Marketplace.Category, "FLIPSCOUT_MARKETPLACE_CATEGORY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "FLIPSCOUT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "FLIPSCOUT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "FLIPSCOUT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FLIPSCOUT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FLIPSCOUT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FLIPSCOUT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FLIPSCOUT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FLIPSCOUT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FLIPSCOUT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FLIPSCOUT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FLIPSCOUT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "FLIPSCOUT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FLIPSCOUT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FLIPSCOUT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FLIPSCOUT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FLIPSCOUT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FLIPSCOUT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "FLIPSCOUT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "FLIPSCOUT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FLIPSCOUT_S3_REGION")
	setStr(&cfg.S3.Bucket, "FLIPSCOUT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FLIPSCOUT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FLIPSCOUT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FLIPSCOUT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FLIPSCOUT_S3_FORCE_PATH_STYLE")

	// ── Scan ──
	setStringSlice(&cfg.Scan.Queries, "FLIPSCOUT_SCAN_QUERIES")
	setFloat64(&cfg.Scan.MinPrice, "FLIPSCOUT_SCAN_MIN_PRICE")
	setFloat64(&cfg.Scan.MaxPrice, "FLIPSCOUT_SCAN_MAX_PRICE")
	setInt(&cfg.Scan.PageSize, "FLIPSCOUT_SCAN_PAGE_SIZE")
	setDuration(&cfg.Scan.Interval, "FLIPSCOUT_SCAN_INTERVAL")
	setStr(&cfg.Scan.LockKey, "FLIPSCOUT_SCAN_LOCK_KEY")
	setDuration(&cfg.Scan.LockTTL, "FLIPSCOUT_SCAN_LOCK_TTL")
	setInt(&cfg.Scan.Workers, "FLIPSCOUT_SCAN_WORKERS")
	setInt(&cfg.Scan.ResurfaceLimit, "FLIPSCOUT_SCAN_RESURFACE_LIMIT")
	setDuration(&cfg.Scan.TrendWindow, "FLIPSCOUT_SCAN_TREND_WINDOW")
	setDuration(&cfg.Scan.DedupTTL, "FLIPSCOUT_SCAN_DEDUP_TTL")

	// ── Pricing ──
	setInt(&cfg.Pricing.MinSources, "FLIPSCOUT_PRICING_MIN_SOURCES")
	setFloat64(&cfg.Pricing.IQRMultiplier, "FLIPSCOUT_PRICING_IQR_MULTIPLIER")
	setFloat64(&cfg.Pricing.MaxConfidence, "FLIPSCOUT_PRICING_MAX_CONFIDENCE")
	setDuration(&cfg.Pricing.ConsensusTTL, "FLIPSCOUT_PRICING_CONSENSUS_TTL")

	// ── Vault ──
	setFloat64(&cfg.Vault.CustodialMinimum, "FLIPSCOUT_VAULT_CUSTODIAL_MINIMUM")
	setFloat64(&cfg.Vault.SafetyBuffer, "FLIPSCOUT_VAULT_SAFETY_BUFFER")

	// ── Scoring ──
	setFloat64(&cfg.Scoring.ProfitScale, "FLIPSCOUT_SCORING_PROFIT_SCALE")
	setFloat64(&cfg.Scoring.ReturnScale, "FLIPSCOUT_SCORING_RETURN_SCALE")
	setFloat64(&cfg.Scoring.MinTrustRating, "FLIPSCOUT_SCORING_MIN_TRUST_RATING")
	setFloat64(&cfg.Scoring.MinReturnRatio, "FLIPSCOUT_SCORING_MIN_RETURN_RATIO")
	setFloat64(&cfg.Scoring.ThinMarginBuffer, "FLIPSCOUT_SCORING_THIN_MARGIN_BUFFER")
	setFloat64(&cfg.Scoring.PerFlagPenalty, "FLIPSCOUT_SCORING_PER_FLAG_PENALTY")
	setFloat64(&cfg.Scoring.ProcessingFee, "FLIPSCOUT_SCORING_PROCESSING_FEE")
	setFloat64(&cfg.Scoring.PlatformFeeRate, "FLIPSCOUT_SCORING_PLATFORM_FEE_RATE")

	// ── Deal ──
	setFloat64(&cfg.Deal.MinTotalScore, "FLIPSCOUT_DEAL_MIN_TOTAL_SCORE")
	setFloat64(&cfg.Deal.MinProfit, "FLIPSCOUT_DEAL_MIN_PROFIT")
	setFloat64(&cfg.Deal.MaxInvestment, "FLIPSCOUT_DEAL_MAX_INVESTMENT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "FLIPSCOUT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "FLIPSCOUT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "FLIPSCOUT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.ApiKey, "FLIPSCOUT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "FLIPSCOUT_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FLIPSCOUT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FLIPSCOUT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FLIPSCOUT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FLIPSCOUT_NOTIFY_EVENTS")
	setInt(&cfg.Notify.Retries, "FLIPSCOUT_NOTIFY_RETRIES")
	setDuration(&cfg.Notify.Backoff, "FLIPSCOUT_NOTIFY_BACKOFF")

	// ── Top-level ──
	setStr(&cfg.Mode, "FLIPSCOUT_MODE")
	setStr(&cfg.LogLevel, "FLIPSCOUT_LOG_LEVEL")
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
