package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flipscout/flipscout/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	rq := require.New(t)

	path := writeConfig(t, `
mode = "scan"

[marketplace]
api_key = "token"

[scan]
queries = ["graded trading card"]
interval = "5m"
lock_ttl = "10m"

[deal]
min_profit = 250
`)

	cfg, err := config.Load(path)
	rq.NoError(err)

	rq.Equal("scan", cfg.Mode)
	rq.Equal([]string{"graded trading card"}, cfg.Scan.Queries)
	rq.Equal(250.0, cfg.Deal.MinProfit)

	// Untouched sections keep their defaults.
	rq.Equal("localhost:6379", cfg.Redis.Addr)
	rq.Equal(60.0, cfg.Deal.MinTotalScore)
	rq.Equal(2, cfg.Pricing.MinSources)

	rq.NoError(cfg.Validate())
}

func TestEnvOverridesBeatFile(t *testing.T) {
	rq := require.New(t)

	path := writeConfig(t, `
[redis]
addr = "file-redis:6379"
`)

	t.Setenv("FLIPSCOUT_REDIS_ADDR", "env-redis:6379")
	t.Setenv("FLIPSCOUT_SCAN_QUERIES", "sealed booster box, graded card")
	t.Setenv("FLIPSCOUT_DEAL_MAX_INVESTMENT", "750")

	cfg, err := config.Load(path)
	rq.NoError(err)

	rq.Equal("env-redis:6379", cfg.Redis.Addr)
	rq.Equal([]string{"sealed booster box", "graded card"}, cfg.Scan.Queries)
	rq.Equal(750.0, cfg.Deal.MaxInvestment)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	rq := require.New(t)

	cfg := config.Defaults()
	cfg.Mode = "warp"
	cfg.Redis.Addr = ""
	cfg.Pricing.MinSources = 1
	cfg.Deal.MinTotalScore = 140

	err := cfg.Validate()
	rq.Error(err)
	rq.Contains(err.Error(), "unknown mode")
	rq.Contains(err.Error(), "redis: addr")
	rq.Contains(err.Error(), "min_sources")
	rq.Contains(err.Error(), "min_total_score")
}

func TestScanModeRequiresMarketplaceCredentials(t *testing.T) {
	rq := require.New(t)

	cfg := config.Defaults()
	cfg.Mode = "scan"
	cfg.Scan.Queries = []string{"vintage comic"}

	err := cfg.Validate()
	rq.Error(err)
	rq.Contains(err.Error(), "marketplace: api_key")

	cfg.Marketplace.ApiKey = "token"
	rq.NoError(cfg.Validate())
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	rq := require.New(t)

	cfg := config.Defaults()
	cfg.Marketplace.ApiKey = "marketplace-secret"
	cfg.Postgres.Password = "pg-secret"
	cfg.Notify.TelegramToken = "tg-secret"

	red := config.RedactedConfig(&cfg)

	rq.Equal("***", red.Marketplace.ApiKey)
	rq.Equal("***", red.Postgres.Password)
	rq.Equal("***", red.Notify.TelegramToken)

	// Originals are untouched.
	rq.Equal("marketplace-secret", cfg.Marketplace.ApiKey)

	// Empty secrets stay empty rather than gaining a placeholder.
	rq.Empty(red.S3.SecretKey)
}
