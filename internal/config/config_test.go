package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.EqualValues(t, 10, cfg.Store.MaxConns)
	assert.EqualValues(t, 2, cfg.Store.MinConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 10, cfg.Batch.MaxConcurrentTenants)
	assert.Equal(t, 300, cfg.Cache.TTLSeconds)
	assert.Equal(t, "2024-10", cfg.Commerce.APIVersion)
	assert.InDelta(t, 2.0, cfg.Commerce.RequestsPerSecond, 0.001)
	assert.Equal(t, 14, cfg.SalesTracker.LookbackDays)
	assert.Equal(t, 250, cfg.SalesTracker.PageSize)
	assert.Equal(t, 500, cfg.Replacement.MaxReplacementsPerRun)
	assert.InDelta(t, 0.2, cfg.Monitoring.FailureRateThreshold, 0.001)
	assert.Equal(t, 24, cfg.Monitoring.LookbackHours)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
batch:
  max_concurrent_tenants: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrentTenants)
	// Defaults still apply for unset values
	assert.Equal(t, 14, cfg.SalesTracker.LookbackDays)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FLEET_STORE_DRIVER", "postgres")
	t.Setenv("FLEET_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("FLEET_BATCH_MAX_CONCURRENT_TENANTS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Batch.MaxConcurrentTenants)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all the fields every mode needs
// populated, so each test below only has to set what it's exercising.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.DatabaseURL = "postgres://localhost/fleet"
	cfg.Batch.MaxConcurrentTenants = 10
	return cfg
}

func TestValidateSalestrack_StoreOnly(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("salestrack"))
}

func TestValidateSalestrack_MissingStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("salestrack")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateReplace_RequiresAdPlatform(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("replace")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ad_platform.base_url is required")

	cfg.AdPlatform.BaseURL = "https://api.adplatform.example/v5"
	assert.NoError(t, cfg.Validate("replace"))
}

func TestValidateAdsync_RequiresAdPlatformAndObjectStore(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("adsync")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ad_platform.base_url is required")
	assert.Contains(t, err.Error(), "object_store.base_url is required")

	cfg.AdPlatform.BaseURL = "https://api.adplatform.example/v5"
	cfg.ObjectStore.BaseURL = "https://objects.example"
	assert.NoError(t, cfg.Validate("adsync"))
}

func TestValidateOptimize_RequiresAdPlatform(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("optimize")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ad_platform.base_url is required")

	cfg.AdPlatform.BaseURL = "https://api.adplatform.example/v5"
	assert.NoError(t, cfg.Validate("optimize"))
}

func TestValidateWinners_RequiresAdPlatformAICreativeAndObjectStore(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("winners")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ad_platform.base_url is required")
	assert.Contains(t, err.Error(), "ai_creative.base_url is required")
	assert.Contains(t, err.Error(), "object_store.base_url is required")

	cfg.AdPlatform.BaseURL = "https://api.adplatform.example/v5"
	cfg.AICreative.BaseURL = "https://creative.example"
	cfg.ObjectStore.BaseURL = "https://objects.example"
	assert.NoError(t, cfg.Validate("winners"))
}

func TestValidateJobs_StoreOnly(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("jobs"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.MaxConcurrentTenants = 0
	err := cfg.Validate("salestrack")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.max_concurrent_tenants must be between 1 and 50")

	cfg.Batch.MaxConcurrentTenants = 51
	err = cfg.Validate("salestrack")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.max_concurrent_tenants must be between 1 and 50")

	cfg.Batch.MaxConcurrentTenants = 50
	assert.NoError(t, cfg.Validate("salestrack"))
}
