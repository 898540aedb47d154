package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "consulta.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 45, cfg.Fallback.TimeoutSecs)
	assert.Equal(t, 45*time.Second, cfg.Fallback.Timeout())
	assert.Equal(t, int64(5<<20), cfg.Fallback.MaxBodyBytes)
	assert.Equal(t, 156, cfg.Consulta.ModuleID)
	assert.Equal(t, "/dashboard/consultar-nome-completo", cfg.Consulta.RouteKey)
	assert.Equal(t, "consultar-nome-completo", cfg.Consulta.SourceFeature)
	assert.Equal(t, 5, cfg.Consulta.MinLength)
	assert.Equal(t, []string{"pastebin.sbs", "pastebin.com"}, cfg.Consulta.TrustedHosts)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.Equal(t, 30, cfg.Circuit.CooldownSecs)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 100, cfg.History.PageSize)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/consulta
log:
  level: debug
  format: console
server:
  port: 9090
consulta:
  module_id: 200
  trusted_hosts: [reports.example.com]
pricing:
  route_prices:
    /dashboard/consultar-nome-completo: 12.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 200, cfg.Consulta.ModuleID)
	assert.Equal(t, []string{"reports.example.com"}, cfg.Consulta.TrustedHosts)
	assert.InDelta(t, 12.5, cfg.Pricing.RoutePrices["/dashboard/consultar-nome-completo"], 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Consulta.MinLength)
	assert.Equal(t, 45, cfg.Fallback.TimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("CONSULTA_STORE_DRIVER", "postgres")
	t.Setenv("CONSULTA_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CONSULTA_SERVER_PORT", "3000")
	t.Setenv("CONSULTA_SESSION_TOKEN", "tok-123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "tok-123", cfg.Session.Token)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [\n"), 0o644))

	_, err := Load()
	assert.Error(t, err)
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

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "consulta.db"
	cfg.Provider.BaseURL = "http://provider"
	cfg.Painel.BaseURL = "http://painel"
	cfg.Consulta.MinLength = 5
	cfg.Fallback.TimeoutSecs = 45
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateSearch_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("search"))
}

func TestValidateSearch_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Provider.BaseURL = ""
	cfg.Painel.BaseURL = ""
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "provider.base_url is required")
	assert.Contains(t, err.Error(), "painel.base_url is required")
}

func TestValidateHistory_OnlyNeedsStore(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/x"

	assert.NoError(t, cfg.Validate("history"))
}

func TestValidateUnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql"`)
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// search does not need a port
	assert.NoError(t, cfg.Validate("search"))
}

func TestValidateBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Consulta.MinLength = 0
	cfg.Fallback.TimeoutSecs = 0

	err := cfg.Validate("search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consulta.min_length must be > 0")
	assert.Contains(t, err.Error(), "fallback.timeout_secs must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
