package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natelewis/whalewatch-sub003/internal/adapters/logger"
)

// clearEnv blanks every variable LoadConfig reads so that a developer's
// local environment cannot leak into the assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PROVIDER", "BINANCE_API_KEY", "BINANCE_API_SECRET", "IS_TESTNET",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY", "ALPACA_FEED",
		"SYMBOL", "INTERVAL",
		"CHART_WINDOW_SIZE", "CHART_PADDING", "CHART_EDGE_THRESHOLD",
		"CHART_CACHE_CEILING", "EDGE_LOAD_CHUNK",
		"HTTP_ADDR", "DB_PATH", "LOG_LEVEL",
		"RECONNECT_DELAY_SECONDS", "MAX_RECONNECT_ATTEMPTS",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "binance", cfg.Provider)
	assert.False(t, cfg.IsTestnet)
	assert.Equal(t, "ETHUSDT", cfg.Symbol)
	assert.Equal(t, "1m", cfg.Interval)
	assert.Equal(t, 80, cfg.ChartWindowSize)
	assert.Equal(t, 0.05, cfg.ChartPadding)
	assert.Equal(t, 10, cfg.ChartEdgeThreshold)
	assert.Equal(t, 100, cfg.ChartCacheCeiling)
	assert.Equal(t, 500, cfg.EdgeLoadChunk)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "./data/whalewatch.db", cfg.DBPath)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 10, cfg.MaxReconnectAttempts)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SYMBOL", "BTCUSDT")
	t.Setenv("INTERVAL", "5m")
	t.Setenv("CHART_WINDOW_SIZE", "120")
	t.Setenv("CHART_PADDING", "0.1")
	t.Setenv("IS_TESTNET", "true")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("RECONNECT_DELAY_SECONDS", "2")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, "5m", cfg.Interval)
	assert.Equal(t, 120, cfg.ChartWindowSize)
	assert.Equal(t, 0.1, cfg.ChartPadding)
	assert.True(t, cfg.IsTestnet)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.ReconnectDelay)
}

func TestLoadConfig_InvalidProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER", "kraken")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROVIDER")
}

func TestLoadConfig_AlpacaRequiresKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER", "alpaca")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APCA_API_KEY_ID")
	assert.Contains(t, err.Error(), "APCA_API_SECRET_KEY")
}

func TestLoadConfig_AlpacaWithKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER", "alpaca")
	t.Setenv("APCA_API_KEY_ID", "key")
	t.Setenv("APCA_API_SECRET_KEY", "secret")
	t.Setenv("ALPACA_FEED", "sip")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "alpaca", cfg.Provider)
	assert.Equal(t, "sip", cfg.AlpacaFeed)
}

func TestLoadConfig_InvalidChartParams(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHART_WINDOW_SIZE", "0")
	t.Setenv("CHART_PADDING", "1.5")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHART_WINDOW_SIZE")
	assert.Contains(t, err.Error(), "CHART_PADDING")
}

func TestLoadConfig_MalformedNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHART_WINDOW_SIZE", "eighty")
	t.Setenv("EDGE_LOAD_CHUNK", "lots")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.ChartWindowSize)
	assert.Equal(t, 500, cfg.EdgeLoadChunk)
}
