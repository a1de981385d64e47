package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/natelewis/whalewatch-sub003/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Market data provider selection: "binance" or "alpaca"
	Provider string

	// Binance API (keys optional; kline endpoints are public)
	BinanceAPIKey    string
	BinanceSecretKey string
	IsTestnet        bool

	// Alpaca API
	AlpacaAPIKey    string
	AlpacaSecretKey string
	AlpacaFeed      string // "iex" or "sip"

	// Instrument
	Symbol   string
	Interval string // bar interval, e.g. "1m", "5m", "1d"

	// Chart Parameters
	ChartWindowSize    int     // bars visible at 1:1 zoom
	ChartPadding       float64 // dynamic Y-domain padding fraction
	ChartEdgeThreshold int     // bars from an edge that arms a background load
	ChartCacheCeiling  int     // memo-cache entries per category
	EdgeLoadChunk      int     // bars fetched per edge-triggered load

	// HTTP Server
	HTTPAddr string // listen address for the REST/WebSocket server; empty disables it

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter

	// Connection Settings
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	// Provider selection
	cfg.Provider = strings.ToLower(getEnv("PROVIDER", "binance"))
	if cfg.Provider != "binance" && cfg.Provider != "alpaca" {
		errs = append(errs, fmt.Sprintf("PROVIDER must be 'binance' or 'alpaca', got %q", cfg.Provider))
	}

	// Binance API
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	// Alpaca API (required only when selected)
	cfg.AlpacaAPIKey = getEnv("APCA_API_KEY_ID", "")
	cfg.AlpacaSecretKey = getEnv("APCA_API_SECRET_KEY", "")
	cfg.AlpacaFeed = strings.ToLower(getEnv("ALPACA_FEED", "iex"))
	if cfg.Provider == "alpaca" {
		if cfg.AlpacaAPIKey == "" {
			errs = append(errs, "APCA_API_KEY_ID must be set when PROVIDER=alpaca")
		}
		if cfg.AlpacaSecretKey == "" {
			errs = append(errs, "APCA_API_SECRET_KEY must be set when PROVIDER=alpaca")
		}
		if cfg.AlpacaFeed != "iex" && cfg.AlpacaFeed != "sip" {
			errs = append(errs, fmt.Sprintf("ALPACA_FEED must be 'iex' or 'sip', got %q", cfg.AlpacaFeed))
		}
	}

	// Instrument
	cfg.Symbol = getEnv("SYMBOL", "ETHUSDT")
	if cfg.Symbol == "" {
		errs = append(errs, "SYMBOL must be set")
	}
	cfg.Interval = getEnv("INTERVAL", "1m")
	if cfg.Interval == "" {
		errs = append(errs, "INTERVAL must be set")
	}

	// Chart Parameters
	cfg.ChartWindowSize = getEnvAsInt("CHART_WINDOW_SIZE", 80)
	if cfg.ChartWindowSize <= 0 {
		errs = append(errs, "CHART_WINDOW_SIZE must be positive")
	}
	cfg.ChartPadding = getEnvAsFloat("CHART_PADDING", 0.05)
	if cfg.ChartPadding <= 0 || cfg.ChartPadding >= 1 {
		errs = append(errs, "CHART_PADDING must be between 0.0 and 1.0 (exclusive)")
	}
	cfg.ChartEdgeThreshold = getEnvAsInt("CHART_EDGE_THRESHOLD", 10)
	if cfg.ChartEdgeThreshold < 0 {
		errs = append(errs, "CHART_EDGE_THRESHOLD cannot be negative")
	}
	cfg.ChartCacheCeiling = getEnvAsInt("CHART_CACHE_CEILING", 100)
	if cfg.ChartCacheCeiling <= 0 {
		errs = append(errs, "CHART_CACHE_CEILING must be positive")
	}
	cfg.EdgeLoadChunk = getEnvAsInt("EDGE_LOAD_CHUNK", 500)
	if cfg.EdgeLoadChunk <= 0 {
		errs = append(errs, "EDGE_LOAD_CHUNK must be positive")
	}

	// HTTP Server
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/whalewatch.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Connection Settings
	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 5)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second

	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS cannot be negative")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
