package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/natelewis/whalewatch-sub003/config"
	"github.com/natelewis/whalewatch-sub003/internal/adapters/binanceclient"
	"github.com/natelewis/whalewatch-sub003/internal/adapters/logger"
	"github.com/natelewis/whalewatch-sub003/internal/adapters/sqlite"
	"github.com/natelewis/whalewatch-sub003/internal/utils"
)

func main() {
	months := flag.Int("months", 3, "how many months of history to backfill")
	csvOut := flag.Bool("csv", true, "also write the fetched bars to a CSV file")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:               cfg.BinanceAPIKey,
		SecretKey:            cfg.BinanceSecretKey,
		UseTestnet:           cfg.IsTestnet,
		Logger:               appLogger,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(context.Background(), "Binance client initialized")

	// 4. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer repo.Close()

	symbol := cfg.Symbol
	interval := cfg.Interval
	end := time.Now()
	start := end.AddDate(0, -*months, 0)

	fmt.Printf("Fetching bars for %s %s from %s to %s...\n", symbol, interval, start, end)
	bars, err := binanceClient.GetBarsRange(context.Background(), symbol, interval, start, end)
	if err != nil {
		appLogger.Error(context.Background(), err, "Error fetching bars")
		log.Fatalf("Error fetching bars: %v", err)
	}
	appLogger.Info(context.Background(), "Fetched bars", map[string]interface{}{"count": len(bars)})

	written, err := repo.UpsertBars(context.Background(), bars)
	if err != nil {
		appLogger.Error(context.Background(), err, "Error storing bars")
		log.Fatalf("Error storing bars: %v", err)
	}
	appLogger.Info(context.Background(), "Stored bars", map[string]interface{}{"written": written, "dbPath": cfg.DBPath})

	if *csvOut {
		filename := fmt.Sprintf("data/%s_%s_%s_to_%s.csv", symbol, interval, start.Format("20060102"), end.Format("20060102"))
		if err := utils.WriteBarsToCSV(bars, filename); err != nil {
			appLogger.Error(context.Background(), err, "Error writing CSV")
			log.Fatalf("Error writing CSV: %v", err)
		}
		appLogger.Info(context.Background(), "Saved to", map[string]interface{}{"filename": filename})
	}
}
