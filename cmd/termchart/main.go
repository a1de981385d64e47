package main

import (
	"context"
	"flag"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"

	"github.com/natelewis/whalewatch-sub003/config"
	"github.com/natelewis/whalewatch-sub003/internal/adapters/alpacaclient"
	"github.com/natelewis/whalewatch-sub003/internal/adapters/binanceclient"
	"github.com/natelewis/whalewatch-sub003/internal/adapters/logger"
	"github.com/natelewis/whalewatch-sub003/internal/adapters/sqlite"
	"github.com/natelewis/whalewatch-sub003/internal/adapters/termview"
	"github.com/natelewis/whalewatch-sub003/internal/app"
	"github.com/natelewis/whalewatch-sub003/internal/chart"
	"github.com/natelewis/whalewatch-sub003/internal/ports"
)

// termchart renders the live chart as candlesticks in the terminal instead of
// serving it over HTTP.
func main() {
	rows := flag.Int("rows", 24, "price rows in the chart body")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// Frames own the terminal; logs go elsewhere or nowhere.
	appLogger := logger.NewStdLogger(logger.LevelError)

	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer repo.Close()

	var provider ports.MarketDataProvider
	switch cfg.Provider {
	case "alpaca":
		provider, err = alpacaclient.New(alpacaclient.Config{
			APIKey:    cfg.AlpacaAPIKey,
			SecretKey: cfg.AlpacaSecretKey,
			Feed:      cfg.AlpacaFeed,
			Logger:    appLogger,
		})
	default:
		provider, err = binanceclient.New(binanceclient.Config{
			APIKey:               cfg.BinanceAPIKey,
			SecretKey:            cfg.BinanceSecretKey,
			UseTestnet:           cfg.IsTestnet,
			Logger:               appLogger,
			ReconnectDelay:       cfg.ReconnectDelay,
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		})
	}
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize market data provider: %v", err)
	}

	calc, err := chart.NewCalculator(chart.Config{
		WindowSize:        cfg.ChartWindowSize,
		PaddingMultiplier: cfg.ChartPadding,
		CacheCeiling:      cfg.ChartCacheCeiling,
		Logger:            appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize chart calculator: %v", err)
	}
	loader, err := chart.NewEdgeLoader(chart.EdgeLoaderConfig{
		Threshold: cfg.ChartEdgeThreshold,
		Logger:    appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize edge loader: %v", err)
	}

	view := termview.New(os.Stdout, "whalewatch", *rows)
	renderer, err := chart.NewRenderer(chart.RendererConfig{
		Calculator: calc,
		Surface:    view,
		Loader:     loader,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize renderer: %v", err)
	}

	session, err := app.NewChartSession(cfg, appLogger, provider, repo, renderer, calc)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize chart session: %v", err)
	}

	// A terminal frame maps one bar to one rune column; size the pixel space
	// so the visible window matches the terminal width.
	if err := session.SetDimensions(context.Background(), chart.Dimensions{
		Width:  float64(cfg.ChartWindowSize),
		Height: float64(*rows),
	}); err != nil {
		log.Fatalf("FATAL: Failed to size chart: %v", err)
	}

	if err := session.Start(context.Background()); err != nil {
		log.Fatalf("FATAL: Chart session exited with error: %v", err)
	}
}
