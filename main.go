package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"github.com/natelewis/whalewatch-sub003/config"
	"github.com/natelewis/whalewatch-sub003/internal/adapters/alpacaclient"
	"github.com/natelewis/whalewatch-sub003/internal/adapters/binanceclient"
	"github.com/natelewis/whalewatch-sub003/internal/adapters/logger"
	"github.com/natelewis/whalewatch-sub003/internal/adapters/sqlite"
	"github.com/natelewis/whalewatch-sub003/internal/app"
	"github.com/natelewis/whalewatch-sub003/internal/chart"
	"github.com/natelewis/whalewatch-sub003/internal/ports"
	"github.com/natelewis/whalewatch-sub003/internal/server"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Market Data Provider
	var provider ports.MarketDataProvider
	var tape ports.TapeProvider
	switch cfg.Provider {
	case "alpaca":
		alpaca, err := alpacaclient.New(alpacaclient.Config{
			APIKey:    cfg.AlpacaAPIKey,
			SecretKey: cfg.AlpacaSecretKey,
			Feed:      cfg.AlpacaFeed,
			Logger:    appLogger,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Alpaca client")
			log.Fatalf("FATAL: Failed to initialize Alpaca client: %v", err)
		}
		provider = alpaca
		tape = alpaca
	default:
		binance, err := binanceclient.New(binanceclient.Config{
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
		provider = binance
	}
	appLogger.Info(context.Background(), "Market data provider initialized", map[string]interface{}{"provider": cfg.Provider})

	// 5. Initialize Chart Pipeline
	calc, err := chart.NewCalculator(chart.Config{
		WindowSize:        cfg.ChartWindowSize,
		PaddingMultiplier: cfg.ChartPadding,
		CacheCeiling:      cfg.ChartCacheCeiling,
		Logger:            appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize chart calculator")
		log.Fatalf("FATAL: Failed to initialize chart calculator: %v", err)
	}
	loader, err := chart.NewEdgeLoader(chart.EdgeLoaderConfig{
		Threshold: cfg.ChartEdgeThreshold,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize edge loader")
		log.Fatalf("FATAL: Failed to initialize edge loader: %v", err)
	}

	hub := server.NewHub(appLogger)
	renderer, err := chart.NewRenderer(chart.RendererConfig{
		Calculator: calc,
		Surface:    hub,
		Loader:     loader,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize renderer")
		log.Fatalf("FATAL: Failed to initialize renderer: %v", err)
	}

	// 6. Initialize Application Service
	session, err := app.NewChartSession(
		cfg,
		appLogger,
		provider, // Pass the concrete implementation, service expects the interface
		repo,     // Pass the concrete implementation, service expects the interface
		renderer,
		calc,
	)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize chart session")
		log.Fatalf("FATAL: Failed to initialize chart session: %v", err)
	}
	appLogger.Info(context.Background(), "Chart session initialized")

	// 7. Run: fan-out hub, HTTP server, and (for equities) the tape poller
	// share the session's lifetime. The session blocks until shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	if cfg.HTTPAddr != "" {
		httpServer, err := server.New(server.Config{
			Addr:      cfg.HTTPAddr,
			Logger:    appLogger,
			Session:   session,
			Hub:       hub,
			TradeRepo: repo,
			QuoteRepo: repo,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize HTTP server")
			log.Fatalf("FATAL: Failed to initialize HTTP server: %v", err)
		}
		go func() {
			if err := httpServer.Start(ctx); err != nil {
				appLogger.Error(ctx, err, "HTTP server exited with error")
				cancel()
			}
		}()
	}

	if tape != nil {
		poller, err := app.NewTapePoller(appLogger, tape, repo, repo, cfg.Symbol, 0)
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize tape poller")
			log.Fatalf("FATAL: Failed to initialize tape poller: %v", err)
		}
		go poller.Run(ctx)
	}

	// 8. Start the Service
	if err := session.Start(ctx); err != nil {
		appLogger.Error(context.Background(), err, "Chart session exited with error")
		log.Fatalf("FATAL: Chart session exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
