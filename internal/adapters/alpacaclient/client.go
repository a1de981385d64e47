package alpacaclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"

	"github.com/natelewis/whalewatch-sub003/internal/domain"
	"github.com/natelewis/whalewatch-sub003/internal/ports"
)

// Client implements ports.MarketDataProvider and ports.TapeProvider for
// equities using the Alpaca market-data API.
type Client struct {
	md        *marketdata.Client
	feed      marketdata.Feed
	apiKey    string
	secretKey string
	logger    ports.Logger
}

// Config holds configuration specific to the Alpaca client adapter.
type Config struct {
	APIKey    string
	SecretKey string
	Feed      string // "iex" (free) or "sip"; defaults to iex
	Logger    ports.Logger
}

// New creates a new Alpaca market-data adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Alpaca client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: Alpaca API key and secret are required", ports.ErrConfigurationError)
	}

	feed := marketdata.IEX
	if strings.EqualFold(cfg.Feed, "sip") {
		feed = marketdata.SIP
	}

	md := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.SecretKey,
	})
	cfg.Logger.Info(context.Background(), "Alpaca market-data client configured", map[string]interface{}{"feed": string(feed)})

	return &Client{md: md, feed: feed, apiKey: cfg.APIKey, secretKey: cfg.SecretKey, logger: cfg.Logger}, nil
}

// timeFrameFor maps an interval string like "1m", "15m", "4h" or "1d" onto
// the Alpaca timeframe type.
func timeFrameFor(interval string) (marketdata.TimeFrame, time.Duration, error) {
	if len(interval) < 2 {
		return marketdata.TimeFrame{}, 0, fmt.Errorf("%w: unsupported interval %q", ports.ErrInvalidRequest, interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return marketdata.TimeFrame{}, 0, fmt.Errorf("%w: unsupported interval %q", ports.ErrInvalidRequest, interval)
	}
	switch interval[len(interval)-1] {
	case 'm':
		return marketdata.NewTimeFrame(n, marketdata.Min), time.Duration(n) * time.Minute, nil
	case 'h':
		return marketdata.NewTimeFrame(n, marketdata.Hour), time.Duration(n) * time.Hour, nil
	case 'd':
		return marketdata.NewTimeFrame(n, marketdata.Day), time.Duration(n) * 24 * time.Hour, nil
	default:
		return marketdata.TimeFrame{}, 0, fmt.Errorf("%w: unsupported interval %q", ports.ErrInvalidRequest, interval)
	}
}

func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	c.logger.Error(ctx, err, "Alpaca request failed", map[string]interface{}{"operation": operation})

	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"):
		return fmt.Errorf("%s: %w", operation, ports.ErrRateLimited)
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return fmt.Errorf("%s: %w", operation, ports.ErrAuthenticationFailed)
	case strings.Contains(msg, "404"):
		return fmt.Errorf("%s: %w", operation, ports.ErrSymbolNotFound)
	default:
		return fmt.Errorf("%s: %w: %v", operation, ports.ErrProviderUnavailable, err)
	}
}

// GetBars retrieves the most recent historical bars, oldest first.
func (c *Client) GetBars(ctx context.Context, symbol, interval string, limit int) ([]*domain.Bar, error) {
	op := "GetBars"
	tf, dur, err := timeFrameFor(interval)
	if err != nil {
		return nil, err
	}

	// The bars endpoint pages forward from Start, so reach back far enough
	// to cover weekends and holidays and keep the tail.
	start := time.Now().Add(-time.Duration(limit) * dur * 4)
	raw, err := c.md.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     start,
		Feed:      c.feed,
	})
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if len(raw) > limit {
		raw = raw[len(raw)-limit:]
	}
	return translateBars(raw, symbol, interval), nil
}

// GetBarsRange fetches all bars between start and end, oldest first. The
// Alpaca SDK pages internally.
func (c *Client) GetBarsRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Bar, error) {
	op := "GetBarsRange"
	tf, _, err := timeFrameFor(interval)
	if err != nil {
		return nil, err
	}
	raw, err := c.md.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     start,
		End:       end,
		Feed:      c.feed,
	})
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	return translateBars(raw, symbol, interval), nil
}

// StreamBars subscribes to live bar updates over the Alpaca stocks stream.
// The stream only emits minute bars; coarser intervals should aggregate
// downstream or use the Binance provider.
func (c *Client) StreamBars(ctx context.Context, symbol, interval string, handler func(bar *domain.Bar), errHandler func(err error)) (<-chan struct{}, chan<- struct{}, error) {
	op := "StreamBars"
	wsCtx, cancelWs := context.WithCancel(ctx)

	sc := stream.NewStocksClient(c.feed, stream.WithCredentials(c.apiKey, c.secretKey))
	if err := sc.Connect(wsCtx); err != nil {
		cancelWs()
		return nil, nil, c.handleError(ctx, err, op+" connect")
	}

	barHandler := func(b stream.Bar) {
		handler(&domain.Bar{
			Timestamp: b.Timestamp.UTC(),
			Symbol:    b.Symbol,
			Interval:  interval,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		})
	}
	if err := sc.SubscribeToBars(barHandler, symbol); err != nil {
		cancelWs()
		return nil, nil, c.handleError(ctx, err, op+" subscribe")
	}
	c.logger.Info(wsCtx, op+": Alpaca stream established.", map[string]interface{}{"symbol": symbol, "feed": string(c.feed)})

	doneCh := make(chan struct{})
	stopCh := make(chan struct{})

	go func() {
		defer cancelWs()
		defer close(doneCh)
		select {
		case err := <-sc.Terminated():
			if err != nil {
				errHandler(c.handleError(wsCtx, err, op+" stream"))
			}
		case <-stopCh:
			c.logger.Info(wsCtx, op+": Received external stop signal, closing stream.", map[string]interface{}{"symbol": symbol})
			cancelWs()
			<-sc.Terminated()
		case <-wsCtx.Done():
			<-sc.Terminated()
		}
	}()

	return doneCh, stopCh, nil
}

// GetLatestTrade retrieves the most recent trade print for the symbol.
func (c *Client) GetLatestTrade(ctx context.Context, symbol string) (*domain.Trade, error) {
	op := "GetLatestTrade"
	t, err := c.md.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{Feed: c.feed})
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if t == nil {
		return nil, fmt.Errorf("%s: %w", op, ports.ErrNotFound)
	}
	return &domain.Trade{
		ID:        t.ID,
		Symbol:    symbol,
		Timestamp: t.Timestamp.UTC(),
		Price:     t.Price,
		Size:      float64(t.Size),
		Exchange:  t.Exchange,
		Tape:      t.Tape,
	}, nil
}

// GetLatestQuote retrieves the current top-of-book quote for the symbol.
func (c *Client) GetLatestQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	op := "GetLatestQuote"
	q, err := c.md.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{Feed: c.feed})
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if q == nil {
		return nil, fmt.Errorf("%s: %w", op, ports.ErrNotFound)
	}
	return &domain.Quote{
		Symbol:      symbol,
		Timestamp:   q.Timestamp.UTC(),
		BidPrice:    q.BidPrice,
		BidSize:     float64(q.BidSize),
		BidExchange: q.BidExchange,
		AskPrice:    q.AskPrice,
		AskSize:     float64(q.AskSize),
		AskExchange: q.AskExchange,
	}, nil
}

func translateBars(raw []marketdata.Bar, symbol, interval string) []*domain.Bar {
	bars := make([]*domain.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, &domain.Bar{
			Timestamp: b.Timestamp.UTC(),
			Symbol:    symbol,
			Interval:  interval,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		})
	}
	return bars
}
