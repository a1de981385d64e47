package app

import (
	"context"
	"fmt"
	"time"

	"github.com/natelewis/whalewatch-sub003/internal/domain"
	"github.com/natelewis/whalewatch-sub003/internal/ports"
)

// TapePoller periodically snapshots the last trade and top-of-book quote for
// a symbol and persists them, so the dashboard's tape endpoints have data
// even when the provider offers no trade stream.
type TapePoller struct {
	logger    ports.Logger
	tape      ports.TapeProvider
	tradeRepo ports.TradeRepository
	quoteRepo ports.QuoteRepository
	symbol    string
	interval  time.Duration

	lastTradeID int64
}

// NewTapePoller creates a poller. interval defaults to 5s.
func NewTapePoller(logger ports.Logger, tape ports.TapeProvider, tradeRepo ports.TradeRepository, quoteRepo ports.QuoteRepository, symbol string, interval time.Duration) (*TapePoller, error) {
	if logger == nil || tape == nil || tradeRepo == nil || quoteRepo == nil {
		return nil, fmt.Errorf("missing required dependencies for TapePoller")
	}
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required for TapePoller")
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &TapePoller{
		logger:    logger,
		tape:      tape,
		tradeRepo: tradeRepo,
		quoteRepo: quoteRepo,
		symbol:    symbol,
		interval:  interval,
	}, nil
}

// Run polls until ctx is cancelled. Poll failures are logged and retried on
// the next tick.
func (p *TapePoller) Run(ctx context.Context) {
	p.logger.Info(ctx, "Tape poller started", map[string]interface{}{"symbol": p.symbol, "interval": p.interval.String()})
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info(ctx, "Tape poller stopped", map[string]interface{}{"symbol": p.symbol})
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *TapePoller) poll(ctx context.Context) {
	trade, err := p.tape.GetLatestTrade(ctx, p.symbol)
	if err != nil {
		p.logger.Warn(ctx, "Failed to fetch latest trade", map[string]interface{}{"symbol": p.symbol, "error": err.Error()})
	} else if trade != nil && trade.ID != p.lastTradeID {
		if _, err := p.tradeRepo.InsertTrades(ctx, []*domain.Trade{trade}); err != nil {
			p.logger.Warn(ctx, "Failed to persist trade", map[string]interface{}{"symbol": p.symbol, "error": err.Error()})
		} else {
			p.lastTradeID = trade.ID
		}
	}

	quote, err := p.tape.GetLatestQuote(ctx, p.symbol)
	if err != nil {
		p.logger.Warn(ctx, "Failed to fetch latest quote", map[string]interface{}{"symbol": p.symbol, "error": err.Error()})
	} else if quote != nil {
		if err := p.quoteRepo.InsertQuote(ctx, quote); err != nil {
			p.logger.Warn(ctx, "Failed to persist quote", map[string]interface{}{"symbol": p.symbol, "error": err.Error()})
		}
	}
}
