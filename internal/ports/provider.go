package ports

import (
	"context"
	"time"

	"github.com/natelewis/whalewatch-sub003/internal/domain"
)

// MarketDataProvider defines the interface for an upstream bar source
// (exchange or brokerage market-data API).
type MarketDataProvider interface {
	// GetBars retrieves the most recent historical bars for the given symbol,
	// oldest first.
	GetBars(ctx context.Context, symbol, interval string, limit int) ([]*domain.Bar, error)
	// GetBarsRange retrieves historical bars between start and end, paging
	// through the provider's response limits as needed. Oldest first.
	GetBarsRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Bar, error)
	// StreamBars subscribes to live bar updates. The handler receives every
	// update of the forming bucket, not only finalized bars. The returned
	// done channel closes when the stream ends; sending on stop terminates it.
	StreamBars(ctx context.Context, symbol, interval string, handler func(bar *domain.Bar), errHandler func(err error)) (doneCh <-chan struct{}, stopCh chan<- struct{}, err error)
}

// TapeProvider exposes last-trade and top-of-book snapshots for providers
// that report them (equities/options feeds).
type TapeProvider interface {
	// GetLatestTrade retrieves the most recent trade print for the symbol.
	GetLatestTrade(ctx context.Context, symbol string) (*domain.Trade, error)
	// GetLatestQuote retrieves the current top-of-book quote for the symbol.
	GetLatestQuote(ctx context.Context, symbol string) (*domain.Quote, error)
}
