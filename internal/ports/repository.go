package ports

import (
	"context"
	"time"

	"github.com/natelewis/whalewatch-sub003/internal/domain"
)

// BarRepository defines the interface for the time-series bar store.
type BarRepository interface {
	// UpsertBars inserts or replaces bars keyed by (symbol, interval,
	// timestamp) and returns the number of rows written. Backfill-safe:
	// re-ingesting an overlapping page is a no-op for unchanged rows.
	UpsertBars(ctx context.Context, bars []*domain.Bar) (int, error)
	// LatestBars retrieves the newest bars for a symbol/interval, oldest first.
	LatestBars(ctx context.Context, symbol, interval string, limit int) ([]*domain.Bar, error)
	// BarsBefore retrieves up to limit bars strictly older than ts, oldest first.
	BarsBefore(ctx context.Context, symbol, interval string, ts time.Time, limit int) ([]*domain.Bar, error)
	// BarsAfter retrieves up to limit bars strictly newer than ts, oldest first.
	BarsAfter(ctx context.Context, symbol, interval string, ts time.Time, limit int) ([]*domain.Bar, error)
	// CountBars returns the number of stored bars for a symbol/interval.
	CountBars(ctx context.Context, symbol, interval string) (int64, error)
}

// TradeRepository defines the interface for storing market trade prints.
type TradeRepository interface {
	// InsertTrades stores trade prints, ignoring duplicates, and returns the
	// number of new rows.
	InsertTrades(ctx context.Context, trades []*domain.Trade) (int, error)
	// RecentTrades retrieves the most recent trades for a symbol, newest first.
	RecentTrades(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error)
}

// QuoteRepository defines the interface for storing top-of-book snapshots.
type QuoteRepository interface {
	// InsertQuote stores a quote snapshot.
	InsertQuote(ctx context.Context, quote *domain.Quote) error
	// LatestQuote retrieves the most recent stored quote for a symbol.
	// Returns nil, nil when none exists.
	LatestQuote(ctx context.Context, symbol string) (*domain.Quote, error)
}
