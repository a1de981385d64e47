package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natelewis/whalewatch-sub003/internal/domain"
)

type fakeTape struct {
	trade    *domain.Trade
	quote    *domain.Quote
	tradeErr error
}

func (f *fakeTape) GetLatestTrade(ctx context.Context, symbol string) (*domain.Trade, error) {
	return f.trade, f.tradeErr
}

func (f *fakeTape) GetLatestQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	return f.quote, nil
}

type memTradeRepo struct {
	mu     sync.Mutex
	trades []*domain.Trade
}

func (r *memTradeRepo) InsertTrades(ctx context.Context, trades []*domain.Trade) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, trades...)
	return len(trades), nil
}

func (r *memTradeRepo) RecentTrades(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trades, nil
}

type memQuoteRepo struct {
	mu     sync.Mutex
	quotes []*domain.Quote
}

func (r *memQuoteRepo) InsertQuote(ctx context.Context, quote *domain.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotes = append(r.quotes, quote)
	return nil
}

func (r *memQuoteRepo) LatestQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.quotes) == 0 {
		return nil, nil
	}
	return r.quotes[len(r.quotes)-1], nil
}

func TestTapePollerDeduplicatesTrades(t *testing.T) {
	tape := &fakeTape{
		trade: &domain.Trade{ID: 7, Symbol: "AAPL", Price: 230.5, Size: 100, Timestamp: time.Now().UTC()},
		quote: &domain.Quote{Symbol: "AAPL", BidPrice: 230.4, AskPrice: 230.6, Timestamp: time.Now().UTC()},
	}
	trades := &memTradeRepo{}
	quotes := &memQuoteRepo{}

	p, err := NewTapePoller(noopLogger{}, tape, trades, quotes, "AAPL", time.Second)
	require.NoError(t, err)

	ctx := context.Background()
	p.poll(ctx)
	p.poll(ctx) // same trade ID again

	assert.Len(t, trades.trades, 1, "unchanged trade ID must not be re-inserted")
	assert.Len(t, quotes.quotes, 2, "quotes are snapshots; every poll stores one")

	// A new print gets stored.
	tape.trade = &domain.Trade{ID: 8, Symbol: "AAPL", Price: 230.7, Size: 50, Timestamp: time.Now().UTC()}
	p.poll(ctx)
	assert.Len(t, trades.trades, 2)
}

func TestTapePollerSurvivesProviderErrors(t *testing.T) {
	tape := &fakeTape{
		tradeErr: errors.New("rate limited"),
		quote:    &domain.Quote{Symbol: "AAPL", BidPrice: 1, AskPrice: 2, Timestamp: time.Now().UTC()},
	}
	trades := &memTradeRepo{}
	quotes := &memQuoteRepo{}

	p, err := NewTapePoller(noopLogger{}, tape, trades, quotes, "AAPL", time.Second)
	require.NoError(t, err)

	p.poll(context.Background())
	assert.Empty(t, trades.trades)
	assert.Len(t, quotes.quotes, 1, "quote path is independent of trade failures")
}

func TestNewTapePollerValidates(t *testing.T) {
	_, err := NewTapePoller(nil, &fakeTape{}, &memTradeRepo{}, &memQuoteRepo{}, "AAPL", 0)
	assert.Error(t, err)
	_, err = NewTapePoller(noopLogger{}, &fakeTape{}, &memTradeRepo{}, &memQuoteRepo{}, "", 0)
	assert.Error(t, err)
}
