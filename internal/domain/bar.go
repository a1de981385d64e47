package domain

import (
	"fmt"
	"time"
)

// Bar represents a single OHLCV sample for a fixed time bucket.
// Bars are immutable once created; datasets grow only by appending newer
// bars or prepending older history.
type Bar struct {
	Timestamp time.Time // Start time of the bucket
	Symbol    string    // Instrument symbol (e.g., "AAPL", "ETHUSDT")
	Interval  string    // Bucket interval (e.g., "1m", "1d")
	Open      float64   // Opening price
	High      float64   // Highest price
	Low       float64   // Lowest price
	Close     float64   // Closing price
	Volume    float64   // Traded volume
}

// Validate checks the OHLC ordering invariant: low <= min(open,close) and
// max(open,close) <= high, with a non-negative volume.
func (b *Bar) Validate() error {
	body := b.Open
	if b.Close < body {
		body = b.Close
	}
	top := b.Open
	if b.Close > top {
		top = b.Close
	}
	if b.Low > body {
		return fmt.Errorf("bar %s %s: low %.6f above body %.6f", b.Symbol, b.Timestamp.Format(time.RFC3339), b.Low, body)
	}
	if b.High < top {
		return fmt.Errorf("bar %s %s: high %.6f below body %.6f", b.Symbol, b.Timestamp.Format(time.RFC3339), b.High, top)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s %s: negative volume %.6f", b.Symbol, b.Timestamp.Format(time.RFC3339), b.Volume)
	}
	return nil
}

// AppendBar adds a streamed bar to the right edge of a dataset.
// A bar carrying the same timestamp as the current last bar replaces it
// (the provider re-sends the forming bucket on every update); an older
// timestamp is dropped, preserving the non-decreasing ordering.
func AppendBar(bars []*Bar, bar *Bar) []*Bar {
	if bar == nil {
		return bars
	}
	n := len(bars)
	if n == 0 {
		return append(bars, bar)
	}
	last := bars[n-1].Timestamp
	switch {
	case bar.Timestamp.Equal(last):
		bars[n-1] = bar
		return bars
	case bar.Timestamp.Before(last):
		return bars
	default:
		return append(bars, bar)
	}
}

// PrependBars inserts an older history page in front of a dataset, dropping
// any incoming bar that would break the timestamp ordering against the
// current head.
func PrependBars(bars []*Bar, older []*Bar) []*Bar {
	if len(older) == 0 {
		return bars
	}
	if len(bars) == 0 {
		return append([]*Bar(nil), older...)
	}
	head := bars[0].Timestamp
	cut := len(older)
	for cut > 0 && !older[cut-1].Timestamp.Before(head) {
		cut--
	}
	if cut == 0 {
		return bars
	}
	merged := make([]*Bar, 0, cut+len(bars))
	merged = append(merged, older[:cut]...)
	merged = append(merged, bars...)
	return merged
}

// SortedByTime reports whether the bars are in non-decreasing timestamp order.
func SortedByTime(bars []*Bar) bool {
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp.Before(bars[i-1].Timestamp) {
			return false
		}
	}
	return true
}
