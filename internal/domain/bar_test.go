package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(minuteOffset int, close float64) *Bar {
	base := time.Date(2025, 9, 1, 9, 30, 0, 0, time.UTC)
	return &Bar{
		Timestamp: base.Add(time.Duration(minuteOffset) * time.Minute),
		Symbol:    "ETHUSDT",
		Interval:  "1m",
		Open:      close - 0.5,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    10,
	}
}

func TestBarValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(b *Bar)
		wantErr bool
	}{
		{name: "valid", mutate: func(b *Bar) {}},
		{name: "flat bar", mutate: func(b *Bar) { b.High = b.Close; b.Low = b.Close; b.Open = b.Close }},
		{name: "low above body", mutate: func(b *Bar) { b.Low = b.Open + 1 }, wantErr: true},
		{name: "high below body", mutate: func(b *Bar) { b.High = b.Close - 1 }, wantErr: true},
		{name: "negative volume", mutate: func(b *Bar) { b.Volume = -1 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bar(0, 100)
			tt.mutate(b)
			err := b.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAppendBarReplacesFormingBucket(t *testing.T) {
	bars := []*Bar{bar(0, 100), bar(1, 101)}

	// The provider re-sends the forming bucket; same timestamp replaces.
	update := bar(1, 105)
	bars = AppendBar(bars, update)
	require.Len(t, bars, 2)
	assert.Equal(t, 105.0, bars[1].Close)

	// A newer bucket appends.
	bars = AppendBar(bars, bar(2, 102))
	assert.Len(t, bars, 3)

	// An out-of-order (older) bar is dropped.
	bars = AppendBar(bars, bar(1, 999))
	require.Len(t, bars, 3)
	assert.Equal(t, 102.0, bars[2].Close)

	// Nil is a no-op.
	assert.Len(t, AppendBar(bars, nil), 3)
}

func TestAppendBarIntoEmptyDataset(t *testing.T) {
	bars := AppendBar(nil, bar(5, 100))
	require.Len(t, bars, 1)
	assert.Equal(t, 100.0, bars[0].Close)
}

func TestPrependBarsKeepsOrdering(t *testing.T) {
	bars := []*Bar{bar(10, 110), bar(11, 111)}
	older := []*Bar{bar(7, 107), bar(8, 108), bar(9, 109)}

	merged := PrependBars(bars, older)
	require.Len(t, merged, 5)
	assert.True(t, SortedByTime(merged))
	assert.Equal(t, 107.0, merged[0].Close)
	assert.Equal(t, 111.0, merged[4].Close)
}

func TestPrependBarsDropsOverlap(t *testing.T) {
	bars := []*Bar{bar(10, 110), bar(11, 111)}
	// The page's tail overlaps the current head; the overlap is dropped.
	older := []*Bar{bar(8, 108), bar(9, 109), bar(10, 999)}

	merged := PrependBars(bars, older)
	require.Len(t, merged, 4)
	assert.True(t, SortedByTime(merged))
	assert.Equal(t, 110.0, merged[2].Close, "existing head wins over the overlapping page bar")
}

func TestPrependBarsEdgeCases(t *testing.T) {
	bars := []*Bar{bar(10, 110)}
	assert.Equal(t, bars, PrependBars(bars, nil))

	fresh := PrependBars(nil, []*Bar{bar(1, 101)})
	assert.Len(t, fresh, 1)

	// A page entirely at-or-after the head contributes nothing.
	assert.Len(t, PrependBars(bars, []*Bar{bar(10, 1), bar(12, 2)}), 1)
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "1m", want: time.Minute},
		{in: "15m", want: 15 * time.Minute},
		{in: "4h", want: 4 * time.Hour},
		{in: "1d", want: 24 * time.Hour},
		{in: "1w", want: 7 * 24 * time.Hour},
		{in: "30s", want: 30 * time.Second},
		{in: "", wantErr: true},
		{in: "m", wantErr: true},
		{in: "0m", wantErr: true},
		{in: "-5m", wantErr: true},
		{in: "5x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterval(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
