package chart

import (
	"context"
	"sync"
	"time"

	"github.com/natelewis/whalewatch-sub003/internal/domain"
)

// Shared test doubles for the chart package.

type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

// syncScheduler runs scheduled tasks inline so edge-load outcomes are
// observable without sleeping.
type syncScheduler struct{}

func (syncScheduler) Schedule(task func()) { task() }

type mockSurface struct {
	clipLen int
	draws   []*State
	drawErr error
}

func (m *mockSurface) SetClipLength(n int) { m.clipLen = n }

func (m *mockSurface) Draw(state *State) error {
	if m.drawErr != nil {
		return m.drawErr
	}
	m.draws = append(m.draws, state)
	return nil
}

// makeBars builds n minute bars of steadily rising prices starting at base.
func makeBars(n int, base float64) []*domain.Bar {
	start := time.Date(2025, 9, 1, 9, 30, 0, 0, time.UTC)
	bars := make([]*domain.Bar, 0, n)
	for i := 0; i < n; i++ {
		p := base + float64(i)
		bars = append(bars, &domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Symbol:    "AAPL",
			Interval:  "1m",
			Open:      p,
			High:      p + 1,
			Low:       p - 1,
			Close:     p + 0.5,
			Volume:    1000,
		})
	}
	return bars
}

// dailyBars builds one bar per listed day (year-month-day triples).
func dailyBars(days [][3]int) []*domain.Bar {
	bars := make([]*domain.Bar, 0, len(days))
	for _, d := range days {
		bars = append(bars, &domain.Bar{
			Timestamp: time.Date(d[0], time.Month(d[1]), d[2], 0, 0, 0, 0, time.UTC),
			Symbol:    "AAPL",
			Interval:  "1d",
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100.5,
			Volume:    1,
		})
	}
	return bars
}

func testCalculator(t interface{ Fatalf(string, ...interface{}) }) *Calculator {
	calc, err := NewCalculator(Config{Logger: &mockLogger{}})
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}
	return calc
}

func testDims() Dimensions {
	return Dimensions{
		Width:  840,
		Height: 480,
		Margin: Margin{Top: 10, Right: 20, Bottom: 30, Left: 10},
	}
}
