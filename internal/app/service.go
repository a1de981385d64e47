package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/natelewis/whalewatch-sub003/config"
	"github.com/natelewis/whalewatch-sub003/internal/chart"
	"github.com/natelewis/whalewatch-sub003/internal/domain"
	"github.com/natelewis/whalewatch-sub003/internal/ports"
)

const (
	initialLoadLimit = 500 // bars fetched for the first render
)

// ChartSession owns one symbol's dataset and drives the render pipeline:
// initial load, live stream updates, pan/skip navigation, and edge-triggered
// history loads. All dataset mutation happens under its mutex.
type ChartSession struct {
	cfg      *config.Config
	logger   ports.Logger
	provider ports.MarketDataProvider
	barRepo  ports.BarRepository
	renderer *chart.Renderer
	calc     *chart.Calculator

	// State fields
	mu            sync.Mutex // Protects access to state fields below
	bars          []*domain.Bar
	dims          chart.Dimensions
	lastState     *chart.State
	lockedDomain  *chart.PriceDomain // carried across pans so Y stays put mid-gesture
	leftExhausted bool               // no more history upstream
}

// NewChartSession creates a new application service instance.
func NewChartSession(
	cfg *config.Config,
	logger ports.Logger,
	provider ports.MarketDataProvider,
	barRepo ports.BarRepository,
	renderer *chart.Renderer,
	calc *chart.Calculator,
) (*ChartSession, error) {

	// Validate dependencies
	if cfg == nil || logger == nil || provider == nil || barRepo == nil || renderer == nil || calc == nil {
		return nil, fmt.Errorf("missing required dependencies for ChartSession")
	}
	if cfg.EdgeLoadChunk <= 0 {
		return nil, fmt.Errorf("configuration EdgeLoadChunk must be positive")
	}

	return &ChartSession{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		barRepo:  barRepo,
		renderer: renderer,
		calc:     calc,
		dims:     chart.Dimensions{Width: 960, Height: 480, Margin: chart.Margin{Top: 10, Right: 60, Bottom: 30, Left: 10}},
	}, nil
}

// SetDimensions updates the pixel dimensions used for subsequent renders and
// re-renders at the new size.
func (s *ChartSession) SetDimensions(ctx context.Context, dims chart.Dimensions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dims = dims
	if len(s.bars) == 0 {
		return nil
	}
	res := s.renderLocked(ctx, chart.Request{Op: chart.OpInitial, Domain: chart.DynamicDomain()})
	return res.Err
}

// Bars returns a snapshot copy of the current dataset.
func (s *ChartSession) Bars() []*domain.Bar {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// State returns the most recent successfully computed chart state, or nil
// before the first render.
func (s *ChartSession) State() *chart.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastState
}

// Start begins the session's main loop: load history, render, stream.
// Blocks until the context is cancelled or the stream terminates.
func (s *ChartSession) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Chart Session...", map[string]interface{}{"symbol": s.cfg.Symbol, "interval": s.cfg.Interval})

	// Create a context that can be canceled by signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel() // Cancel the main context
		case <-ctx.Done():
		}
	}()

	// --- Initialization Steps ---
	if err := s.Bootstrap(ctx); err != nil {
		return err
	}

	// --- Start WebSocket Stream ---
	wsDoneCh, wsStopCh, err := s.provider.StreamBars(ctx, s.cfg.Symbol, s.cfg.Interval, s.handleBarEvent, s.handleStreamError)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to start bar stream")
		return fmt.Errorf("failed to start bar stream: %w", err)
	}
	s.logger.Info(ctx, "Bar stream started", map[string]interface{}{"symbol": s.cfg.Symbol, "interval": s.cfg.Interval})

	// --- Main Loop ---
	// The main work happens in handleBarEvent triggered by the stream. We
	// just need to wait for the context to be canceled or the stream to end.

	select {
	case <-ctx.Done():
		s.logger.Info(ctx, "Main context cancelled, initiating shutdown...")
		// Signal stream to stop
		select {
		case wsStopCh <- struct{}{}:
			s.logger.Info(ctx, "Stop signal sent to bar stream")
		default:
			s.logger.Warn(ctx, "Failed to send stop signal to bar stream (already closed?)")
		}
		// Wait briefly for the stream to close gracefully
		select {
		case <-wsDoneCh:
			s.logger.Info(ctx, "Bar stream shut down gracefully")
		case <-time.After(5 * time.Second):
			s.logger.Warn(ctx, "Timeout waiting for bar stream to shut down")
		}
	case <-wsDoneCh:
		// Stream closed unexpectedly (e.g., max reconnect attempts failed)
		s.logger.Error(ctx, fmt.Errorf("bar stream closed unexpectedly"), "Bar stream stopped")
		return fmt.Errorf("bar stream stopped unexpectedly")
	}

	s.logger.Info(ctx, "Chart Session stopped.")
	return nil
}

// Bootstrap loads initial history and performs the first render, anchoring
// the viewport to the newest bars. Start calls it; it is exported so embedders
// that drive the stream themselves can prime the session.
func (s *ChartSession) Bootstrap(ctx context.Context) error {
	if err := s.loadInitialBars(ctx); err != nil {
		s.logger.Error(ctx, err, "Failed to load initial bars")
		return fmt.Errorf("failed to load initial bars: %w", err)
	}

	s.mu.Lock()
	res := s.renderLocked(ctx, chart.Request{Op: chart.OpInitial, Domain: chart.DynamicDomain()})
	n := len(s.bars)
	s.mu.Unlock()
	if res.Err != nil {
		s.logger.Error(ctx, res.Err, "Initial render failed")
		return fmt.Errorf("initial render failed: %w", res.Err)
	}
	s.logger.Info(ctx, "Initial render complete", map[string]interface{}{"bars": n})
	return nil
}

// loadInitialBars fills the dataset from the repository, falling back to the
// provider (and persisting the result) when the store is empty or short.
func (s *ChartSession) loadInitialBars(ctx context.Context) error {
	stored, err := s.barRepo.LatestBars(ctx, s.cfg.Symbol, s.cfg.Interval, initialLoadLimit)
	if err != nil {
		s.logger.Warn(ctx, "Repository read failed, falling back to provider", map[string]interface{}{"error": err.Error()})
	}
	if len(stored) >= s.calc.WindowSize() {
		s.setDataset(stored)
		s.logger.Info(ctx, "Loaded initial bars from repository", map[string]interface{}{"count": len(stored)})
		return nil
	}

	fetched, err := s.provider.GetBars(ctx, s.cfg.Symbol, s.cfg.Interval, initialLoadLimit)
	if err != nil {
		if len(stored) > 0 {
			s.logger.Warn(ctx, "Provider fetch failed, using stored bars only", map[string]interface{}{"stored": len(stored), "error": err.Error()})
			s.setDataset(stored)
			return nil
		}
		return err
	}
	if len(fetched) == 0 {
		if len(stored) > 0 {
			s.setDataset(stored)
			return nil
		}
		return fmt.Errorf("no bars available for %s %s: %w", s.cfg.Symbol, s.cfg.Interval, ports.ErrNoData)
	}

	if _, err := s.barRepo.UpsertBars(ctx, fetched); err != nil {
		// Persistence failure shouldn't block the dashboard.
		s.logger.Warn(ctx, "Failed to persist fetched bars", map[string]interface{}{"error": err.Error()})
	}
	s.setDataset(fetched)
	s.logger.Info(ctx, "Loaded initial bars from provider", map[string]interface{}{"count": len(fetched)})
	return nil
}

// setDataset replaces the dataset wholesale and clears memoized state tied to
// the previous one.
func (s *ChartSession) setDataset(bars []*domain.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars = bars
	s.lastState = nil
	s.lockedDomain = nil
	s.leftExhausted = false
	s.calc.Cache().Clear()
}

// handleBarEvent processes incoming bar data from the stream. Every update of
// the forming bucket arrives here, so the same timestamp replaces in place.
func (s *ChartSession) handleBarEvent(bar *domain.Bar) {
	// Use a background context for handlers; the stream outlives any request.
	ctx := context.Background()

	s.logger.Debug(ctx, "Received bar event", map[string]interface{}{
		"symbol":    bar.Symbol,
		"interval":  bar.Interval,
		"timestamp": bar.Timestamp,
		"close":     bar.Close,
	})

	if err := bar.Validate(); err != nil {
		s.logger.Warn(ctx, "Dropping invalid streamed bar", map[string]interface{}{"error": err.Error()})
		return
	}

	if _, err := s.barRepo.UpsertBars(ctx, []*domain.Bar{bar}); err != nil {
		s.logger.Warn(ctx, "Failed to persist streamed bar", map[string]interface{}{"error": err.Error()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bars = domain.AppendBar(s.bars, bar)
	res := s.renderLocked(ctx, chart.Request{Op: chart.OpStreaming, Domain: chart.DynamicDomain()})
	if res.Err != nil {
		s.logger.Error(ctx, res.Err, "Streaming render failed")
	}
}

// handleStreamError handles errors reported by the bar stream. Reconnection
// is the adapter's job; this is for visibility.
func (s *ChartSession) handleStreamError(err error) {
	s.logger.Error(context.Background(), err, "Bar stream error reported")
}

// Pan renders a caller-supplied index range mid-gesture. The Y domain stays
// locked to the last computed bounds so the chart doesn't jump vertically
// while the user drags.
func (s *ChartSession) Pan(ctx context.Context, viewStart, viewEnd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dom := chart.DynamicDomain()
	if s.lockedDomain != nil {
		dom = *s.lockedDomain
	}
	res := s.renderLocked(ctx, chart.Request{
		Op:        chart.OpPanning,
		Domain:    dom,
		ViewStart: viewStart,
		ViewEnd:   viewEnd,
	})
	return res.Err
}

// SkipTo jumps the viewport to an arbitrary index range, recomputing the Y
// domain for the new slice and re-arming edge loads.
func (s *ChartSession) SkipTo(ctx context.Context, viewStart, viewEnd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.renderLocked(ctx, chart.Request{
		Op:        chart.OpSkipTo,
		Domain:    chart.DynamicDomain(),
		ViewStart: viewStart,
		ViewEnd:   viewEnd,
	})
	return res.Err
}

// renderLocked runs one render. Callers must hold s.mu.
func (s *ChartSession) renderLocked(ctx context.Context, req chart.Request) chart.Result {
	req.Bars = s.bars
	req.Dims = s.dims
	if req.Fetch == nil {
		req.Fetch = s.fetchEdge
	}
	res := s.renderer.Render(ctx, req)
	if res.Success {
		s.lastState = res.State
		if res.YDomainRecomputed {
			s.lockedDomain = res.FixedDomain
		}
	}
	return res
}

// fetchEdge services edge-triggered loads. The right edge is covered by the
// live stream, so only the past direction does work: repository pages first,
// then the provider when local history runs out.
func (s *ChartSession) fetchEdge(ctx context.Context, dir chart.Direction) (bool, error) {
	if dir != chart.DirectionPast {
		return false, nil
	}

	s.mu.Lock()
	if len(s.bars) == 0 || s.leftExhausted {
		s.mu.Unlock()
		return false, nil
	}
	oldest := s.bars[0].Timestamp
	s.mu.Unlock()

	older, err := s.loadOlder(ctx, oldest)
	if err != nil {
		return false, err
	}
	if len(older) == 0 {
		s.mu.Lock()
		s.leftExhausted = true
		s.mu.Unlock()
		s.logger.Info(ctx, "History exhausted at left edge", map[string]interface{}{"oldest": oldest})
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.bars)
	s.bars = domain.PrependBars(s.bars, older)
	inserted := len(s.bars) - before
	if inserted == 0 {
		return false, nil
	}
	s.logger.Info(ctx, "Prepended historical bars", map[string]interface{}{"inserted": inserted, "total": len(s.bars)})

	// Re-render at the same visible bars: indices shift right by the
	// inserted count.
	if s.lastState != nil {
		res := s.renderLocked(ctx, chart.Request{
			Op:        chart.OpSkipTo,
			Domain:    chart.DynamicDomain(),
			ViewStart: s.lastState.ViewStart + inserted,
			ViewEnd:   s.lastState.ViewEnd + inserted,
		})
		if res.Err != nil {
			s.logger.Error(ctx, res.Err, "Post-load render failed")
		}
	}
	return true, nil
}

// loadOlder fetches up to one chunk of bars strictly older than ts.
func (s *ChartSession) loadOlder(ctx context.Context, ts time.Time) ([]*domain.Bar, error) {
	chunk := s.cfg.EdgeLoadChunk

	older, err := s.barRepo.BarsBefore(ctx, s.cfg.Symbol, s.cfg.Interval, ts, chunk)
	if err != nil {
		s.logger.Warn(ctx, "Repository page read failed", map[string]interface{}{"error": err.Error()})
	}
	if len(older) > 0 {
		return older, nil
	}

	step, err := domain.ParseInterval(s.cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("cannot page history: %w", err)
	}
	start := ts.Add(-time.Duration(chunk) * step)
	fetched, err := s.provider.GetBarsRange(ctx, s.cfg.Symbol, s.cfg.Interval, start, ts.Add(-time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("provider history fetch failed: %w", err)
	}
	if len(fetched) == 0 {
		return nil, nil
	}
	if _, err := s.barRepo.UpsertBars(ctx, fetched); err != nil {
		s.logger.Warn(ctx, "Failed to persist fetched history page", map[string]interface{}{"error": err.Error()})
	}
	return fetched, nil
}
