package chart

import (
	"fmt"
	"math"

	"github.com/natelewis/whalewatch-sub003/internal/domain"
	"github.com/natelewis/whalewatch-sub003/internal/ports"
)

// Default geometry. WindowSize is the number of bars that fill the viewport
// at 1:1 zoom; every index<->pixel conversion is anchored on it.
const (
	DefaultWindowSize        = 80
	DefaultPaddingMultiplier = 0.05
	defaultDomainMin         = 0
	defaultDomainMax         = 100
)

// Margin is the space reserved around the plot area, in pixels.
type Margin struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// Dimensions are the outer pixel dimensions handed to the calculator.
type Dimensions struct {
	Width  float64
	Height float64
	Margin Margin
}

// PriceDomain selects the Y-axis policy: a locked [Min,Max] range, or a
// dynamic range recomputed from the visible slice's highs and lows.
type PriceDomain struct {
	Fixed bool
	Min   float64
	Max   float64
}

// FixedDomain returns a locked price domain.
func FixedDomain(min, max float64) PriceDomain {
	return PriceDomain{Fixed: true, Min: min, Max: max}
}

// DynamicDomain returns the recompute-from-visible-data policy.
func DynamicDomain() PriceDomain {
	return PriceDomain{}
}

// State is the calculator's output: everything the drawing surface needs to
// place marks for one render. It is ephemeral and recomputed (or cache-hit)
// per call; nothing in it is authoritative across calls.
type State struct {
	InnerWidth  float64
	InnerHeight float64

	BaseXScale Linear // index -> pixel, before pan/zoom
	BaseYScale Linear // price -> pixel, inverted (higher price, smaller y)
	XScale     Linear // BaseXScale with the transform applied
	YScale     Linear // BaseYScale with the transform applied

	ViewStart int
	ViewEnd   int

	Visible []*domain.Bar // Bars[ViewStart..ViewEnd], inclusive
	Bars    []*domain.Bar // the full dataset the state was computed from

	TransformString string
}

// BandWidth returns the pixel width of one bar slot at 1:1 zoom.
func (s *State) BandWidth() float64 {
	if len(s.Bars) == 0 {
		return 0
	}
	d0, d1 := s.BaseXScale.Domain()
	r0, r1 := s.BaseXScale.Range()
	span := d1 - d0
	if span == 0 {
		return r1 - r0
	}
	return (r1 - r0) / (span + 1)
}

// Config carries the calculator's tuning knobs. Zero values select defaults.
type Config struct {
	WindowSize        int     // bars filling the viewport at 1:1 zoom
	PaddingMultiplier float64 // dynamic Y-domain padding as a fraction of the price span
	CacheCeiling      int     // per-category memo cache ceiling
	Logger            ports.Logger
}

// Calculator converts (dataset, pixel dimensions, transform, price-domain
// policy) into a consistent State. It is deterministic for identical inputs
// and memoizes on coarse input fingerprints.
//
// Like the rest of the render path it is confined to one goroutine; callers
// that drive it from multiple goroutines must serialize externally.
type Calculator struct {
	windowSize int
	padding    float64
	cache      *Cache
	logger     ports.Logger
}

// NewCalculator creates a calculator with its own cache instance.
func NewCalculator(cfg Config) (*Calculator, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for chart calculator")
	}
	window := cfg.WindowSize
	if window <= 0 {
		window = DefaultWindowSize
	}
	padding := cfg.PaddingMultiplier
	if padding <= 0 {
		padding = DefaultPaddingMultiplier
	}
	return &Calculator{
		windowSize: window,
		padding:    padding,
		cache:      NewCache(cfg.CacheCeiling),
		logger:     cfg.Logger,
	}, nil
}

// WindowSize returns the configured 1:1 window size in bars.
func (c *Calculator) WindowSize() int { return c.windowSize }

// Cache exposes the calculator's memo cache, mainly for lifecycle control
// (Clear on dataset reset) and test assertions.
func (c *Calculator) Cache() *Cache { return c.cache }

// Compute derives the chart state from the transform: the pan offset is
// converted into index space and the viewport follows from it. Returns
// ports.ErrNoData for an empty dataset instead of producing NaN scales.
func (c *Calculator) Compute(bars []*domain.Bar, dims Dimensions, t Transform, policy PriceDomain) (*State, error) {
	if len(bars) == 0 {
		return nil, ports.ErrNoData
	}
	viewStart, viewEnd := c.viewportFromTransform(bars, dims, t)
	return c.build(bars, dims, t, policy, viewStart, viewEnd)
}

// ComputeWithViewport builds the chart state for an explicitly requested
// index range, bypassing the transform-derived viewport. Used by operations
// that already know which indices they want visible (panning with explicit
// indices, skip-to); re-deriving the range from a transform would only add
// rounding drift.
func (c *Calculator) ComputeWithViewport(bars []*domain.Bar, dims Dimensions, t Transform, policy PriceDomain, viewStart, viewEnd int) (*State, error) {
	if len(bars) == 0 {
		return nil, ports.ErrNoData
	}
	viewStart, viewEnd = clampViewport(viewStart, viewEnd, len(bars))
	return c.build(bars, dims, t, policy, viewStart, viewEnd)
}

func (c *Calculator) build(bars []*domain.Bar, dims Dimensions, t Transform, policy PriceDomain, viewStart, viewEnd int) (*State, error) {
	key := stateFingerprint(bars, dims, t, policy, viewStart, viewEnd)
	if v, ok := c.cache.Get(CategoryChartState, key); ok {
		return v.(*State), nil
	}

	innerW, innerH := innerSize(dims)
	band := innerW / float64(c.windowSize)

	// Right-align: the newest bar lands on the right edge before any pan.
	n := len(bars)
	rightmost := innerW
	leftmost := rightmost - float64(n)*band
	baseX := NewLinear(0, float64(n-1), leftmost, rightmost)

	minP, maxP := c.yDomain(bars, viewStart, viewEnd, policy)
	baseY := NewLinear(minP, maxP, innerH, 0)

	state := &State{
		InnerWidth:      innerW,
		InnerHeight:     innerH,
		BaseXScale:      baseX,
		BaseYScale:      baseY,
		XScale:          baseX.RescaleX(t),
		YScale:          baseY.RescaleY(t),
		ViewStart:       viewStart,
		ViewEnd:         viewEnd,
		Visible:         bars[viewStart : viewEnd+1],
		Bars:            bars,
		TransformString: t.String(),
	}
	c.cache.Set(CategoryChartState, key, state)
	return state, nil
}

// viewportFromTransform converts the horizontal pixel translation into an
// index-space pan offset and derives the visible window from it.
func (c *Calculator) viewportFromTransform(bars []*domain.Bar, dims Dimensions, t Transform) (int, int) {
	n := len(bars)
	innerW, _ := innerSize(dims)
	band := innerW / float64(c.windowSize)

	panOffset := 0.0
	if band > 0 {
		panOffset = t.TranslateX / band
	}

	viewEnd := clampInt(0, n-1, n-1-int(math.Round(panOffset)))
	if viewEnd == 0 && n > 1 {
		// Clamping collapsed the window against the start of the data;
		// re-anchor a full window there rather than leaving a single-point
		// viewport.
		viewEnd = clampInt(0, n-1, c.windowSize-1)
		return 0, viewEnd
	}
	viewStart := clampInt(0, viewEnd, viewEnd-c.windowSize+1)
	return viewStart, viewEnd
}

// yDomain resolves the Y-scale domain for the policy. Dynamic domains come
// from the visible slice's lows/highs padded outward; a degenerate slice
// falls back to a documented default range so scale construction never sees
// an empty or NaN domain.
func (c *Calculator) yDomain(bars []*domain.Bar, viewStart, viewEnd int, policy PriceDomain) (float64, float64) {
	if policy.Fixed {
		return policy.Min, policy.Max
	}
	key := stateFingerprint(bars, Dimensions{}, Transform{Scale: 1}, policy, viewStart, viewEnd)
	if v, ok := c.cache.Get(CategoryYScale, key); ok {
		b := v.([2]float64)
		return b[0], b[1]
	}

	minP, maxP := c.priceExtent(bars[viewStart : viewEnd+1])
	c.cache.Set(CategoryYScale, key, [2]float64{minP, maxP})
	return minP, maxP
}

func (c *Calculator) priceExtent(bars []*domain.Bar) (float64, float64) {
	if len(bars) == 0 {
		return defaultDomainMin, defaultDomainMax
	}
	minP := math.Inf(1)
	maxP := math.Inf(-1)
	for _, b := range bars {
		if b.Low < minP {
			minP = b.Low
		}
		if b.High > maxP {
			maxP = b.High
		}
	}
	if math.IsInf(minP, 1) || math.IsInf(maxP, -1) {
		return defaultDomainMin, defaultDomainMax
	}
	span := maxP - minP
	if span == 0 {
		// Flat slice: open a unit band so the scale is never degenerate.
		return minP - 1, maxP + 1
	}
	pad := span * c.padding
	return minP - pad, maxP + pad
}

func innerSize(dims Dimensions) (float64, float64) {
	w := dims.Width - dims.Margin.Left - dims.Margin.Right
	h := dims.Height - dims.Margin.Top - dims.Margin.Bottom
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// clampViewport corrects a transiently out-of-range viewport so that
// 0 <= viewStart <= viewEnd <= n-1 holds before any slicing.
func clampViewport(viewStart, viewEnd, n int) (int, int) {
	viewEnd = clampInt(0, n-1, viewEnd)
	viewStart = clampInt(0, viewEnd, viewStart)
	return viewStart, viewEnd
}

func clampInt(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
