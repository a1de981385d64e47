package chart

// Default number of pixels drawn beyond each edge of the visible viewport so
// that panning reveals already-rendered marks instead of blank canvas.
const DefaultBufferPixels = 300.0

// ExpandCollapsed widens a single-point viewport back to the nominal window
// size, centered on the collapsed index and clamped to the dataset. The
// result keeps the exact window size whenever the dataset allows it.
func ExpandCollapsed(viewStart, viewEnd, length, window int) (int, int) {
	if length <= 0 {
		return 0, 0
	}
	if viewStart != viewEnd || window <= 1 {
		return clampViewport(viewStart, viewEnd, length)
	}
	center := clampInt(0, length-1, viewStart)
	start := center - window/2
	end := start + window - 1
	if start < 0 {
		start = 0
		end = min(length-1, window-1)
	}
	if end > length-1 {
		end = length - 1
		start = max(0, end-window+1)
	}
	return start, end
}

// BufferedRange computes the index range to actually draw marks for, given
// the visible viewport and a buffer measured in bars. Three boundary regimes
// apply: when both viewport edges already touch the data bounds the full
// dataset is drawn; when only one edge touches, buffering extends in the
// open direction only; interior viewports buffer both directions. All
// results are clamped to [0, length-1].
func BufferedRange(viewStart, viewEnd, length, bufferBars int) (int, int) {
	if length <= 0 {
		return 0, 0
	}
	viewStart, viewEnd = clampViewport(viewStart, viewEnd, length)
	if bufferBars < 0 {
		bufferBars = 0
	}

	atStart := viewStart <= 0
	atEnd := viewEnd >= length-1
	switch {
	case atStart && atEnd:
		return 0, length - 1
	case atStart:
		return 0, min(length-1, viewEnd+bufferBars)
	case atEnd:
		return max(0, viewStart-bufferBars), length - 1
	default:
		return max(0, viewStart-bufferBars), min(length-1, viewEnd+bufferBars)
	}
}

// RenderRange is the drawing surface's entry point: it re-expands a
// collapsed viewport to the calculator's window size, converts the pixel
// buffer into bars using the state's band width, and returns the buffered
// draw range.
func (c *Calculator) RenderRange(state *State, bufferPixels float64) (int, int) {
	length := len(state.Bars)
	if length == 0 {
		return 0, 0
	}
	start, end := ExpandCollapsed(state.ViewStart, state.ViewEnd, length, c.windowSize)

	bufferBars := 0
	if band := state.BandWidth(); band > 0 && bufferPixels > 0 {
		bufferBars = int(bufferPixels/band + 0.5)
	}
	return BufferedRange(start, end, length, bufferBars)
}
