package termview

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/natelewis/whalewatch-sub003/internal/chart"
	"github.com/natelewis/whalewatch-sub003/internal/domain"
)

var (
	upStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	downStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	axisStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
)

const priceAxisWidth = 10

// View renders chart states as candlestick frames on a terminal writer. It
// implements the drawing surface consumed by the renderer: every Draw call
// replaces the previous frame.
type View struct {
	mu         sync.Mutex
	out        io.Writer
	title      string
	rows       int
	clipLength int
	lastFrame  string
}

// New creates a terminal view writing frames to out. rows is the number of
// price rows in the body of the chart.
func New(out io.Writer, title string, rows int) *View {
	if rows < 5 {
		rows = 5
	}
	return &View{out: out, title: title, rows: rows}
}

// SetClipLength resizes the clip region to cover a dataset of n bars.
func (v *View) SetClipLength(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clipLength = n
}

// Draw renders a candlestick frame for the visible slice of the state.
func (v *View) Draw(state *chart.State) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if state == nil || len(state.Visible) == 0 {
		return nil
	}

	frame := v.renderFrame(state)
	v.lastFrame = frame

	if v.out == nil {
		return nil
	}
	// Clear screen and home the cursor between frames.
	if _, err := fmt.Fprint(v.out, "\033[2J\033[H"+frame); err != nil {
		return fmt.Errorf("writing chart frame: %w", err)
	}
	return nil
}

// LastFrame returns the most recently rendered frame.
func (v *View) LastFrame() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastFrame
}

func (v *View) renderFrame(state *chart.State) string {
	bars := state.Visible
	lo, hi := state.YScale.Domain()
	if hi <= lo {
		hi = lo + 1
	}

	var b strings.Builder
	last := bars[len(bars)-1]
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s  %s  %.2f", v.title, last.Symbol, last.Interval, last.Close)))
	b.WriteString("\n")

	rowPrice := func(row int) float64 {
		// Row 0 is the top of the chart.
		ratio := float64(row) / float64(v.rows-1)
		return hi - ratio*(hi-lo)
	}

	tolerance := (hi - lo) / float64(v.rows*2)
	for row := 0; row < v.rows; row++ {
		price := rowPrice(row)
		b.WriteString(axisStyle.Render(fmt.Sprintf("%9.2f │", price)))
		for _, bar := range bars {
			ch := candleRune(bar.Open, bar.High, bar.Low, bar.Close, price, tolerance)
			style := upStyle
			if bar.Close < bar.Open {
				style = downStyle
			}
			b.WriteString(style.Render(string(ch)))
		}
		b.WriteString("\n")
	}

	b.WriteString(axisStyle.Render(strings.Repeat("─", priceAxisWidth) + "┴" + strings.Repeat("─", len(bars))))
	b.WriteString("\n")
	b.WriteString(v.timeAxis(state))
	return b.String()
}

// timeAxis prints time labels under the bars the tick positions point at.
func (v *View) timeAxis(state *chart.State) string {
	ticks := chart.TimeTicks(state.Visible, tickInterval(state.Visible))
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", priceAxisWidth+1))
	prevEnd := 0
	for _, idx := range ticks {
		if idx < 0 || idx >= len(state.Visible) || idx < prevEnd {
			continue
		}
		label := state.Visible[idx].Timestamp.Format("15:04")
		if idx+len(label) > len(state.Visible) {
			break
		}
		b.WriteString(strings.Repeat(" ", idx-prevEnd))
		b.WriteString(labelStyle.Render(label))
		prevEnd = idx + len(label)
	}
	return b.String()
}

// tickInterval picks a label spacing that keeps roughly one label per ten
// visible bars.
func tickInterval(bars []*domain.Bar) time.Duration {
	if len(bars) < 2 {
		return time.Minute
	}
	step := bars[1].Timestamp.Sub(bars[0].Timestamp)
	if step <= 0 {
		step = time.Minute
	}
	return step * 10
}

func candleRune(open, high, low, cls, price, tolerance float64) rune {
	bodyTop, bodyBottom := open, cls
	if cls > open {
		bodyTop, bodyBottom = cls, open
	}
	switch {
	case price <= bodyTop+tolerance && price >= bodyBottom-tolerance:
		return '┃'
	case price <= high+tolerance && price > bodyTop:
		return '│'
	case price >= low-tolerance && price < bodyBottom:
		return '│'
	default:
		return ' '
	}
}
