package chart

import (
	"time"

	"github.com/natelewis/whalewatch-sub003/internal/domain"
)

// TimeTicks returns the indices of the bars that should carry axis markers,
// spaced by interval but anchored to the data's own start rather than to
// calendar boundaries.
//
// The target time starts at the first bar and each emitted tick snaps
// forward to the first bar at or after the target (so gaps such as weekends
// pull the tick onto the next trading day). The next target advances from
// the snapped bar's time, not the nominal one, keeping the spacing honest
// after a gap. Generation stops once the target reaches the final bar's
// timestamp, leaving the right edge free for the newest-bar label.
func TimeTicks(bars []*domain.Bar, interval time.Duration) []int {
	if len(bars) == 0 || interval <= 0 {
		return nil
	}
	last := bars[len(bars)-1].Timestamp

	var ticks []int
	target := bars[0].Timestamp
	i := 0
	for target.Before(last) {
		for i < len(bars) && bars[i].Timestamp.Before(target) {
			i++
		}
		if i >= len(bars) {
			break
		}
		ticks = append(ticks, i)
		target = bars[i].Timestamp.Add(interval)
		i++
	}
	return ticks
}

// Ticks is the cached variant of TimeTicks, keyed on the dataset fingerprint
// and interval.
func (c *Calculator) Ticks(bars []*domain.Bar, interval time.Duration) []int {
	key := tickFingerprint(bars, interval)
	if v, ok := c.cache.Get(CategoryTickPositions, key); ok {
		return v.([]int)
	}
	ticks := TimeTicks(bars, interval)
	c.cache.Set(CategoryTickPositions, key, ticks)
	return ticks
}
