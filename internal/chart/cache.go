package chart

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/natelewis/whalewatch-sub003/internal/domain"
)

// Category identifies an independently-bounded section of the memo cache.
type Category string

const (
	CategoryYScale        Category = "yScale"
	CategoryChartState    Category = "chartState"
	CategoryVisibleSlice  Category = "visibleSlice"
	CategoryTickPositions Category = "tickPositions"
)

const defaultCacheCeiling = 256

// Cache is a bounded memoization store for the expensive chart calculations.
// Keys are coarse fingerprints of the calculation inputs, never content
// hashes, so key construction stays O(1) regardless of dataset size.
//
// Eviction is insertion-order, not LRU: once a category exceeds its ceiling
// the oldest quarter of its entries is dropped in one sweep. Correctness
// only requires that a key never maps to a value computed from different
// inputs, which the fingerprint construction guarantees.
//
// The cache is owned by a Calculator instance and, like the rest of the
// render path, is confined to a single goroutine.
type Cache struct {
	ceiling int
	cats    map[Category]*cacheCategory
}

type cacheCategory struct {
	entries map[string]interface{}
	order   []string
}

// NewCache creates a cache whose categories each hold at most ceiling entries
// before eviction. A non-positive ceiling selects the default.
func NewCache(ceiling int) *Cache {
	if ceiling <= 0 {
		ceiling = defaultCacheCeiling
	}
	return &Cache{
		ceiling: ceiling,
		cats:    make(map[Category]*cacheCategory),
	}
}

// Get looks up a previously stored value.
func (c *Cache) Get(cat Category, key string) (interface{}, bool) {
	cc, ok := c.cats[cat]
	if !ok {
		return nil, false
	}
	v, ok := cc.entries[key]
	return v, ok
}

// Set stores a value, evicting the oldest quarter of the category when its
// ceiling is exceeded.
func (c *Cache) Set(cat Category, key string, value interface{}) {
	cc, ok := c.cats[cat]
	if !ok {
		cc = &cacheCategory{entries: make(map[string]interface{})}
		c.cats[cat] = cc
	}
	if _, exists := cc.entries[key]; !exists {
		cc.order = append(cc.order, key)
	}
	cc.entries[key] = value

	if len(cc.entries) > c.ceiling {
		evict := len(cc.order) / 4
		if evict < 1 {
			evict = 1
		}
		for _, k := range cc.order[:evict] {
			delete(cc.entries, k)
		}
		cc.order = append(cc.order[:0], cc.order[evict:]...)
	}
}

// Len reports the number of live entries in a category.
func (c *Cache) Len(cat Category) int {
	cc, ok := c.cats[cat]
	if !ok {
		return 0
	}
	return len(cc.entries)
}

// Clear drops every entry in every category.
func (c *Cache) Clear() {
	c.cats = make(map[Category]*cacheCategory)
}

// datasetFingerprint approximates dataset identity as (length, first
// timestamp, last timestamp). Two datasets agreeing on all three are treated
// as the same dataset for caching purposes; content-hashing every bar would
// make key construction as expensive as the calculation it guards.
func datasetFingerprint(bars []*domain.Bar) string {
	if len(bars) == 0 {
		return "0"
	}
	first := bars[0].Timestamp.UnixNano()
	last := bars[len(bars)-1].Timestamp.UnixNano()
	return strconv.Itoa(len(bars)) + ":" + strconv.FormatInt(first, 10) + ":" + strconv.FormatInt(last, 10)
}

// transformFingerprint rounds the transform to two decimals so that
// floating-point jitter across gesture frames collapses onto one key.
func transformFingerprint(t Transform) string {
	return fmt.Sprintf("%.2f,%.2f,%.2f", t.TranslateX, t.TranslateY, t.Scale)
}

func domainFingerprint(p PriceDomain) string {
	if !p.Fixed {
		return "dyn"
	}
	return fmt.Sprintf("fix:%.4f:%.4f", p.Min, p.Max)
}

func stateFingerprint(bars []*domain.Bar, dims Dimensions, t Transform, p PriceDomain, viewStart, viewEnd int) string {
	var sb strings.Builder
	sb.WriteString(datasetFingerprint(bars))
	sb.WriteString("|")
	sb.WriteString(fmt.Sprintf("%.0fx%.0f", dims.Width, dims.Height))
	sb.WriteString("|")
	sb.WriteString(transformFingerprint(t))
	sb.WriteString("|")
	sb.WriteString(domainFingerprint(p))
	sb.WriteString("|")
	sb.WriteString(strconv.Itoa(viewStart))
	sb.WriteString(":")
	sb.WriteString(strconv.Itoa(viewEnd))
	return sb.String()
}

func tickFingerprint(bars []*domain.Bar, interval time.Duration) string {
	return datasetFingerprint(bars) + "|" + interval.String()
}
