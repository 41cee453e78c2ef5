package footprint

import (
	"time"

	"github.com/mauriziolobello/footprint/internal/domain"
)

// BarCache holds finalized bars keyed by bar open time, bounded by entry
// count with oldest-BarTime-first eviction.
type BarCache struct {
	maxEntries int
	bars       map[int64]*domain.FootprintBar
}

// NewBarCache creates a cache holding at most maxEntries bars.
func NewBarCache(maxEntries int) *BarCache {
	return &BarCache{
		maxEntries: maxEntries,
		bars:       make(map[int64]*domain.FootprintBar),
	}
}

// Put stores a bar under its BarTime, evicting the oldest bars when the
// bound is exceeded.
func (c *BarCache) Put(bar *domain.FootprintBar) {
	c.bars[bar.BarTime.UnixNano()] = bar

	for len(c.bars) > c.maxEntries {
		oldest := int64(0)
		first := true
		for k := range c.bars {
			if first || k < oldest {
				oldest = k
				first = false
			}
		}
		delete(c.bars, oldest)
	}
}

// Get returns the bar with the given open time, or nil.
func (c *BarCache) Get(barTime time.Time) *domain.FootprintBar {
	return c.bars[barTime.UnixNano()]
}

// Len returns the number of cached bars.
func (c *BarCache) Len() int {
	return len(c.bars)
}
