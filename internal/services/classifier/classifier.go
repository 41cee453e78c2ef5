// Package classifier implements the uptick/downtick rule: a tick is
// buyer-initiated when its price rose versus the previous tick and
// seller-initiated when it fell. Equal prices inherit the previous
// classification.
package classifier

import (
	"github.com/shopspring/decimal"

	"github.com/mauriziolobello/footprint/internal/domain"
)

// Classifier is a stateful per-tick classifier. It is not safe for
// concurrent use; one instance serves one bar stream at a time.
type Classifier struct {
	prevPrice decimal.Decimal
	prevSide  domain.Side
	fresh     bool
}

// New returns a classifier in the fresh state.
func New() *Classifier {
	return &Classifier{fresh: true}
}

// Reset clears state to "no prior tick". Call once per new bar before
// classifying that bar's ticks.
func (c *Classifier) Reset() {
	c.prevPrice = decimal.Decimal{}
	c.prevSide = domain.SideUnknown
	c.fresh = true
}

// Classify returns the side for price against the previously seen price.
// The first call after construction or Reset returns SideUnknown and only
// records the reference price. Equal prices return the previous result, so
// a Buy or Sell propagates through any run of equal prices, while equal
// prices right after an Unknown stay Unknown until the price moves.
func (c *Classifier) Classify(price decimal.Decimal) domain.Side {
	if c.fresh {
		c.fresh = false
		c.prevPrice = price
		c.prevSide = domain.SideUnknown
		return domain.SideUnknown
	}

	side := c.prevSide
	switch price.Cmp(c.prevPrice) {
	case 1:
		side = domain.SideBuy
	case -1:
		side = domain.SideSell
	}

	c.prevPrice = price
	c.prevSide = side
	return side
}
