package domain

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ImbalanceType marks which side dominates an imbalanced level or bin.
type ImbalanceType int

const (
	ImbalanceNone ImbalanceType = iota
	ImbalanceBuy
	ImbalanceSell
)

// String returns the string representation of the imbalance type.
func (i ImbalanceType) String() string {
	switch i {
	case ImbalanceBuy:
		return "buy"
	case ImbalanceSell:
		return "sell"
	default:
		return "none"
	}
}

// VolumeCell holds the buy/sell volume and derived flags shared by price
// levels and bins.
type VolumeCell struct {
	BuyVolume  uint64
	SellVolume uint64
	// IsPointOfControl is set on at most one cell per bar.
	IsPointOfControl bool
	// IsInValueArea marks membership in the contiguous value-area run.
	IsInValueArea bool
	// ImbalanceType is ImbalanceNone when the cell is balanced.
	ImbalanceType ImbalanceType
}

// TotalVolume returns buy plus sell volume.
func (c *VolumeCell) TotalVolume() uint64 {
	return c.BuyVolume + c.SellVolume
}

// Delta returns buy minus sell volume.
func (c *VolumeCell) Delta() int64 {
	return int64(c.BuyVolume) - int64(c.SellVolume)
}

// Ratio returns buy/sell volume. A one-sided buy cell yields +Inf, an empty
// cell yields 1.0, so comparisons never see NaN.
func (c *VolumeCell) Ratio() float64 {
	if c.SellVolume == 0 {
		if c.BuyVolume == 0 {
			return 1.0
		}
		return math.Inf(1)
	}
	return float64(c.BuyVolume) / float64(c.SellVolume)
}

// HasImbalance reports whether the cell is flagged imbalanced.
func (c *VolumeCell) HasImbalance() bool {
	return c.ImbalanceType != ImbalanceNone
}

// PriceLevel accumulates volume at one price rounded to the instrument tick
// size.
type PriceLevel struct {
	Price decimal.Decimal
	VolumeCell
}

// Bin is an equal-width subdivision of a bar's price range. The range is
// half-open [PriceBottom, PriceTop); the topmost bin of a bar additionally
// includes its top bound.
type Bin struct {
	PriceBottom decimal.Decimal
	PriceTop    decimal.Decimal
	VolumeCell
}

// Mid returns the bin's price midpoint.
func (b *Bin) Mid() decimal.Decimal {
	return b.PriceBottom.Add(b.PriceTop).Div(decimal.NewFromInt(2))
}

// FootprintBar is the footprint aggregate for one candlestick interval. Its
// identity is BarTime; bar indices are never stable and must not be used as
// keys.
type FootprintBar struct {
	// BarTime is the bar open timestamp.
	BarTime time.Time
	// High and Low are the bar's OHLC extremes, required for binning.
	High decimal.Decimal
	Low  decimal.Decimal

	TotalBuyVolume  uint64
	TotalSellVolume uint64

	// PointOfControl references the level with the greatest volume, nil
	// until finalized or when the bar is empty.
	PointOfControl *PriceLevel
	ValueAreaHigh  decimal.Decimal
	ValueAreaLow   decimal.Decimal
	// Imbalances lists the levels flagged imbalanced, ascending by price.
	Imbalances []*PriceLevel
	// Bins is populated by bin aggregation; when non-empty consumers must
	// prefer it over raw price levels.
	Bins []*Bin

	tickSize decimal.Decimal
	levels   map[int64]*PriceLevel
}

// NewFootprintBar creates an empty bar for the given open time.
func NewFootprintBar(barTime time.Time, tickSize decimal.Decimal) *FootprintBar {
	return &FootprintBar{
		BarTime:  barTime,
		tickSize: tickSize,
		levels:   make(map[int64]*PriceLevel),
	}
}

// TickSize returns the instrument tick size the bar rounds prices to.
func (b *FootprintBar) TickSize() decimal.Decimal {
	return b.tickSize
}

// RoundPrice rounds a raw price to the bar's tick size, half away from zero.
func (b *FootprintBar) RoundPrice(price decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(b.priceStep(price)).Mul(b.tickSize)
}

func (b *FootprintBar) priceStep(price decimal.Decimal) int64 {
	return price.Div(b.tickSize).Round(0).IntPart()
}

// AddTickVolume rounds price to tick size and accumulates volume on the
// matching level, creating it on first use.
func (b *FootprintBar) AddTickVolume(price decimal.Decimal, volume uint64, isBuy bool) {
	step := b.priceStep(price)
	level, ok := b.levels[step]
	if !ok {
		level = &PriceLevel{Price: decimal.NewFromInt(step).Mul(b.tickSize)}
		b.levels[step] = level
	}
	if isBuy {
		level.BuyVolume += volume
		b.TotalBuyVolume += volume
	} else {
		level.SellVolume += volume
		b.TotalSellVolume += volume
	}
}

// Level returns the level at the rounded price, or nil.
func (b *FootprintBar) Level(price decimal.Decimal) *PriceLevel {
	return b.levels[b.priceStep(price)]
}

// Levels returns all price levels in ascending price order.
func (b *FootprintBar) Levels() []*PriceLevel {
	out := make([]*PriceLevel, 0, len(b.levels))
	for _, l := range b.levels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// LevelCount returns the number of distinct price levels.
func (b *FootprintBar) LevelCount() int {
	return len(b.levels)
}

// TotalVolume returns the bar's buy plus sell volume.
func (b *FootprintBar) TotalVolume() uint64 {
	return b.TotalBuyVolume + b.TotalSellVolume
}

// Delta returns the bar's buy minus sell volume.
func (b *FootprintBar) Delta() int64 {
	return int64(b.TotalBuyVolume) - int64(b.TotalSellVolume)
}

// Empty reports whether the bar has no price levels. Empty bars are valid
// and simply not renderable.
func (b *FootprintBar) Empty() bool {
	return len(b.levels) == 0
}
