// Package footprint builds per-bar footprint (volume profile) aggregates:
// classified tick volume bucketed by price level, with point of control,
// value area and imbalance statistics, optionally coarsened into bins.
package footprint

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mauriziolobello/footprint/internal/domain"
	"github.com/mauriziolobello/footprint/internal/services/classifier"
)

// TickClassifiedFunc is invoked once per newly classified live tick so the
// caller can forward it into the persistence store.
type TickClassifiedFunc func(ts time.Time, price decimal.Decimal, side domain.Side)

// BuildParams describes one bar window and the statistics parameters.
type BuildParams struct {
	// BarOpen and BarClose bound the bar's time window [BarOpen, BarClose).
	BarOpen  time.Time
	BarClose time.Time
	// BarHigh and BarLow are the bar's OHLC extremes, required for binning.
	BarHigh decimal.Decimal
	BarLow  decimal.Decimal
	// ImbalanceThresholdPct is the dominance ratio in percent (300 = 3x).
	ImbalanceThresholdPct float64
	// ValueAreaPct is the value-area volume coverage target in percent.
	ValueAreaPct float64
	// NumberOfBins enables bin aggregation when positive.
	NumberOfBins int
}

// Builder turns tick streams into finalized footprint bars. It owns a single
// classifier reused sequentially across bars, so at most one Build call may
// be in flight per Builder.
type Builder struct {
	tickSize     decimal.Decimal
	classifier   *classifier.Classifier
	onClassified TickClassifiedFunc
}

// NewBuilder creates a builder for an instrument with the given tick size.
// onClassified may be nil.
func NewBuilder(tickSize decimal.Decimal, onClassified TickClassifiedFunc) *Builder {
	return &Builder{
		tickSize:     tickSize,
		classifier:   classifier.New(),
		onClassified: onClassified,
	}
}

// Build produces a fully finalized footprint bar for one bar window.
//
// Stored ticks are replayed first: Uptick/Downtick records contribute volume
// directly (their classification is already known), and every stored price is
// fed through the classifier so its state is warmed up to the last stored
// price before live ticks arrive. Live ticks inside [BarOpen, BarClose) are
// classified on their bid/ask midpoint; Unknown ticks contribute nothing.
// Each tick counts as volume 1 since the feed exposes no traded size.
func (b *Builder) Build(params BuildParams, stored []domain.StoredTick, live []domain.Tick) *domain.FootprintBar {
	bar := domain.NewFootprintBar(params.BarOpen, b.tickSize)
	b.classifier.Reset()

	for _, st := range stored {
		switch st.Type {
		case domain.TickTypeUptick:
			bar.AddTickVolume(st.Price, 1, true)
		case domain.TickTypeDowntick:
			bar.AddTickVolume(st.Price, 1, false)
		}
		b.classifier.Classify(st.Price)
	}

	for _, tick := range live {
		if tick.Time.Before(params.BarOpen) || !tick.Time.Before(params.BarClose) {
			continue
		}
		mid := tick.Mid()
		side := b.classifier.Classify(mid)
		if side == domain.SideUnknown {
			continue
		}
		if b.onClassified != nil {
			b.onClassified(tick.Time, mid, side)
		}
		bar.AddTickVolume(mid, 1, side == domain.SideBuy)
	}

	finalize(bar, params.ImbalanceThresholdPct, params.ValueAreaPct)

	bar.High = params.BarHigh
	bar.Low = params.BarLow
	if levels := bar.Levels(); len(levels) > 0 && bar.High.LessThanOrEqual(decimal.Zero) {
		// caller supplied no OHLC extremes, fall back to the observed range
		bar.Low = levels[0].Price
		bar.High = levels[len(levels)-1].Price
	}

	if params.NumberOfBins > 0 {
		aggregateBins(bar, params.NumberOfBins, params.ImbalanceThresholdPct, params.ValueAreaPct)
	}

	return bar
}
