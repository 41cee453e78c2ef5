package footprint

import (
	"github.com/shopspring/decimal"

	"github.com/mauriziolobello/footprint/internal/domain"
)

// computePOC returns the index of the cell with the greatest total volume,
// or -1 when cells is empty. Ties are broken deterministically in favor of
// the lowest price (lowest index), since cells are price-ascending.
func computePOC(cells []*domain.VolumeCell) int {
	poc := -1
	var best uint64
	for i, c := range cells {
		if poc == -1 || c.TotalVolume() > best {
			poc = i
			best = c.TotalVolume()
		}
	}
	return poc
}

// expandValueArea grows the value area outward from the POC until target
// coverage is reached, marking visited cells. cells must be price-ascending.
// When both neighbors are candidates the larger one wins; ties favor the
// upper (higher-price) candidate. Returns the inclusive index bounds of the
// marked run.
func expandValueArea(cells []*domain.VolumeCell, pocIdx int, valueAreaPct float64) (int, int) {
	if pocIdx < 0 || pocIdx >= len(cells) {
		return pocIdx, pocIdx
	}

	var total uint64
	for _, c := range cells {
		total += c.TotalVolume()
	}
	target := uint64(float64(total) * valueAreaPct / 100.0)

	cells[pocIdx].IsInValueArea = true
	accumulated := cells[pocIdx].TotalVolume()
	lo, hi := pocIdx, pocIdx

	for accumulated < target {
		upOK := hi+1 < len(cells)
		downOK := lo-1 >= 0
		if !upOK && !downOK {
			break
		}

		takeUp := upOK
		if upOK && downOK {
			takeUp = cells[hi+1].TotalVolume() >= cells[lo-1].TotalVolume()
		}

		if takeUp {
			hi++
			cells[hi].IsInValueArea = true
			accumulated += cells[hi].TotalVolume()
		} else {
			lo--
			cells[lo].IsInValueArea = true
			accumulated += cells[lo].TotalVolume()
		}
	}

	return lo, hi
}

// detectImbalances flags each cell independently. One-sided volume is always
// an imbalance regardless of threshold; otherwise the dominant side must
// exceed the other by thresholdPct (300 means 3x).
func detectImbalances(cells []*domain.VolumeCell, thresholdPct float64) {
	for _, c := range cells {
		c.ImbalanceType = domain.ImbalanceNone
		if c.TotalVolume() == 0 {
			continue
		}

		buy, sell := c.BuyVolume, c.SellVolume
		lesser, greater := buy, sell
		imbType := domain.ImbalanceSell
		if buy > sell {
			lesser, greater = sell, buy
			imbType = domain.ImbalanceBuy
		}

		if lesser == 0 {
			// one side is empty and the other is not
			c.ImbalanceType = imbType
			continue
		}

		ratio := float64(greater) / float64(lesser) * 100.0
		if ratio >= thresholdPct {
			c.ImbalanceType = imbType
		}
	}
}

// finalize computes POC, value area and imbalances over the bar's price
// levels, in that order.
func finalize(bar *domain.FootprintBar, imbalanceThresholdPct, valueAreaPct float64) {
	levels := bar.Levels()
	cells := make([]*domain.VolumeCell, len(levels))
	for i, l := range levels {
		cells[i] = &l.VolumeCell
	}

	pocIdx := computePOC(cells)
	if pocIdx < 0 {
		return
	}
	levels[pocIdx].IsPointOfControl = true
	bar.PointOfControl = levels[pocIdx]

	lo, hi := expandValueArea(cells, pocIdx, valueAreaPct)
	bar.ValueAreaLow = levels[lo].Price
	bar.ValueAreaHigh = levels[hi].Price

	detectImbalances(cells, imbalanceThresholdPct)
	bar.Imbalances = bar.Imbalances[:0]
	for _, l := range levels {
		if l.HasImbalance() {
			bar.Imbalances = append(bar.Imbalances, l)
		}
	}
}

// aggregateBins rebuckets the bar's price levels into numberOfBins
// equal-width bins over [Low, High] and recomputes POC, value area and
// imbalances at bin granularity. A bar narrower than one tick collapses to
// a single bin flagged POC and sole value-area member.
func aggregateBins(bar *domain.FootprintBar, numberOfBins int, imbalanceThresholdPct, valueAreaPct float64) {
	if numberOfBins <= 0 || bar.Empty() {
		return
	}

	levels := bar.Levels()

	if bar.High.Sub(bar.Low).LessThan(bar.TickSize()) {
		bin := &domain.Bin{
			PriceBottom: bar.Low,
			PriceTop:    bar.High.Add(bar.TickSize()),
		}
		for _, l := range levels {
			bin.BuyVolume += l.BuyVolume
			bin.SellVolume += l.SellVolume
		}
		bin.IsPointOfControl = true
		bin.IsInValueArea = true
		detectImbalances([]*domain.VolumeCell{&bin.VolumeCell}, imbalanceThresholdPct)
		bar.Bins = []*domain.Bin{bin}
		return
	}

	binSize := bar.High.Sub(bar.Low).Div(decimal.NewFromInt(int64(numberOfBins)))
	bins := make([]*domain.Bin, numberOfBins)
	for i := range bins {
		bottom := bar.Low.Add(binSize.Mul(decimal.NewFromInt(int64(i))))
		bins[i] = &domain.Bin{
			PriceBottom: bottom,
			PriceTop:    bottom.Add(binSize),
		}
	}

	for _, l := range levels {
		idx := int(l.Price.Sub(bar.Low).Div(binSize).Floor().IntPart())
		// a level priced exactly at the bar high lands one past the end
		if idx >= numberOfBins {
			idx = numberOfBins - 1
		}
		if idx < 0 {
			idx = 0
		}
		bins[idx].BuyVolume += l.BuyVolume
		bins[idx].SellVolume += l.SellVolume
	}

	cells := make([]*domain.VolumeCell, len(bins))
	for i, b := range bins {
		cells[i] = &b.VolumeCell
	}

	pocIdx := computePOC(cells)
	if pocIdx >= 0 {
		bins[pocIdx].IsPointOfControl = true
		expandValueArea(cells, pocIdx, valueAreaPct)
	}
	detectImbalances(cells, imbalanceThresholdPct)

	bar.Bins = bins
}
