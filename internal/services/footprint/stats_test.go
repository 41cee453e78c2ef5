package footprint

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mauriziolobello/footprint/internal/domain"
)

func cells(volumes ...[2]uint64) []*domain.VolumeCell {
	out := make([]*domain.VolumeCell, len(volumes))
	for i, v := range volumes {
		out[i] = &domain.VolumeCell{BuyVolume: v[0], SellVolume: v[1]}
	}
	return out
}

func TestComputePOCPicksMaxVolume(t *testing.T) {
	cs := cells([2]uint64{1, 0}, [2]uint64{3, 4}, [2]uint64{2, 0})
	require.Equal(t, 1, computePOC(cs))
}

func TestComputePOCTieBreaksLowestPrice(t *testing.T) {
	// equal volumes at indices 0 and 2: the lower price wins
	cs := cells([2]uint64{2, 3}, [2]uint64{1, 0}, [2]uint64{5, 0})
	require.Equal(t, 0, computePOC(cs))
}

func TestComputePOCEmpty(t *testing.T) {
	require.Equal(t, -1, computePOC(nil))
}

func TestExpandValueAreaPrefersLargerNeighbor(t *testing.T) {
	// volumes: 1, 2, 10, 5, 1 with POC at index 2
	cs := cells([2]uint64{1, 0}, [2]uint64{2, 0}, [2]uint64{10, 0}, [2]uint64{5, 0}, [2]uint64{1, 0})

	// target = floor(19 * 70 / 100) = 13: POC(10) + upper(5) reaches it
	lo, hi := expandValueArea(cs, 2, 70)
	require.Equal(t, 2, lo)
	require.Equal(t, 3, hi)
	require.True(t, cs[2].IsInValueArea)
	require.True(t, cs[3].IsInValueArea)
	require.False(t, cs[1].IsInValueArea)
}

func TestExpandValueAreaTieFavorsUpper(t *testing.T) {
	cs := cells([2]uint64{3, 0}, [2]uint64{10, 0}, [2]uint64{3, 0})
	lo, hi := expandValueArea(cs, 1, 80)
	// both neighbors hold 3; the upper one is taken first
	require.Equal(t, 1, lo)
	require.Equal(t, 2, hi)
}

func TestExpandValueAreaMonotonicCoverage(t *testing.T) {
	volumes := [][2]uint64{{1, 0}, {4, 0}, {9, 0}, {6, 2}, {3, 0}, {1, 1}}

	prevWidth := -1
	for _, pct := range []float64{30, 50, 70, 90, 100} {
		cs := cells(volumes...)
		poc := computePOC(cs)
		lo, hi := expandValueArea(cs, poc, pct)
		width := hi - lo
		require.GreaterOrEqual(t, width, prevWidth, "value area must not shrink as pct grows")
		prevWidth = width
	}
}

func TestDetectImbalanceThresholdBoundary(t *testing.T) {
	cs := cells([2]uint64{300, 100})

	detectImbalances(cs, 300)
	require.Equal(t, domain.ImbalanceBuy, cs[0].ImbalanceType)

	detectImbalances(cs, 301)
	require.Equal(t, domain.ImbalanceNone, cs[0].ImbalanceType)
}

func TestDetectImbalanceOneSidedAlwaysFlagged(t *testing.T) {
	cs := cells([2]uint64{0, 1}, [2]uint64{1, 0}, [2]uint64{0, 0})
	detectImbalances(cs, 10000)

	require.Equal(t, domain.ImbalanceSell, cs[0].ImbalanceType)
	require.Equal(t, domain.ImbalanceBuy, cs[1].ImbalanceType)
	require.Equal(t, domain.ImbalanceNone, cs[2].ImbalanceType, "zero volume is never imbalanced")
}

func newBar(t *testing.T, tickSize string) *domain.FootprintBar {
	t.Helper()
	return domain.NewFootprintBar(time.Now().UTC(), decimal.RequireFromString(tickSize))
}

func TestAggregateBinsDojiSingleBin(t *testing.T) {
	bar := newBar(t, "0.1")
	bar.AddTickVolume(decimal.NewFromFloat(10.0), 3, true)
	bar.AddTickVolume(decimal.NewFromFloat(10.0), 1, false)
	bar.High = decimal.NewFromFloat(10.0)
	bar.Low = decimal.NewFromFloat(10.0)

	aggregateBins(bar, 5, 300, 70)

	require.Len(t, bar.Bins, 1)
	bin := bar.Bins[0]
	require.True(t, bin.PriceBottom.Equal(decimal.NewFromFloat(10.0)))
	require.True(t, bin.PriceTop.Equal(decimal.NewFromFloat(10.1)))
	require.True(t, bin.IsPointOfControl)
	require.True(t, bin.IsInValueArea)
	require.Equal(t, uint64(4), bin.TotalVolume())
}

func TestAggregateBinsClampsTopBoundary(t *testing.T) {
	bar := newBar(t, "0.1")
	bar.AddTickVolume(decimal.NewFromFloat(9.9), 1, false)
	bar.AddTickVolume(decimal.NewFromFloat(10.0), 1, false)
	bar.AddTickVolume(decimal.NewFromFloat(10.1), 2, true)
	bar.High = decimal.NewFromFloat(10.1)
	bar.Low = decimal.NewFromFloat(9.9)

	aggregateBins(bar, 2, 300, 70)
	require.Len(t, bar.Bins, 2)

	// level 9.9 falls in [9.9, 10.0); levels 10.0 and 10.1 land in the top
	// bin, 10.1 via the clamp for price == high
	require.Equal(t, uint64(1), bar.Bins[0].TotalVolume())
	require.Equal(t, uint64(3), bar.Bins[1].TotalVolume())
	require.True(t, bar.Bins[1].IsPointOfControl)
}

func TestAggregateBinsConservesVolume(t *testing.T) {
	bar := newBar(t, "0.01")
	prices := []float64{10.00, 10.02, 10.05, 10.07, 10.10, 10.10, 10.03}
	for i, p := range prices {
		bar.AddTickVolume(decimal.NewFromFloat(p), 1, i%2 == 0)
	}
	bar.High = decimal.NewFromFloat(10.10)
	bar.Low = decimal.NewFromFloat(10.00)

	aggregateBins(bar, 4, 300, 70)
	require.Len(t, bar.Bins, 4)

	var sum uint64
	for _, b := range bar.Bins {
		sum += b.TotalVolume()
	}
	require.Equal(t, bar.TotalVolume(), sum, "rebucketing must not create or lose volume")
}

func TestFinalizeSetsPOCAndValueAreaBounds(t *testing.T) {
	bar := newBar(t, "0.1")
	bar.AddTickVolume(decimal.NewFromFloat(9.9), 1, false)
	bar.AddTickVolume(decimal.NewFromFloat(10.0), 1, false)
	bar.AddTickVolume(decimal.NewFromFloat(10.1), 2, true)

	finalize(bar, 300, 70)

	require.NotNil(t, bar.PointOfControl)
	require.True(t, bar.PointOfControl.Price.Equal(decimal.NewFromFloat(10.1)))
	require.True(t, bar.PointOfControl.IsPointOfControl)

	pocCount := 0
	for _, l := range bar.Levels() {
		if l.IsPointOfControl {
			pocCount++
		}
	}
	require.Equal(t, 1, pocCount, "at most one POC per bar")

	require.True(t, bar.ValueAreaLow.LessThanOrEqual(bar.PointOfControl.Price))
	require.True(t, bar.ValueAreaHigh.GreaterThanOrEqual(bar.PointOfControl.Price))
}

func TestFinalizeValueAreaContiguous(t *testing.T) {
	bar := newBar(t, "0.1")
	for i, vol := range []uint64{1, 5, 9, 4, 2} {
		price := decimal.NewFromFloat(10.0).Add(decimal.NewFromFloat(0.1).Mul(decimal.NewFromInt(int64(i))))
		bar.AddTickVolume(price, vol, true)
	}

	finalize(bar, 300, 70)

	inVA := false
	left := false
	for _, l := range bar.Levels() {
		if l.IsInValueArea {
			require.False(t, left, "value area must be one unbroken run")
			inVA = true
		} else if inVA {
			left = true
		}
	}
	require.True(t, inVA)
}
