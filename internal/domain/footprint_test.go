package domain

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAddTickVolumeRoundsToTickSize(t *testing.T) {
	bar := NewFootprintBar(time.Now(), decimal.NewFromFloat(0.1))

	bar.AddTickVolume(decimal.NewFromFloat(10.04), 1, true)
	bar.AddTickVolume(decimal.NewFromFloat(10.01), 1, true)
	// half-tick boundary rounds away from zero
	bar.AddTickVolume(decimal.NewFromFloat(10.05), 1, false)

	require.Equal(t, 2, bar.LevelCount())

	level := bar.Level(decimal.NewFromFloat(10.0))
	require.NotNil(t, level)
	require.Equal(t, uint64(2), level.BuyVolume)

	level = bar.Level(decimal.NewFromFloat(10.1))
	require.NotNil(t, level)
	require.Equal(t, uint64(1), level.SellVolume)
}

func TestVolumeConservation(t *testing.T) {
	bar := NewFootprintBar(time.Now(), decimal.NewFromFloat(0.1))
	prices := []float64{10.0, 10.1, 10.1, 10.2, 9.9, 10.0}
	for i, p := range prices {
		bar.AddTickVolume(decimal.NewFromFloat(p), 1, i%2 == 0)
	}

	var sum uint64
	for _, l := range bar.Levels() {
		sum += l.TotalVolume()
	}
	require.Equal(t, bar.TotalVolume(), sum)
	require.Equal(t, bar.TotalVolume(), bar.TotalBuyVolume+bar.TotalSellVolume)
}

func TestLevelsSortedAscending(t *testing.T) {
	bar := NewFootprintBar(time.Now(), decimal.NewFromFloat(0.1))
	for _, p := range []float64{10.3, 9.9, 10.1, 10.0} {
		bar.AddTickVolume(decimal.NewFromFloat(p), 1, true)
	}

	levels := bar.Levels()
	for i := 1; i < len(levels); i++ {
		require.True(t, levels[i-1].Price.LessThan(levels[i].Price))
	}
}

func TestRatioSentinels(t *testing.T) {
	c := &VolumeCell{}
	require.Equal(t, 1.0, c.Ratio(), "empty cell ratio is defined as 1.0")

	c.BuyVolume = 5
	require.True(t, math.IsInf(c.Ratio(), 1), "one-sided buy volume yields +Inf")

	c.SellVolume = 2
	require.Equal(t, 2.5, c.Ratio())
}

func TestDelta(t *testing.T) {
	c := &VolumeCell{BuyVolume: 3, SellVolume: 7}
	require.Equal(t, int64(-4), c.Delta())

	bar := NewFootprintBar(time.Now(), decimal.NewFromFloat(0.1))
	bar.AddTickVolume(decimal.NewFromFloat(10.0), 2, true)
	bar.AddTickVolume(decimal.NewFromFloat(10.0), 5, false)
	require.Equal(t, int64(-3), bar.Delta())
}
