package pipeline

import (
	"math"
	"testing"
	"time"

	"daytrade/internal/domain/models"
	"daytrade/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendingBars(n int) models.Bars {
	bars := make(models.Bars, n)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := 100 + float64(i)*0.5 + math.Sin(float64(i)/7)*2
		bars[i] = models.Bar{
			Symbol:   "6758.T",
			Date:     day,
			Open:     c - 0.3,
			High:     c + 1.2,
			Low:      c - 1.1,
			Close:    c,
			AdjClose: c,
			Volume:   100000 + float64(i%9)*5000,
		}
		day = day.AddDate(0, 0, 1)
	}
	return bars
}

func TestFeatureBuilderColumns(t *testing.T) {
	fb := NewFeatureBuilder(DefaultFeatureConfig(), logger.Nop())

	f, features, err := fb.Build("6758.T", trendingBars(120))
	require.NoError(t, err)
	require.Equal(t, 120, f.Len())

	expected := []string{
		"sma_5", "sma_10", "sma_20", "sma_50", "ema_21",
		"slope_20", "slope_pct_20",
		"atr_14", "atr_pct_14", "stdev_20",
		"bb_upper_20", "bb_lower_20", "bb_middle_20", "bb_width_20", "bb_pband_20",
		"vol_ratio_20", "tov_ratio_20", "vpt", "obv",
		"ret_1d", "ret_5d", "ret_10d",
		"rsi_14", "macd", "macd_signal", "macd_hist",
		"stoch_k", "stoch_d", "williams_r", "cci",
		"adx", "adx_pos", "adx_neg",
		"dow", "day_of_month", "prev_day", "next_day",
	}
	for _, name := range expected {
		assert.True(t, f.Has(name), "missing column %s", name)
		assert.Contains(t, features, name)
	}
	assert.True(t, f.Has("contains_leading_nan"))
}

func TestFeatureBuilderSMA(t *testing.T) {
	fb := NewFeatureBuilder(DefaultFeatureConfig(), logger.Nop())
	f, _, err := fb.Build("6758.T", trendingBars(60))
	require.NoError(t, err)

	sma5 := f.MustColumn("sma_5")
	price := f.MustColumn("adj_close")
	assert.True(t, math.IsNaN(sma5[3]))
	want := (price[0] + price[1] + price[2] + price[3] + price[4]) / 5
	assert.InDelta(t, want, sma5[4], 1e-9)
}

func TestFeatureBuilderReturns(t *testing.T) {
	fb := NewFeatureBuilder(DefaultFeatureConfig(), logger.Nop())
	f, _, err := fb.Build("6758.T", trendingBars(60))
	require.NoError(t, err)

	ret1 := f.MustColumn("ret_1d")
	price := f.MustColumn("adj_close")
	assert.True(t, math.IsNaN(ret1[0]))
	assert.InDelta(t, price[1]/price[0]-1, ret1[1], 1e-12)

	ret5 := f.MustColumn("ret_5d")
	assert.InDelta(t, price[10]/price[5]-1, ret5[10], 1e-12)
}

func TestFeatureBuilderSeasonality(t *testing.T) {
	fb := NewFeatureBuilder(DefaultFeatureConfig(), logger.Nop())
	f, _, err := fb.Build("6758.T", trendingBars(30))
	require.NoError(t, err)

	dow := f.MustColumn("dow")
	// 2024-01-02 is a Tuesday
	assert.Equal(t, 1.0, dow[0])

	dom := f.MustColumn("day_of_month")
	assert.Equal(t, 2.0, dom[0])

	prevDay := f.MustColumn("prev_day")
	nextDay := f.MustColumn("next_day")
	assert.Equal(t, 0.0, prevDay[0])
	assert.Equal(t, 1.0, prevDay[1])
	assert.Equal(t, 1.0, nextDay[0])
	assert.Equal(t, 0.0, nextDay[len(nextDay)-1])
}

func TestFeatureBuilderLeadingNaNFlag(t *testing.T) {
	fb := NewFeatureBuilder(DefaultFeatureConfig(), logger.Nop())
	f, _, err := fb.Build("6758.T", trendingBars(120))
	require.NoError(t, err)

	flags := f.MustColumn("contains_leading_nan")
	// sma_50 warms up last among the base indicators
	assert.Equal(t, 1.0, flags[0])
	assert.Equal(t, 1.0, flags[40])
	assert.Equal(t, 0.0, flags[119])

	// the flag run is a prefix: once it clears it stays cleared
	cleared := false
	for _, v := range flags {
		if v == 0 {
			cleared = true
		}
		if cleared {
			assert.Equal(t, 0.0, v)
		}
	}
}

func TestFeatureBuilderShortHistory(t *testing.T) {
	fb := NewFeatureBuilder(DefaultFeatureConfig(), logger.Nop())
	f, _, err := fb.Build("6758.T", trendingBars(10))
	require.NoError(t, err)

	// range indicators get NaN placeholders instead of failing
	williams := f.MustColumn("williams_r")
	for _, v := range williams {
		assert.True(t, math.IsNaN(v))
	}
}

func TestFeatureBuilderNoBars(t *testing.T) {
	fb := NewFeatureBuilder(DefaultFeatureConfig(), logger.Nop())
	_, _, err := fb.Build("6758.T", nil)
	assert.Error(t, err)
}

func TestVolumePriceTrend(t *testing.T) {
	price := []float64{100, 110, 99}
	volume := []float64{10, 20, 30}
	vpt := volumePriceTrend(price, volume)

	assert.True(t, math.IsNaN(vpt[0]))
	assert.InDelta(t, 20*0.1, vpt[1], 1e-9)
	assert.InDelta(t, 20*0.1+30*(99.0/110-1), vpt[2], 1e-9)
}

func TestRollingSlope(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}
	out := rollingSlope(values, 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.InDelta(t, (2.0-1.0)/2, out[1], 1e-9)
	assert.InDelta(t, (3.0-1.0)/3, out[2], 1e-9)
	assert.InDelta(t, (6.0-4.0)/3, out[5], 1e-9)
}
