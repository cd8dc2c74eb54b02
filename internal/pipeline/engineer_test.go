package pipeline

import (
	"math"
	"testing"
	"time"

	"daytrade/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engineeredFrame(t *testing.T) (*Frame, []string) {
	t.Helper()
	fb := NewFeatureBuilder(DefaultFeatureConfig(), logger.Nop())
	f, features, err := fb.Build("6758.T", trendingBars(120))
	require.NoError(t, err)
	return f, features
}

func TestEngineerLagFeatures(t *testing.T) {
	f, _ := engineeredFrame(t)
	eng := NewEngineer(DefaultEngineerConfig(), logger.Nop())

	added := eng.Apply(f)
	assert.Contains(t, added, "ret_1d_lag_1")
	assert.Contains(t, added, "rsi_14_lag_5")

	base := f.MustColumn("ret_1d")
	lag1 := f.MustColumn("ret_1d_lag_1")
	assert.True(t, math.IsNaN(lag1[0]))
	assert.Equal(t, base[10], lag1[11])
}

func TestEngineerRollingAndMomentum(t *testing.T) {
	f, _ := engineeredFrame(t)
	eng := NewEngineer(DefaultEngineerConfig(), logger.Nop())
	added := eng.Apply(f)

	assert.Contains(t, added, "macd_rolling_mean_3")
	assert.Contains(t, added, "macd_rolling_std_10")
	assert.Contains(t, added, "vol_ratio_20_momentum_5")

	mom := f.MustColumn("vol_ratio_20_momentum_5")
	base := f.MustColumn("vol_ratio_20")
	i := 100
	want := (base[i] - base[i-5]) / (base[i-5] + divEpsilon)
	assert.InDelta(t, want, mom[i], 1e-9)
}

func TestEngineerInteractions(t *testing.T) {
	f, _ := engineeredFrame(t)
	eng := NewEngineer(DefaultEngineerConfig(), logger.Nop())
	added := eng.Apply(f)

	assert.Contains(t, added, "rsi_14_x_vol_ratio_20")
	assert.Contains(t, added, "rsi_14_div_vol_ratio_20")

	rsi := f.MustColumn("rsi_14")
	vol := f.MustColumn("vol_ratio_20")
	product := f.MustColumn("rsi_14_x_vol_ratio_20")
	ratio := f.MustColumn("rsi_14_div_vol_ratio_20")
	i := 60
	assert.InDelta(t, rsi[i]*vol[i], product[i], 1e-9)
	assert.InDelta(t, rsi[i]/(vol[i]+divEpsilon), ratio[i], 1e-9)
}

func TestEngineerDomainFeatures(t *testing.T) {
	f, _ := engineeredFrame(t)
	eng := NewEngineer(DefaultEngineerConfig(), logger.Nop())
	added := eng.Apply(f)

	for _, name := range []string{
		"momentum_strength", "oversold", "overbought", "volatility_regime",
		"trend_consistency", "volume_spike", "technical_score", "risk_score",
	} {
		assert.Contains(t, added, name)
	}

	rsi := f.MustColumn("rsi_14")
	strength := f.MustColumn("momentum_strength")
	i := 60
	assert.InDelta(t, math.Abs(rsi[i]-50), strength[i], 1e-9)

	oversold := f.MustColumn("oversold")
	overbought := f.MustColumn("overbought")
	for j := range rsi {
		if math.IsNaN(rsi[j]) {
			continue
		}
		if rsi[j] < 30 {
			assert.Equal(t, 1.0, oversold[j])
		} else {
			assert.Equal(t, 0.0, oversold[j])
		}
		if rsi[j] > 70 {
			assert.Equal(t, 1.0, overbought[j])
		} else {
			assert.Equal(t, 0.0, overbought[j])
		}
	}
}

func TestEngineerSkipsMissingColumns(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	f := NewFrame("X", []time.Time{day, day.AddDate(0, 0, 1)})
	f.Set("close", []float64{10, 11})

	cfg := EngineerConfig{
		LagFeatures:  []string{"absent"},
		LagPeriods:   []int{1},
		Interactions: [][2]string{{"absent", "close"}},
		RankFeatures: []string{"close"},
	}
	eng := NewEngineer(cfg, logger.Nop())
	added := eng.Apply(f)

	assert.Equal(t, []string{"close_rank"}, added)
}

func TestSelectorExcludesAndFiltersCorrelated(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, 50)
	for i := range dates {
		dates[i] = day.AddDate(0, 0, i)
	}
	f := NewFrame("X", dates)

	a := make([]float64, 50)
	b := make([]float64, 50) // perfectly correlated with a, higher variance
	c := make([]float64, 50) // independent
	for i := range a {
		a[i] = float64(i)
		b[i] = float64(i) * 3
		c[i] = math.Sin(float64(i))
	}
	f.Set("close", a)
	f.Set("feat_a", a)
	f.Set("feat_b", b)
	f.Set("feat_c", c)

	sel := NewSelector(DefaultSelectorConfig(), logger.Nop())
	got := sel.Select(f, []string{"close", "feat_a", "feat_b", "feat_c"})

	assert.NotContains(t, got, "close")  // excluded raw price
	assert.NotContains(t, got, "feat_a") // lower variance of correlated pair
	assert.Contains(t, got, "feat_b")
	assert.Contains(t, got, "feat_c")
}
