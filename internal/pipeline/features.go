package pipeline

import (
	"fmt"
	"math"

	"daytrade/internal/domain/models"
	"daytrade/pkg/logger"

	talib "github.com/markcheno/go-talib"
)

// FeatureConfig controls technical indicator generation.
type FeatureConfig struct {
	SMAWindows        []int
	EMAWindows        []int
	ATRWindow         int
	StdevWindow       int
	VolumeRatioWindow int
	ReturnWindows     []int
	RSIWindow         int
	MACDFast          int
	MACDSlow          int
	MACDSignal        int
	BollingerWindow   int
	BollingerStd      float64
	SlopeWindow       int
	StochWindow       int
	StochSmooth       int
	WilliamsRWindow   int
	CCIWindow         int
	ADXWindow         int
}

// DefaultFeatureConfig returns the standard indicator windows.
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		SMAWindows:        []int{5, 10, 20, 50},
		EMAWindows:        []int{21},
		ATRWindow:         14,
		StdevWindow:       20,
		VolumeRatioWindow: 20,
		ReturnWindows:     []int{1, 5, 10},
		RSIWindow:         14,
		MACDFast:          12,
		MACDSlow:          26,
		MACDSignal:        9,
		BollingerWindow:   20,
		BollingerStd:      2.0,
		SlopeWindow:       20,
		StochWindow:       14,
		StochSmooth:       3,
		WilliamsRWindow:   14,
		CCIWindow:         20,
		ADXWindow:         14,
	}
}

// FeatureBuilder generates technical indicators from daily bars. All features
// use only information up to time t, never ahead of it.
type FeatureBuilder struct {
	cfg    FeatureConfig
	logger *logger.Logger
}

func NewFeatureBuilder(cfg FeatureConfig, l *logger.Logger) *FeatureBuilder {
	return &FeatureBuilder{cfg: cfg, logger: l}
}

// Build computes all indicators for one symbol and returns the frame plus
// the list of generated feature column names.
func (fb *FeatureBuilder) Build(symbol string, bars models.Bars) (*Frame, []string, error) {
	if len(bars) == 0 {
		return nil, nil, fmt.Errorf("feature build %s: no bars", symbol)
	}

	f := FrameFromBars(symbol, bars)

	// adjusted close captures splits and dividends, so price-derived
	// indicators use it; range indicators stay on raw OHLC
	price := f.MustColumn("adj_close")
	high := f.MustColumn("high")
	low := f.MustColumn("low")
	closes := f.MustColumn("close")
	volume := f.MustColumn("volume")

	var features []string
	add := func(name string, values []float64) {
		f.Set(name, values)
		features = append(features, name)
	}

	// trend
	for _, w := range fb.cfg.SMAWindows {
		add(fmt.Sprintf("sma_%d", w), maskWarmup(talib.Sma(price, w), w-1))
	}
	for _, w := range fb.cfg.EMAWindows {
		add(fmt.Sprintf("ema_%d", w), maskWarmup(talib.Ema(price, w), w-1))
	}
	slope := rollingSlope(price, fb.cfg.SlopeWindow)
	add(fmt.Sprintf("slope_%d", fb.cfg.SlopeWindow), slope)
	slopePct := make([]float64, len(price))
	for i := range price {
		slopePct[i] = slope[i] / price[i]
	}
	add(fmt.Sprintf("slope_pct_%d", fb.cfg.SlopeWindow), slopePct)

	// volatility
	atr := maskWarmup(talib.Atr(high, low, closes, fb.cfg.ATRWindow), fb.cfg.ATRWindow)
	add(fmt.Sprintf("atr_%d", fb.cfg.ATRWindow), atr)
	atrPct := make([]float64, len(atr))
	for i := range atr {
		atrPct[i] = atr[i] / closes[i]
	}
	add(fmt.Sprintf("atr_pct_%d", fb.cfg.ATRWindow), atrPct)

	returns := pctChange(price, 1)
	add(fmt.Sprintf("stdev_%d", fb.cfg.StdevWindow), expandingStd(returns, fb.cfg.StdevWindow))

	upper, middle, lower := talib.BBands(price, fb.cfg.BollingerWindow, fb.cfg.BollingerStd, fb.cfg.BollingerStd, talib.SMA)
	warm := fb.cfg.BollingerWindow - 1
	maskWarmup(upper, warm)
	maskWarmup(middle, warm)
	maskWarmup(lower, warm)
	add(fmt.Sprintf("bb_upper_%d", fb.cfg.BollingerWindow), upper)
	add(fmt.Sprintf("bb_lower_%d", fb.cfg.BollingerWindow), lower)
	add(fmt.Sprintf("bb_middle_%d", fb.cfg.BollingerWindow), middle)
	width := make([]float64, len(price))
	pband := make([]float64, len(price))
	for i := range price {
		width[i] = (upper[i] - lower[i]) / middle[i] * 100
		pband[i] = (price[i] - lower[i]) / (upper[i] - lower[i])
	}
	add(fmt.Sprintf("bb_width_%d", fb.cfg.BollingerWindow), width)
	add(fmt.Sprintf("bb_pband_%d", fb.cfg.BollingerWindow), pband)

	// volume
	volMean := expandingMean(volume, fb.cfg.VolumeRatioWindow)
	volRatio := make([]float64, len(volume))
	for i := range volume {
		volRatio[i] = volume[i] / volMean[i]
	}
	add(fmt.Sprintf("vol_ratio_%d", fb.cfg.VolumeRatioWindow), volRatio)

	turnover := make([]float64, len(price))
	for i := range price {
		turnover[i] = price[i] * volume[i]
	}
	tovMean := expandingMean(turnover, fb.cfg.VolumeRatioWindow)
	tovRatio := make([]float64, len(turnover))
	for i := range turnover {
		tovRatio[i] = turnover[i] / tovMean[i]
	}
	add(fmt.Sprintf("tov_ratio_%d", fb.cfg.VolumeRatioWindow), tovRatio)

	add("vpt", volumePriceTrend(price, volume))
	add("obv", talib.Obv(price, volume))

	// momentum
	for _, w := range fb.cfg.ReturnWindows {
		add(fmt.Sprintf("ret_%dd", w), pctChange(price, w))
	}
	add(fmt.Sprintf("rsi_%d", fb.cfg.RSIWindow), maskWarmup(talib.Rsi(price, fb.cfg.RSIWindow), fb.cfg.RSIWindow))

	macd, macdSignal, macdHist := talib.Macd(price, fb.cfg.MACDFast, fb.cfg.MACDSlow, fb.cfg.MACDSignal)
	maskWarmup(macd, fb.cfg.MACDSlow-1)
	maskWarmup(macdSignal, fb.cfg.MACDSlow+fb.cfg.MACDSignal-2)
	maskWarmup(macdHist, fb.cfg.MACDSlow+fb.cfg.MACDSignal-2)
	add("macd", macd)
	add("macd_signal", macdSignal)
	add("macd_hist", macdHist)

	stochK, stochD := talib.Stoch(high, low, closes,
		fb.cfg.StochWindow, fb.cfg.StochSmooth, talib.SMA, fb.cfg.StochSmooth, talib.SMA)
	stochWarm := fb.cfg.StochWindow + 2*(fb.cfg.StochSmooth-1) - 1
	maskWarmup(stochK, stochWarm)
	maskWarmup(stochD, stochWarm)
	add("stoch_k", stochK)
	add("stoch_d", stochD)

	// additional technicals need a minimum history to be meaningful
	n := f.Len()
	if n >= fb.cfg.WilliamsRWindow {
		add("williams_r", maskWarmup(talib.WillR(high, low, closes, fb.cfg.WilliamsRWindow), fb.cfg.WilliamsRWindow-1))
		add("cci", maskWarmup(talib.Cci(high, low, closes, fb.cfg.CCIWindow), fb.cfg.CCIWindow-1))
		add("adx", maskWarmup(talib.Adx(high, low, closes, fb.cfg.ADXWindow), 2*fb.cfg.ADXWindow-1))
		add("adx_pos", maskWarmup(talib.PlusDI(high, low, closes, fb.cfg.ADXWindow), fb.cfg.ADXWindow))
		add("adx_neg", maskWarmup(talib.MinusDI(high, low, closes, fb.cfg.ADXWindow), fb.cfg.ADXWindow))
	} else {
		fb.logger.Warn("insufficient history for range indicators",
			logger.String("symbol", symbol), logger.Int("bars", n))
		for _, name := range []string{"williams_r", "cci", "adx", "adx_pos", "adx_neg"} {
			add(name, nanSlice(n))
		}
	}

	// seasonality
	dow := make([]float64, n)
	dom := make([]float64, n)
	prevDay := make([]float64, n)
	nextDay := make([]float64, n)
	for i, d := range f.Dates {
		dow[i] = float64((int(d.Weekday()) + 6) % 7) // 0=Monday
		dom[i] = float64(d.Day())
		if i > 0 && f.Dates[i-1].Equal(d.AddDate(0, 0, -1)) {
			prevDay[i] = 1
		}
		if i < n-1 && f.Dates[i+1].Equal(d.AddDate(0, 0, 1)) {
			nextDay[i] = 1
		}
	}
	add("dow", dow)
	add("day_of_month", dom)
	add("prev_day", prevDay)
	add("next_day", nextDay)

	f.Set("contains_leading_nan", leadingNaNFlags(f, features))

	fb.logger.Info("feature building completed",
		logger.String("symbol", symbol),
		logger.Int("rows", n),
		logger.Int("features", len(features)))
	return f, features, nil
}

// pctChange computes values[i]/values[i-n] - 1.
func pctChange(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	for i := n; i < len(values); i++ {
		if values[i-n] != 0 {
			out[i] = values[i]/values[i-n] - 1
		}
	}
	return out
}

// rollingSlope approximates the trend slope as (last - first) / window.
func rollingSlope(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		n := i - lo + 1
		if n < 2 {
			continue
		}
		out[i] = (values[i] - values[lo]) / float64(n)
	}
	return out
}

// expandingMean is a trailing mean that starts from the first observation
// and caps the window once enough history accumulates.
func expandingMean(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		sum := 0.0
		n := 0
		for j := lo; j <= i; j++ {
			if math.IsNaN(values[j]) {
				continue
			}
			sum += values[j]
			n++
		}
		if n > 0 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// expandingStd is the trailing sample std with a growing window, NaN until
// two observations exist.
func expandingStd(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		sum, sumSq := 0.0, 0.0
		n := 0
		for j := lo; j <= i; j++ {
			if math.IsNaN(values[j]) {
				continue
			}
			sum += values[j]
			sumSq += values[j] * values[j]
			n++
		}
		if n < 2 {
			continue
		}
		fn := float64(n)
		v := (sumSq - sum*sum/fn) / (fn - 1)
		if v < 0 {
			v = 0
		}
		out[i] = math.Sqrt(v)
	}
	return out
}

// volumePriceTrend accumulates volume weighted by the daily return.
func volumePriceTrend(price, volume []float64) []float64 {
	out := nanSlice(len(price))
	if len(price) < 2 {
		return out
	}
	acc := 0.0
	for i := 1; i < len(price); i++ {
		if price[i-1] != 0 {
			acc += volume[i] * (price[i] - price[i-1]) / price[i-1]
		}
		out[i] = acc
	}
	return out
}

// leadingNaNFlags marks rows where any feature is still inside its initial
// warmup run of NaNs. Such rows carry no usable signal and are dropped
// before labeling.
func leadingNaNFlags(f *Frame, features []string) []float64 {
	n := f.Len()
	flags := make([]float64, n)
	for _, name := range features {
		col := f.MustColumn(name)
		for i := 0; i < n; i++ {
			if !math.IsNaN(col[i]) {
				break
			}
			flags[i] = 1
		}
	}
	return flags
}
