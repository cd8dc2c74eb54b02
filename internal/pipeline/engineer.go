package pipeline

import (
	"fmt"
	"math"

	"daytrade/pkg/logger"
)

// EngineerConfig controls derived feature generation.
type EngineerConfig struct {
	LagFeatures     []string
	LagPeriods      []int
	RollingStats    bool
	RollingWindows  []int
	MomentumEnabled bool
	MomentumPeriods []int
	Interactions    [][2]string
	LogFeatures     []string
	SqrtFeatures    []string
	RankFeatures    []string
	DomainFeatures  bool
}

// DefaultEngineerConfig derives lags and interactions from the indicators
// that carry the most predictive signal for next-day direction.
func DefaultEngineerConfig() EngineerConfig {
	return EngineerConfig{
		LagFeatures:     []string{"ret_1d", "rsi_14", "macd", "vol_ratio_20", "atr_pct_14"},
		LagPeriods:      []int{1, 2, 3, 5},
		RollingStats:    true,
		RollingWindows:  []int{3, 5, 10},
		MomentumEnabled: true,
		MomentumPeriods: []int{2, 5, 10},
		Interactions: [][2]string{
			{"rsi_14", "vol_ratio_20"},
			{"macd", "atr_pct_14"},
			{"bb_pband_20", "vol_ratio_20"},
		},
		LogFeatures:    []string{"volume"},
		SqrtFeatures:   []string{"atr_14"},
		RankFeatures:   []string{"close", "volume"},
		DomainFeatures: true,
	}
}

const divEpsilon = 1e-8

// Engineer derives higher-order features from the base indicator frame.
type Engineer struct {
	cfg    EngineerConfig
	logger *logger.Logger
}

func NewEngineer(cfg EngineerConfig, l *logger.Logger) *Engineer {
	return &Engineer{cfg: cfg, logger: l}
}

// Apply adds engineered columns to the frame and returns the new column names.
func (e *Engineer) Apply(f *Frame) []string {
	var added []string
	add := func(name string, values []float64) {
		f.Set(name, values)
		added = append(added, name)
	}

	e.addLagFeatures(f, add)
	e.addInteractions(f, add)
	e.addTransforms(f, add)
	if e.cfg.DomainFeatures {
		e.addDomainFeatures(f, add)
	}

	e.logger.Info("feature engineering completed",
		logger.String("symbol", f.Symbol),
		logger.Int("added", len(added)))
	return added
}

func (e *Engineer) addLagFeatures(f *Frame, add func(string, []float64)) {
	for _, feature := range e.cfg.LagFeatures {
		col, ok := f.Column(feature)
		if !ok {
			e.logger.Warn("skipping lag feature, column not found", logger.String("feature", feature))
			continue
		}

		for _, lag := range e.cfg.LagPeriods {
			add(fmt.Sprintf("%s_lag_%d", feature, lag), shift(col, lag))
		}

		if e.cfg.RollingStats {
			for _, w := range e.cfg.RollingWindows {
				add(fmt.Sprintf("%s_rolling_mean_%d", feature, w), expandingMean(col, w))
				add(fmt.Sprintf("%s_rolling_std_%d", feature, w), expandingStd(col, w))
			}
		}

		if e.cfg.MomentumEnabled {
			for _, p := range e.cfg.MomentumPeriods {
				lagged := shift(col, p)
				momentum := make([]float64, len(col))
				for i := range col {
					momentum[i] = (col[i] - lagged[i]) / (lagged[i] + divEpsilon)
				}
				add(fmt.Sprintf("%s_momentum_%d", feature, p), momentum)
			}
		}
	}
}

func (e *Engineer) addInteractions(f *Frame, add func(string, []float64)) {
	for _, pair := range e.cfg.Interactions {
		a, okA := f.Column(pair[0])
		b, okB := f.Column(pair[1])
		if !okA || !okB {
			e.logger.Warn("skipping interaction, missing columns",
				logger.String("a", pair[0]), logger.String("b", pair[1]))
			continue
		}

		product := make([]float64, len(a))
		ratio := make([]float64, len(a))
		for i := range a {
			product[i] = a[i] * b[i]
			ratio[i] = a[i] / (b[i] + divEpsilon)
		}
		add(fmt.Sprintf("%s_x_%s", pair[0], pair[1]), product)
		add(fmt.Sprintf("%s_div_%s", pair[0], pair[1]), ratio)
	}
}

func (e *Engineer) addTransforms(f *Frame, add func(string, []float64)) {
	for _, feature := range e.cfg.LogFeatures {
		col, ok := f.Column(feature)
		if !ok {
			continue
		}
		out := make([]float64, len(col))
		for i, v := range col {
			out[i] = math.Log(math.Abs(v + divEpsilon))
		}
		add(feature+"_log", out)
	}

	for _, feature := range e.cfg.SqrtFeatures {
		col, ok := f.Column(feature)
		if !ok {
			continue
		}
		out := make([]float64, len(col))
		for i, v := range col {
			out[i] = math.Sqrt(math.Abs(v))
		}
		add(feature+"_sqrt", out)
	}

	for _, feature := range e.cfg.RankFeatures {
		col, ok := f.Column(feature)
		if !ok {
			continue
		}
		add(feature+"_rank", rank(col))
	}
}

func (e *Engineer) addDomainFeatures(f *Frame, add func(string, []float64)) {
	if rsi, ok := f.Column("rsi_14"); ok {
		strength := make([]float64, len(rsi))
		oversold := make([]float64, len(rsi))
		overbought := make([]float64, len(rsi))
		for i, v := range rsi {
			strength[i] = math.Abs(v - 50)
			if math.IsNaN(v) {
				oversold[i] = math.NaN()
				overbought[i] = math.NaN()
				continue
			}
			if v < 30 {
				oversold[i] = 1
			}
			if v > 70 {
				overbought[i] = 1
			}
		}
		add("momentum_strength", strength)
		add("oversold", oversold)
		add("overbought", overbought)
	}

	if atrPct, ok := f.Column("atr_pct_14"); ok {
		add("volatility_regime", rank(atrPct))
	}

	if slopePct, ok := f.Column("slope_pct_20"); ok {
		if macd, ok := f.Column("macd"); ok {
			consistency := make([]float64, len(macd))
			for i := range macd {
				if math.IsNaN(slopePct[i]) || math.IsNaN(macd[i]) {
					consistency[i] = math.NaN()
					continue
				}
				if sign(slopePct[i]) == sign(macd[i]) {
					consistency[i] = 1
				}
			}
			add("trend_consistency", consistency)
		}
	}

	if volRatio, ok := f.Column("vol_ratio_20"); ok {
		spike := make([]float64, len(volRatio))
		for i, v := range volRatio {
			if math.IsNaN(v) {
				spike[i] = math.NaN()
				continue
			}
			if v > 2.0 {
				spike[i] = 1
			}
		}
		add("volume_spike", spike)
	}

	e.addTechnicalScore(f, add)
	e.addRiskScore(f, add)
}

func (e *Engineer) addTechnicalScore(f *Frame, add func(string, []float64)) {
	var components [][]float64

	if rsi, ok := f.Column("rsi_14"); ok {
		components = append(components, scale(rsi, 1.0/100))
	}
	if macd, ok := f.Column("macd"); ok {
		components = append(components, rank(macd))
	}
	if pband, ok := f.Column("bb_pband_20"); ok {
		components = append(components, pband)
	}
	if stochK, ok := f.Column("stoch_k"); ok {
		components = append(components, scale(stochK, 1.0/100))
	}

	if len(components) > 0 {
		add("technical_score", meanAcross(components))
	}
}

func (e *Engineer) addRiskScore(f *Frame, add func(string, []float64)) {
	var components [][]float64

	if atrPct, ok := f.Column("atr_pct_14"); ok {
		components = append(components, rank(atrPct))
	}
	if stdev, ok := f.Column("stdev_20"); ok {
		components = append(components, rank(stdev))
	}
	if width, ok := f.Column("bb_width_20"); ok {
		components = append(components, rank(width))
	}

	if len(components) > 0 {
		add("risk_score", meanAcross(components))
	}
}

// shift moves values forward by n rows, leaving NaN in the opened gap.
func shift(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	for i := n; i < len(values); i++ {
		out[i] = values[i-n]
	}
	return out
}

func scale(values []float64, factor float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * factor
	}
	return out
}

// meanAcross averages aligned series element-wise. A NaN in any component
// makes the result NaN for that row.
func meanAcross(components [][]float64) []float64 {
	n := len(components[0])
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for _, c := range components {
			sum += c[i]
		}
		out[i] = sum / float64(len(components))
	}
	return out
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
