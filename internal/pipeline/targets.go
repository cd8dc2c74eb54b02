package pipeline

import (
	"math"

	"daytrade/pkg/logger"
)

// TargetConfig controls label generation.
type TargetConfig struct {
	MarginPct          float64
	MinReturnThreshold float64
	MaxReturnThreshold float64
	RemoveIncomplete   bool
}

func DefaultTargetConfig() TargetConfig {
	return TargetConfig{
		MarginPct:          0.0,
		MinReturnThreshold: -0.5,
		MaxReturnThreshold: 0.5,
		RemoveIncomplete:   true,
	}
}

// TargetGenerator labels each row with its next-day return and direction.
// All calculations preserve temporal order: y_up at time t only uses the
// close at t+1 as a label, never as an input.
type TargetGenerator struct {
	cfg    TargetConfig
	logger *logger.Logger
}

func NewTargetGenerator(cfg TargetConfig, l *logger.Logger) *TargetGenerator {
	return &TargetGenerator{cfg: cfg, logger: l}
}

// Apply adds next_ret and y_up columns, clips extreme returns, and removes
// rows without next-day data (the trailing row of every symbol).
func (t *TargetGenerator) Apply(f *Frame) *Frame {
	price, ok := f.Column("adj_close")
	if !ok {
		price = f.MustColumn("close")
	}

	n := f.Len()
	nextRet := nanSlice(n)
	yUp := nanSlice(n)
	clippedLow, clippedHigh := 0, 0

	for i := 0; i < n-1; i++ {
		if price[i] == 0 || math.IsNaN(price[i]) || math.IsNaN(price[i+1]) {
			continue
		}
		r := price[i+1]/price[i] - 1

		if r < t.cfg.MinReturnThreshold {
			r = t.cfg.MinReturnThreshold
			clippedLow++
		} else if r > t.cfg.MaxReturnThreshold {
			r = t.cfg.MaxReturnThreshold
			clippedHigh++
		}

		nextRet[i] = r
		if r > t.cfg.MarginPct {
			yUp[i] = 1
		} else {
			yUp[i] = 0
		}
	}

	if clippedLow+clippedHigh > 0 {
		t.logger.Warn("clipped extreme returns",
			logger.String("symbol", f.Symbol),
			logger.Int("low", clippedLow),
			logger.Int("high", clippedHigh))
	}

	f.Set("next_ret", nextRet)
	f.Set("y_up", yUp)

	if t.cfg.RemoveIncomplete {
		keep := make([]bool, n)
		for i := range keep {
			keep[i] = !math.IsNaN(nextRet[i])
		}
		f = f.FilterRows(keep)
	}

	t.logTargetStats(f)
	return f
}

func (t *TargetGenerator) logTargetStats(f *Frame) {
	yUp, ok := f.Column("y_up")
	if !ok || f.Len() == 0 {
		t.logger.Warn("no valid targets generated", logger.String("symbol", f.Symbol))
		return
	}

	up := 0
	for _, v := range yUp {
		if v == 1 {
			up++
		}
	}
	t.logger.Info("target generation completed",
		logger.String("symbol", f.Symbol),
		logger.Int("rows", f.Len()),
		logger.Int("up_days", up),
		logger.Float64("up_rate", float64(up)/float64(f.Len())),
		logger.Float64("margin", t.cfg.MarginPct))
}
