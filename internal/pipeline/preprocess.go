package pipeline

import (
	"math"
	"sort"

	"daytrade/internal/domain/models"
	"daytrade/pkg/logger"
)

// PreprocessConfig controls bar cleaning.
type PreprocessConfig struct {
	RemoveZeroVolume bool
	WinsorizeEnabled bool
	WinsorizeLower   float64
	WinsorizeUpper   float64
	OutlierWindow    int
	OutlierMinObs    int
	OutlierThreshold float64
	MinTradingDays   int
}

// DefaultPreprocessConfig returns the standard cleaning parameters.
// The 10-sigma outlier threshold is deliberately conservative: daily equity
// series contain legitimate large moves that tighter screens would clip.
func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		RemoveZeroVolume: true,
		WinsorizeEnabled: true,
		WinsorizeLower:   0.01,
		WinsorizeUpper:   0.99,
		OutlierWindow:    60,
		OutlierMinObs:    10,
		OutlierThreshold: 10.0,
		MinTradingDays:   20,
	}
}

// Preprocessor cleans raw daily bars before feature computation.
type Preprocessor struct {
	cfg    PreprocessConfig
	logger *logger.Logger
}

func NewPreprocessor(cfg PreprocessConfig, l *logger.Logger) *Preprocessor {
	return &Preprocessor{cfg: cfg, logger: l}
}

// Clean sorts, deduplicates, filters, and winsorizes one symbol's bars.
// Returns nil when the symbol has fewer than MinTradingDays usable bars.
func (p *Preprocessor) Clean(symbol string, bars models.Bars) models.Bars {
	if len(bars) == 0 {
		p.logger.Warn("no bars to preprocess", logger.String("symbol", symbol))
		return nil
	}

	clean := make(models.Bars, len(bars))
	copy(clean, bars)

	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].Date.Before(clean[j].Date)
	})
	clean = p.removeDuplicates(symbol, clean)

	if p.cfg.RemoveZeroVolume {
		clean = p.removeZeroVolume(symbol, clean)
	}

	if p.cfg.WinsorizeEnabled && len(clean) >= p.cfg.OutlierWindow {
		p.handleOutliers(symbol, clean)
	}

	if len(clean) < p.cfg.MinTradingDays {
		p.logger.Warn("insufficient trading days",
			logger.String("symbol", symbol),
			logger.Int("days", len(clean)),
			logger.Int("required", p.cfg.MinTradingDays))
		return nil
	}

	p.validateOHLC(symbol, clean)
	return clean
}

func (p *Preprocessor) removeDuplicates(symbol string, bars models.Bars) models.Bars {
	out := bars[:0]
	for i, b := range bars {
		if i > 0 && b.Date.Equal(bars[i-1].Date) {
			continue
		}
		out = append(out, b)
	}
	if removed := len(bars) - len(out); removed > 0 {
		p.logger.Warn("removed duplicate bars",
			logger.String("symbol", symbol),
			logger.Int("removed", removed))
	}
	return out
}

func (p *Preprocessor) removeZeroVolume(symbol string, bars models.Bars) models.Bars {
	out := bars[:0]
	for _, b := range bars {
		if b.Volume > 0 {
			out = append(out, b)
		}
	}
	if removed := len(bars) - len(out); removed > 0 {
		p.logger.Info("removed zero volume bars",
			logger.String("symbol", symbol),
			logger.Int("removed", removed))
	}
	return out
}

// handleOutliers screens each price series against a rolling median band and
// winsorizes the whole series when extreme values are found.
func (p *Preprocessor) handleOutliers(symbol string, bars models.Bars) {
	fields := []struct {
		name string
		get  func(*models.Bar) *float64
	}{
		{"open", func(b *models.Bar) *float64 { return &b.Open }},
		{"high", func(b *models.Bar) *float64 { return &b.High }},
		{"low", func(b *models.Bar) *float64 { return &b.Low }},
		{"close", func(b *models.Bar) *float64 { return &b.Close }},
		{"adj_close", func(b *models.Bar) *float64 { return &b.AdjClose }},
	}

	for _, field := range fields {
		values := make([]float64, len(bars))
		for i := range bars {
			values[i] = *field.get(&bars[i])
		}

		med := rollingMedian(values, p.cfg.OutlierWindow, p.cfg.OutlierMinObs)
		std := rollingStdMin(values, p.cfg.OutlierWindow, p.cfg.OutlierMinObs)

		outliers := 0
		for i := range values {
			if math.IsNaN(med[i]) || math.IsNaN(std[i]) {
				continue
			}
			if math.Abs(values[i]-med[i]) > p.cfg.OutlierThreshold*std[i] {
				outliers++
			}
		}
		if outliers == 0 {
			continue
		}

		p.logger.Warn("outliers detected",
			logger.String("symbol", symbol),
			logger.String("column", field.name),
			logger.Int("count", outliers))

		lo := quantile(values, p.cfg.WinsorizeLower)
		hi := quantile(values, p.cfg.WinsorizeUpper)
		for i := range bars {
			v := field.get(&bars[i])
			if *v < lo {
				*v = lo
			} else if *v > hi {
				*v = hi
			}
		}
	}
}

func (p *Preprocessor) validateOHLC(symbol string, bars models.Bars) {
	invalid := 0
	for _, b := range bars {
		if b.High < b.Low ||
			b.High < math.Max(b.Open, b.Close) ||
			b.Low > math.Min(b.Open, b.Close) {
			invalid++
		}
	}
	if invalid > 0 {
		p.logger.Error("invalid OHLC relationships after preprocessing",
			logger.String("symbol", symbol),
			logger.Int("count", invalid))
	}
}
