package pipeline

import (
	"math"

	"daytrade/pkg/logger"
)

// SelectorConfig controls feature selection.
type SelectorConfig struct {
	ExcludeFeatures      []string
	CorrelationThreshold float64
}

// DefaultSelectorConfig excludes raw prices and bookkeeping columns and
// prunes near-duplicate features.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		ExcludeFeatures: []string{
			"open", "high", "low", "close", "adj_close", "volume",
			"prev_day", "next_day", "contains_leading_nan",
		},
		CorrelationThreshold: 0.95,
	}
}

// Selector filters the candidate feature list.
type Selector struct {
	cfg    SelectorConfig
	logger *logger.Logger
}

func NewSelector(cfg SelectorConfig, l *logger.Logger) *Selector {
	return &Selector{cfg: cfg, logger: l}
}

// Select drops excluded features and, from each highly correlated pair, the
// member with lower variance.
func (s *Selector) Select(f *Frame, features []string) []string {
	excluded := make(map[string]bool, len(s.cfg.ExcludeFeatures))
	for _, name := range s.cfg.ExcludeFeatures {
		excluded[name] = true
	}

	candidates := make([]string, 0, len(features))
	for _, name := range features {
		if !excluded[name] && f.Has(name) {
			candidates = append(candidates, name)
		}
	}

	if s.cfg.CorrelationThreshold > 0 && len(candidates) >= 2 {
		candidates = s.correlationFilter(f, candidates)
	}

	s.logger.Info("feature selection completed",
		logger.Int("in", len(features)),
		logger.Int("out", len(candidates)))
	return candidates
}

func (s *Selector) correlationFilter(f *Frame, features []string) []string {
	cols := make([][]float64, len(features))
	vars := make([]float64, len(features))
	for i, name := range features {
		cols[i] = f.MustColumn(name)
		vars[i] = variance(cols[i])
	}

	remove := make(map[string]bool)
	for i := 0; i < len(features); i++ {
		if remove[features[i]] {
			continue
		}
		for j := i + 1; j < len(features); j++ {
			if remove[features[j]] {
				continue
			}
			if math.Abs(pearson(cols[i], cols[j])) > s.cfg.CorrelationThreshold {
				if vars[i] < vars[j] {
					remove[features[i]] = true
				} else {
					remove[features[j]] = true
				}
			}
		}
	}

	out := make([]string, 0, len(features))
	for _, name := range features {
		if !remove[name] {
			out = append(out, name)
		}
	}
	if len(remove) > 0 {
		s.logger.Info("removed correlated features",
			logger.Int("removed", len(remove)),
			logger.Float64("threshold", s.cfg.CorrelationThreshold))
	}
	return out
}
