package pipeline

import (
	"testing"
	"time"

	"daytrade/internal/domain/models"
	"daytrade/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBars(n int, startClose float64) models.Bars {
	bars := make(models.Bars, n)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := startClose + float64(i)
		bars[i] = models.Bar{
			Symbol:   "7203.T",
			Date:     day,
			Open:     c - 0.5,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
			AdjClose: c,
			Volume:   1000 + float64(i),
		}
		day = day.AddDate(0, 0, 1)
	}
	return bars
}

func TestPreprocessorSortsAndDeduplicates(t *testing.T) {
	cfg := DefaultPreprocessConfig()
	cfg.MinTradingDays = 2
	p := NewPreprocessor(cfg, logger.Nop())

	bars := testBars(3, 100)
	// shuffle order and inject a duplicate date
	dup := bars[1]
	dup.Close = 999
	shuffled := models.Bars{bars[2], bars[0], bars[1], dup}

	clean := p.Clean("7203.T", shuffled)
	require.Len(t, clean, 3)
	assert.True(t, clean[0].Date.Before(clean[1].Date))
	assert.True(t, clean[1].Date.Before(clean[2].Date))
	// first occurrence wins on duplicate dates
	assert.Equal(t, 101.0, clean[1].Close)
}

func TestPreprocessorRemovesZeroVolume(t *testing.T) {
	cfg := DefaultPreprocessConfig()
	cfg.MinTradingDays = 2
	p := NewPreprocessor(cfg, logger.Nop())

	bars := testBars(5, 100)
	bars[2].Volume = 0

	clean := p.Clean("7203.T", bars)
	require.Len(t, clean, 4)
	for _, b := range clean {
		assert.Greater(t, b.Volume, 0.0)
	}
}

func TestPreprocessorMinTradingDays(t *testing.T) {
	cfg := DefaultPreprocessConfig()
	cfg.MinTradingDays = 10
	p := NewPreprocessor(cfg, logger.Nop())

	assert.Nil(t, p.Clean("7203.T", testBars(5, 100)))
	assert.NotNil(t, p.Clean("7203.T", testBars(10, 100)))
}

func TestPreprocessorWinsorizesOutliers(t *testing.T) {
	cfg := DefaultPreprocessConfig()
	cfg.MinTradingDays = 2
	cfg.OutlierWindow = 20
	cfg.OutlierThreshold = 3
	p := NewPreprocessor(cfg, logger.Nop())

	bars := testBars(100, 100)
	spike := bars[80].Close
	bars[80].Close = spike * 100

	clean := p.Clean("7203.T", bars)
	require.Len(t, clean, 100)
	assert.Less(t, clean[80].Close, spike*100)
}

func TestPreprocessorEmptyInput(t *testing.T) {
	p := NewPreprocessor(DefaultPreprocessConfig(), logger.Nop())
	assert.Nil(t, p.Clean("7203.T", nil))
}
