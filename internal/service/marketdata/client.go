package marketdata

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"daytrade/internal/domain/models"
	drepo "daytrade/internal/domain/repository"
	apphttp "daytrade/pkg/http"
	applogger "daytrade/pkg/logger"
)

// Config holds the provider settings.
type Config struct {
	BaseURL        string
	Interval       string
	Timezone       string
	RetryCount     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// Client fetches historical daily candles over a chart-style JSON API.
type Client struct {
	cfg    Config
	http   *apphttp.Client
	loc    *time.Location
	logger *applogger.Logger
}

// New creates a MarketData client. The configured timezone anchors each
// candle timestamp to its local trading date.
func New(l *applogger.Logger, cfg Config) (drepo.MarketData, error) {
	if cfg.Interval == "" {
		cfg.Interval = "1d"
	}
	if cfg.RetryCount < 1 {
		cfg.RetryCount = 1
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("marketdata: load timezone %q: %w", cfg.Timezone, err)
		}
	}

	return &Client{
		cfg:    cfg,
		http:   apphttp.NewClient(apphttp.WithTimeout(30 * time.Second)),
		loc:    loc,
		logger: l,
	}, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDailyBars downloads candles for [start, end] and returns them in
// date order. Transient failures are retried with exponential backoff.
func (c *Client) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (models.Bars, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBaseDelay << (attempt - 1)
			if delay > c.cfg.RetryMaxDelay {
				delay = c.cfg.RetryMaxDelay
			}
			c.logger.Warn("market fetch retry",
				applogger.String("symbol", symbol),
				applogger.Int("attempt", attempt+1),
				applogger.Duration("delay", delay),
				applogger.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		bars, err := c.fetch(ctx, symbol, start, end)
		if err == nil {
			return bars, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetch %s: %w", symbol, lastErr)
}

func (c *Client) fetch(ctx context.Context, symbol string, start, end time.Time) (models.Bars, error) {
	var resp chartResponse
	err := c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/v8/finance/chart/%s", c.cfg.BaseURL, symbol),
		QueryParams: map[string][]string{
			"period1":  {strconv.FormatInt(start.Unix(), 10)},
			"period2":  {strconv.FormatInt(end.Unix(), 10)},
			"interval": {c.cfg.Interval},
			"events":   {"div,splits"},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("provider error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart result for %s", symbol)
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote data for %s", symbol)
	}
	quote := result.Indicators.Quote[0]

	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make(models.Bars, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		bar := models.Bar{
			Symbol: symbol,
			Date:   c.tradingDate(ts),
			Open:   deref(quote.Open, i),
			High:   deref(quote.High, i),
			Low:    deref(quote.Low, i),
			Close:  deref(quote.Close, i),
			Volume: deref(quote.Volume, i),
		}
		bar.AdjClose = deref(adj, i)
		if bar.AdjClose == 0 || math.IsNaN(bar.AdjClose) {
			bar.AdjClose = bar.Close
		}
		// skip rows the provider left entirely empty
		if math.IsNaN(bar.Close) || bar.Close == 0 {
			continue
		}
		bars = append(bars, bar)
	}

	c.logger.Debug("fetched daily bars",
		applogger.String("symbol", symbol),
		applogger.Int("count", len(bars)))
	return bars, nil
}

// tradingDate truncates a candle timestamp to midnight in the exchange
// timezone, then stores it as a UTC date.
func (c *Client) tradingDate(unixSec int64) time.Time {
	t := time.Unix(unixSec, 0).In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func deref(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return math.NaN()
	}
	return *vals[i]
}
