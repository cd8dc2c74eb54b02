package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"daytrade/internal/domain/models"
	drepo "daytrade/internal/domain/repository"
	"daytrade/internal/pipeline"
	applogger "daytrade/pkg/logger"
	"daytrade/pkg/util"
)

// BuilderConfig holds dataset build settings.
type BuilderConfig struct {
	MarginPct    float64
	WinsorizePct float64
	MinDays      int
	OutputPath   string
}

// BuildResult is the outcome of a dataset build: the run summary plus
// the materialized rows for downstream training.
type BuildResult struct {
	Info     models.DatasetInfo
	Rows     []models.FeatureRow
	Features []string
}

// DatasetBuilder runs the full feature pipeline: load bars, clean them,
// compute indicators, engineer and select features, and attach targets.
type DatasetBuilder struct {
	cfg BuilderConfig

	marketData   drepo.MarketData
	barStore     drepo.BarStore
	datasetStore drepo.DatasetStore
	publisher    drepo.Publisher
	metrics      drepo.Metrics
	logger       *applogger.Logger

	pre *pipeline.Preprocessor
	fb  *pipeline.FeatureBuilder
	eng *pipeline.Engineer
	sel *pipeline.Selector
}

// NewDatasetBuilder wires the pipeline stages. barStore, datasetStore
// and publisher may be nil; the builder then works provider-to-CSV only.
func NewDatasetBuilder(
	cfg BuilderConfig,
	marketData drepo.MarketData,
	barStore drepo.BarStore,
	datasetStore drepo.DatasetStore,
	publisher drepo.Publisher,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *DatasetBuilder {
	pcfg := pipeline.DefaultPreprocessConfig()
	if cfg.WinsorizePct > 0 {
		pcfg.WinsorizeLower = cfg.WinsorizePct
		pcfg.WinsorizeUpper = 1 - cfg.WinsorizePct
	}
	if cfg.MinDays > 0 {
		pcfg.MinTradingDays = cfg.MinDays
	}

	return &DatasetBuilder{
		cfg:          cfg,
		marketData:   marketData,
		barStore:     barStore,
		datasetStore: datasetStore,
		publisher:    publisher,
		metrics:      metrics,
		logger:       l,
		pre:          pipeline.NewPreprocessor(pcfg, l),
		fb:           pipeline.NewFeatureBuilder(pipeline.DefaultFeatureConfig(), l),
		eng:          pipeline.NewEngineer(pipeline.DefaultEngineerConfig(), l),
		sel:          pipeline.NewSelector(pipeline.DefaultSelectorConfig(), l),
	}
}

// Build materializes a dataset for the requested symbols and window.
func (b *DatasetBuilder) Build(ctx context.Context, req *models.BuildDatasetRequest) (*BuildResult, error) {
	started := time.Now()

	end := util.ParseTimeDefault(req.End, util.TruncateToDay(time.Now().UTC()))
	start := util.ParseTimeDefault(req.Start, end.AddDate(-5, 0, 0))
	if !start.Before(end) {
		return nil, fmt.Errorf("build dataset: start %s is not before end %s",
			start.Format(util.DateLayout), end.Format(util.DateLayout))
	}

	margin := req.Margin
	if margin == 0 {
		margin = b.cfg.MarginPct
	}
	tcfg := pipeline.DefaultTargetConfig()
	tcfg.MarginPct = margin
	targets := pipeline.NewTargetGenerator(tcfg, b.logger)

	var frames []*pipeline.Frame
	var candidates []string
	for _, symbol := range req.Symbols {
		bars, err := b.loadBars(ctx, symbol, start, end)
		if err != nil {
			b.metrics.RecordError("load_bars")
			b.logger.Error("load bars failed", applogger.String("symbol", symbol), applogger.Error(err))
			continue
		}

		clean := b.pre.Clean(symbol, bars)
		if len(clean) == 0 {
			b.logger.Warn("symbol skipped after cleaning", applogger.String("symbol", symbol))
			continue
		}

		frame, names, err := b.fb.Build(symbol, clean)
		if err != nil {
			b.metrics.RecordError("build_features")
			b.logger.Error("feature build failed", applogger.String("symbol", symbol), applogger.Error(err))
			continue
		}
		names = append(names, b.eng.Apply(frame)...)

		frame = targets.Apply(frame)
		if frame.Len() == 0 {
			b.logger.Warn("symbol has no labeled rows", applogger.String("symbol", symbol))
			continue
		}

		frames = append(frames, frame)
		if candidates == nil {
			candidates = names
		}
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("build dataset: no symbols produced rows")
	}

	pooled := poolFrames(frames, candidates)
	selected := b.sel.Select(pooled, candidates)

	rows := collectRows(frames, selected)
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Symbol < rows[j].Symbol
	})

	result := &BuildResult{
		Info: models.DatasetInfo{
			RunID:       uuid.NewString(),
			Symbols:     req.Symbols,
			Start:       start,
			End:         end,
			NumRows:     len(rows),
			NumFeatures: len(selected),
			Features:    selected,
			BuiltAt:     time.Now().UTC(),
		},
		Rows:     rows,
		Features: selected,
	}

	if b.datasetStore != nil {
		if err := b.datasetStore.StoreBatch(ctx, result.Info.RunID, rows); err != nil {
			b.metrics.RecordError("store_dataset")
			return nil, fmt.Errorf("build dataset: %w", err)
		}
	}
	if b.cfg.OutputPath != "" {
		if err := writeDatasetCSV(b.cfg.OutputPath, rows, selected); err != nil {
			b.metrics.RecordError("write_csv")
			return nil, fmt.Errorf("build dataset: %w", err)
		}
	}
	if b.publisher != nil {
		if err := b.publisher.PublishEvent(ctx, "dataset.built", result.Info); err != nil {
			b.logger.Warn("publish dataset event failed", applogger.Error(err))
		}
	}

	b.metrics.RecordRowsBuilt(len(rows))
	b.metrics.RecordLatency("dataset_build", time.Since(started).Seconds())
	b.logger.Info("dataset built",
		applogger.String("run_id", result.Info.RunID),
		applogger.Int("rows", len(rows)),
		applogger.Int("features", len(selected)),
		applogger.Duration("duration", time.Since(started)))
	return result, nil
}

// loadBars prefers the local store and falls back to the provider,
// persisting and publishing whatever it fetched.
func (b *DatasetBuilder) loadBars(ctx context.Context, symbol string, start, end time.Time) (models.Bars, error) {
	if b.barStore != nil {
		bars, err := b.barStore.Query(ctx, symbol, start, end)
		if err == nil && len(bars) > 0 {
			return bars, nil
		}
		if err != nil {
			b.logger.Warn("bar store query failed, falling back to provider",
				applogger.String("symbol", symbol), applogger.Error(err))
		}
	}

	if b.marketData == nil {
		return nil, fmt.Errorf("no bars for %s and no provider configured", symbol)
	}
	bars, err := b.marketData.FetchDailyBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	if b.barStore != nil && len(bars) > 0 {
		if err := b.barStore.StoreBatch(ctx, bars); err != nil {
			b.logger.Warn("bar store write failed", applogger.String("symbol", symbol), applogger.Error(err))
		} else {
			for range bars {
				b.metrics.RecordBarIngested("provider", symbol)
			}
		}
	}
	if b.publisher != nil && len(bars) > 0 {
		if err := b.publisher.PublishBars(ctx, bars); err != nil {
			b.logger.Warn("publish bars failed", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
	return bars, nil
}

// poolFrames concatenates per-symbol frames column-wise so feature
// selection sees the combined distribution.
func poolFrames(frames []*pipeline.Frame, names []string) *pipeline.Frame {
	total := 0
	for _, f := range frames {
		total += f.Len()
	}

	dates := make([]time.Time, 0, total)
	for _, f := range frames {
		dates = append(dates, f.Dates...)
	}

	pooled := pipeline.NewFrame("", dates)
	for _, name := range names {
		col := make([]float64, 0, total)
		for _, f := range frames {
			vals, ok := f.Column(name)
			if !ok {
				vals = make([]float64, f.Len())
				for i := range vals {
					vals[i] = math.NaN()
				}
			}
			col = append(col, vals...)
		}
		pooled.Set(name, col)
	}
	return pooled
}

func collectRows(frames []*pipeline.Frame, features []string) []models.FeatureRow {
	var rows []models.FeatureRow
	for _, f := range frames {
		nextRet := f.MustColumn("next_ret")
		yUp := f.MustColumn("y_up")

		cols := make([][]float64, len(features))
		for j, name := range features {
			if vals, ok := f.Column(name); ok {
				cols[j] = vals
			}
		}

		for i := 0; i < f.Len(); i++ {
			fr := models.FeatureRow{
				Symbol:   f.Symbol,
				Date:     f.Dates[i],
				Features: make(map[string]float64, len(features)),
				NextRet:  nextRet[i],
			}
			if yUp[i] == 1 {
				fr.YUp = 1
			}
			for j, name := range features {
				if cols[j] == nil {
					fr.Features[name] = math.NaN()
					continue
				}
				fr.Features[name] = cols[j][i]
			}
			rows = append(rows, fr)
		}
	}
	return rows
}
