package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"daytrade/internal/domain/models"
	drepo "daytrade/internal/domain/repository"
	"daytrade/internal/model"
	"daytrade/internal/pipeline"
	"daytrade/pkg/cache"
	applogger "daytrade/pkg/logger"
	"daytrade/pkg/util"
)

// PredictorConfig holds prediction settings.
type PredictorConfig struct {
	ModelPath    string
	ReportPath   string
	Threshold    float64
	CacheTTL     time.Duration
	LookbackDays int
}

// Predictor scores the latest bar of a symbol with the trained model.
type Predictor struct {
	cfg PredictorConfig

	barStore   drepo.BarStore
	marketData drepo.MarketData
	cache      cache.Service
	metrics    drepo.Metrics
	logger     *applogger.Logger

	pre *pipeline.Preprocessor
	fb  *pipeline.FeatureBuilder
	eng *pipeline.Engineer

	mu        sync.RWMutex
	clf       *model.Classifier
	modelTime time.Time
	modelID   string
}

// NewPredictor creates a predictor. The model file is loaded lazily and
// reloaded whenever its mtime changes, so retraining takes effect
// without a restart.
func NewPredictor(
	cfg PredictorConfig,
	barStore drepo.BarStore,
	marketData drepo.MarketData,
	cacheSvc cache.Service,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *Predictor {
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		cfg.Threshold = 0.5
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 400
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.ReportPath == "" {
		cfg.ReportPath = filepath.Join(filepath.Dir(cfg.ModelPath), "train_report.json")
	}
	return &Predictor{
		cfg:        cfg,
		barStore:   barStore,
		marketData: marketData,
		cache:      cacheSvc,
		metrics:    metrics,
		logger:     l,
		pre:        pipeline.NewPreprocessor(pipeline.DefaultPreprocessConfig(), l),
		fb:         pipeline.NewFeatureBuilder(pipeline.DefaultFeatureConfig(), l),
		eng:        pipeline.NewEngineer(pipeline.DefaultEngineerConfig(), l),
	}
}

// Predict returns the next-day up probability for a symbol's latest bar.
func (p *Predictor) Predict(ctx context.Context, symbol string) (*models.Prediction, error) {
	key := cache.Key("prediction", symbol)
	if p.cache != nil {
		var cached models.Prediction
		if err := p.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	clf, err := p.loadModel()
	if err != nil {
		return nil, err
	}

	end := util.TruncateToDay(time.Now().UTC())
	start := end.AddDate(0, 0, -p.cfg.LookbackDays)
	bars, err := p.loadBars(ctx, symbol, start, end)
	if err != nil {
		p.metrics.RecordError("predict_load_bars")
		return nil, fmt.Errorf("predict %s: %w", symbol, err)
	}

	clean := p.pre.Clean(symbol, bars)
	if len(clean) == 0 {
		return nil, fmt.Errorf("predict %s: not enough history", symbol)
	}

	frame, _, err := p.fb.Build(symbol, clean)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", symbol, err)
	}
	p.eng.Apply(frame)

	row := latestVector(frame, clf.Features)
	probas, err := clf.PredictProba([][]float64{row})
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", symbol, err)
	}
	proba := probas[0]

	direction := "down"
	if proba >= p.cfg.Threshold {
		direction = "up"
	}
	pred := &models.Prediction{
		Symbol:      symbol,
		Date:        frame.Dates[frame.Len()-1],
		ProbaUp:     proba,
		Direction:   direction,
		Threshold:   p.cfg.Threshold,
		ModelID:     p.currentModelID(),
		GeneratedAt: time.Now().UTC(),
	}

	p.metrics.RecordUpProbability(symbol, proba)
	p.metrics.RecordLastClose(symbol, clean[len(clean)-1].Close)

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, pred, p.cfg.CacheTTL); err != nil {
			p.logger.Warn("cache prediction failed", applogger.Error(err))
		}
	}

	p.logger.Info("prediction generated",
		applogger.String("symbol", symbol),
		applogger.Float64("proba_up", proba),
		applogger.String("direction", direction))
	return pred, nil
}

// LatestReport returns the most recent training report.
func (p *Predictor) LatestReport() (*models.TrainReport, error) {
	data, err := os.ReadFile(p.cfg.ReportPath)
	if err != nil {
		return nil, fmt.Errorf("latest report: %w", err)
	}
	var report models.TrainReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("latest report: %w", err)
	}
	return &report, nil
}

func (p *Predictor) loadBars(ctx context.Context, symbol string, start, end time.Time) (models.Bars, error) {
	if p.barStore != nil {
		bars, err := p.barStore.Query(ctx, symbol, start, end)
		if err == nil && len(bars) > 0 {
			return bars, nil
		}
	}
	if p.marketData == nil {
		return nil, fmt.Errorf("no bars available and no provider configured")
	}
	return p.marketData.FetchDailyBars(ctx, symbol, start, end)
}

// loadModel returns the cached model, reloading when the file changed.
func (p *Predictor) loadModel() (*model.Classifier, error) {
	info, err := os.Stat(p.cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("model not available: %w", err)
	}

	p.mu.RLock()
	if p.clf != nil && info.ModTime().Equal(p.modelTime) {
		clf := p.clf
		p.mu.RUnlock()
		return clf, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clf != nil && info.ModTime().Equal(p.modelTime) {
		return p.clf, nil
	}

	clf, err := model.Load(p.cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	p.clf = clf
	p.modelTime = info.ModTime()
	p.modelID = ""
	if report, err := p.readReport(); err == nil {
		p.modelID = report.ModelID
	}
	p.logger.Info("model loaded",
		applogger.String("path", p.cfg.ModelPath),
		applogger.Int("features", len(clf.Features)),
		applogger.Int("best_iteration", clf.BestIteration))
	return clf, nil
}

func (p *Predictor) currentModelID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modelID
}

func (p *Predictor) readReport() (*models.TrainReport, error) {
	data, err := os.ReadFile(p.cfg.ReportPath)
	if err != nil {
		return nil, err
	}
	var report models.TrainReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// latestVector extracts the newest row in model feature order. Features
// the frame lacks become NaN and fall through tree default routing.
func latestVector(f *pipeline.Frame, features []string) []float64 {
	last := f.Len() - 1
	row := make([]float64, len(features))
	for j, name := range features {
		vals, ok := f.Column(name)
		if !ok {
			row[j] = math.NaN()
			continue
		}
		row[j] = vals[last]
	}
	return row
}
