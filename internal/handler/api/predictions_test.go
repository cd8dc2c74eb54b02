package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrade/internal/usecase"
	xlogger "daytrade/pkg/logger"
)

type fakeQueue struct {
	mu    sync.Mutex
	types []string
	err   error
}

func (f *fakeQueue) PublishMessage(_ context.Context, msgType string, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.types = append(f.types, msgType)
	return nil
}

func TestHealth(t *testing.T) {
	h := NewPredictionsHandler(xlogger.Nop(), newTestPredictor(t), nil, nil)

	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func newTestPredictor(t *testing.T) *usecase.Predictor {
	t.Helper()
	dir := t.TempDir()
	return usecase.NewPredictor(usecase.PredictorConfig{
		ModelPath:  filepath.Join(dir, "missing_model.json"),
		ReportPath: filepath.Join(dir, "missing_report.json"),
	}, nil, nil, nil, noopMetrics{}, xlogger.Nop())
}

type noopMetrics struct{}

func (noopMetrics) RecordBarIngested(string, string)    {}
func (noopMetrics) RecordRowsBuilt(int)                 {}
func (noopMetrics) RecordError(string)                  {}
func (noopMetrics) RecordLastClose(string, float64)     {}
func (noopMetrics) RecordUpProbability(string, float64) {}
func (noopMetrics) RecordLatency(string, float64)       {}

func TestPredictRequiresSymbol(t *testing.T) {
	h := NewPredictionsHandler(xlogger.Nop(), newTestPredictor(t), nil, nil)

	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/api/predictions", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(http.StatusBadRequest), body["status"])
}

func TestPredictWithoutModelIsNotFound(t *testing.T) {
	h := NewPredictionsHandler(xlogger.Nop(), newTestPredictor(t), nil, nil)

	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/api/predictions?symbol=7203.T", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(http.StatusNotFound), body["status"])
}

func TestLatestModelWithoutReportIsNotFound(t *testing.T) {
	h := NewPredictionsHandler(xlogger.Nop(), newTestPredictor(t), nil, nil)

	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/api/models/latest", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(http.StatusNotFound), body["status"])
}

func TestBuildDatasetEnqueues(t *testing.T) {
	q := &fakeQueue{}
	h := NewPredictionsHandler(xlogger.Nop(), newTestPredictor(t), q, nil)

	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/build",
		strings.NewReader(`{"symbols":["7203.T","6758.T"],"start":"2023-01-01"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(http.StatusAccepted), body["status"])
	assert.Equal(t, []string{usecase.DatasetBuildMessageType}, q.types)
}

func TestBuildDatasetRejectsEmptySymbols(t *testing.T) {
	q := &fakeQueue{}
	h := NewPredictionsHandler(xlogger.Nop(), newTestPredictor(t), q, nil)

	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/build",
		strings.NewReader(`{"symbols":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(http.StatusBadRequest), body["status"])
	assert.Empty(t, q.types)
}

func TestBuildDatasetWithoutQueue(t *testing.T) {
	h := NewPredictionsHandler(xlogger.Nop(), newTestPredictor(t), nil, nil)

	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/build",
		strings.NewReader(`{"symbols":["7203.T"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(http.StatusInternalServerError), body["status"])
}
