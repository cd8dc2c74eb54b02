package model

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticRows builds a dataset where the first feature separates the
// classes and the second is pure noise.
func syntheticRows(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float64, n)
	labels := make([]float64, n)
	for i := range rows {
		x := rng.Float64()*2 - 1
		rows[i] = []float64{x, rng.Float64()}
		if x > 0 {
			labels[i] = 1
		}
	}
	return rows, labels
}

func TestClassifierLearnsSeparableData(t *testing.T) {
	rows, labels := syntheticRows(400, 1)

	clf := NewClassifier(DefaultParams(), []string{"signal", "noise"})
	require.NoError(t, clf.Fit(rows, labels, nil, nil))

	probas, err := clf.PredictProba(rows)
	require.NoError(t, err)
	assert.Greater(t, ROCAUC(labels, probas), 0.99)

	preds, err := clf.Predict(rows)
	require.NoError(t, err)
	correct := 0
	for i := range preds {
		if preds[i] == labels[i] {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(preds)), 0.95)
}

func TestClassifierEarlyStopping(t *testing.T) {
	trainRows, trainLabels := syntheticRows(400, 2)
	valRows, valLabels := syntheticRows(100, 3)

	clf := NewClassifier(DefaultParams(), []string{"signal", "noise"})
	require.NoError(t, clf.Fit(trainRows, trainLabels, valRows, valLabels))

	assert.Greater(t, clf.BestIteration, 0)
	assert.LessOrEqual(t, clf.BestIteration, len(clf.Trees))

	probas, err := clf.PredictProba(valRows)
	require.NoError(t, err)
	assert.Greater(t, ROCAUC(valLabels, probas), 0.95)
}

func TestClassifierMissingValues(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	n := 400
	rows := make([][]float64, n)
	labels := make([]float64, n)
	for i := range rows {
		x := rng.Float64()*2 - 1
		rows[i] = []float64{x, rng.Float64()}
		if x > 0 {
			labels[i] = 1
		}
		// a third of the signal column goes missing
		if rng.Float64() < 0.33 {
			rows[i][0] = math.NaN()
		}
	}

	clf := NewClassifier(DefaultParams(), []string{"signal", "noise"})
	require.NoError(t, clf.Fit(rows, labels, nil, nil))

	probas, err := clf.PredictProba(rows)
	require.NoError(t, err)
	for _, p := range probas {
		assert.False(t, math.IsNaN(p))
	}
	assert.Greater(t, ROCAUC(labels, probas), 0.7)
}

func TestClassifierFeatureImportance(t *testing.T) {
	rows, labels := syntheticRows(400, 5)

	clf := NewClassifier(DefaultParams(), []string{"signal", "noise"})
	require.NoError(t, clf.Fit(rows, labels, nil, nil))

	imp := clf.FeatureImportance()
	require.Len(t, imp, 2)
	assert.Equal(t, "signal", imp[0].Name)
	assert.Greater(t, imp[0].Gain, imp[1].Gain)
}

func TestClassifierDeterministic(t *testing.T) {
	rows, labels := syntheticRows(300, 6)

	a := NewClassifier(DefaultParams(), []string{"signal", "noise"})
	require.NoError(t, a.Fit(rows, labels, nil, nil))
	b := NewClassifier(DefaultParams(), []string{"signal", "noise"})
	require.NoError(t, b.Fit(rows, labels, nil, nil))

	pa, err := a.PredictProba(rows)
	require.NoError(t, err)
	pb, err := b.PredictProba(rows)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestClassifierFitErrors(t *testing.T) {
	clf := NewClassifier(DefaultParams(), []string{"a"})

	assert.Error(t, clf.Fit(nil, nil, nil, nil))
	assert.Error(t, clf.Fit([][]float64{{1}}, []float64{1, 0}, nil, nil))
	assert.Error(t, clf.Fit([][]float64{{1, 2}}, []float64{1}, nil, nil))

	_, err := clf.PredictProba([][]float64{{1}})
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	rows, labels := syntheticRows(300, 7)

	clf := NewClassifier(DefaultParams(), []string{"signal", "noise"})
	require.NoError(t, clf.Fit(rows, labels, nil, nil))

	path := filepath.Join(t.TempDir(), "models", "direction.json")
	require.NoError(t, Save(clf, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, clf.Features, loaded.Features)
	assert.Equal(t, clf.BestIteration, loaded.BestIteration)

	want, err := clf.PredictProba(rows)
	require.NoError(t, err)
	got, err := loaded.PredictProba(rows)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)
}

func TestLoadRejectsBadFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
