package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestROCAUC(t *testing.T) {
	labels := []float64{0, 0, 1, 1}
	scores := []float64{0.1, 0.4, 0.35, 0.8}
	assert.InDelta(t, 0.75, ROCAUC(labels, scores), 1e-9)
}

func TestROCAUCPerfect(t *testing.T) {
	labels := []float64{0, 0, 1, 1}
	scores := []float64{0.1, 0.2, 0.8, 0.9}
	assert.InDelta(t, 1.0, ROCAUC(labels, scores), 1e-9)

	// inverted ranking
	assert.InDelta(t, 0.0, ROCAUC(labels, []float64{0.9, 0.8, 0.2, 0.1}), 1e-9)
}

func TestROCAUCTies(t *testing.T) {
	labels := []float64{0, 1}
	scores := []float64{0.5, 0.5}
	assert.InDelta(t, 0.5, ROCAUC(labels, scores), 1e-9)
}

func TestROCAUCSingleClass(t *testing.T) {
	assert.InDelta(t, 0.5, ROCAUC([]float64{1, 1, 1}, []float64{0.1, 0.2, 0.3}), 1e-9)
	assert.InDelta(t, 0.5, ROCAUC([]float64{0, 0}, []float64{0.1, 0.2}), 1e-9)
}

func TestAveragePrecision(t *testing.T) {
	labels := []float64{0, 0, 1, 1}
	scores := []float64{0.1, 0.4, 0.35, 0.8}
	// ranked: 0.8 (pos), 0.4 (neg), 0.35 (pos), 0.1 (neg)
	// AP = 1.0 * 0.5 + (2/3) * 0.5
	assert.InDelta(t, 0.8333333333, AveragePrecision(labels, scores), 1e-9)
}

func TestEvaluate(t *testing.T) {
	labels := []float64{1, 1, 0, 0}
	probas := []float64{0.9, 0.8, 0.3, 0.6}

	m := Evaluate(labels, probas)
	assert.InDelta(t, 1.0, m.AUC, 1e-9)
	assert.InDelta(t, 0.75, m.Accuracy, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.Precision, 1e-9)
	assert.InDelta(t, 1.0, m.Recall, 1e-9)
	assert.InDelta(t, 0.8, m.F1, 1e-9)
	assert.Equal(t, 4, m.Support)
	assert.InDelta(t, 0.5, m.PositiveRate, 1e-9)
}

func TestEvaluateNoPositivePredictions(t *testing.T) {
	labels := []float64{1, 0, 1, 0}
	probas := []float64{0.1, 0.2, 0.3, 0.4}

	m := Evaluate(labels, probas)
	assert.Zero(t, m.Precision)
	assert.Zero(t, m.Recall)
	assert.Zero(t, m.F1)
	assert.InDelta(t, 0.5, m.Accuracy, 1e-9)
}
