package model

import (
	"sort"

	"daytrade/internal/domain/models"
)

// ROCAUC computes the area under the ROC curve from scores and binary
// labels, using average ranks so tied scores are handled correctly.
// Returns 0.5 when only one class is present.
func ROCAUC(labels []float64, scores []float64) float64 {
	n := len(scores)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j < n && scores[idx[j]] == scores[idx[i]] {
			j++
		}
		avg := (float64(i+1) + float64(j)) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}

	var rankSum float64
	var pos int
	for i, y := range labels {
		if y == 1 {
			rankSum += ranks[i]
			pos++
		}
	}
	neg := n - pos
	if pos == 0 || neg == 0 {
		return 0.5
	}
	return (rankSum - float64(pos)*float64(pos+1)/2) / (float64(pos) * float64(neg))
}

// AveragePrecision computes the area under the precision-recall curve as
// the weighted mean of precisions at each recall step.
func AveragePrecision(labels []float64, scores []float64) float64 {
	n := len(scores)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	var totalPos int
	for _, y := range labels {
		if y == 1 {
			totalPos++
		}
	}
	if totalPos == 0 {
		return 0
	}

	var ap float64
	tp := 0
	for i := 0; i < n; {
		// advance through tied scores as one threshold
		j := i
		deltaPos := 0
		for j < n && scores[idx[j]] == scores[idx[i]] {
			if labels[idx[j]] == 1 {
				tp++
				deltaPos++
			}
			j++
		}
		precision := float64(tp) / float64(j)
		ap += precision * float64(deltaPos) / float64(totalPos)
		i = j
	}
	return ap
}

// Evaluate computes classification metrics for probability scores against
// binary labels at a 0.5 decision threshold.
func Evaluate(labels []float64, probas []float64) models.EvalMetrics {
	var tp, fp, tn, fn int
	var pos int
	for i, y := range labels {
		pred := probas[i] >= 0.5
		truth := y == 1
		if truth {
			pos++
		}
		switch {
		case pred && truth:
			tp++
		case pred && !truth:
			fp++
		case !pred && truth:
			fn++
		default:
			tn++
		}
	}

	n := len(labels)
	m := models.EvalMetrics{
		AUC:              ROCAUC(labels, probas),
		AveragePrecision: AveragePrecision(labels, probas),
		Support:          n,
	}
	if n > 0 {
		m.Accuracy = float64(tp+tn) / float64(n)
		m.PositiveRate = float64(pos) / float64(n)
	}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}
