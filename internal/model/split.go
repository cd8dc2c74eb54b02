package model

import "fmt"

// Fold is one train/validation split of a time-ordered dataset.
type Fold struct {
	TrainIdx []int
	ValIdx   []int
}

// TimeSeriesSplit produces expanding-window folds over row indices. The
// validation size is n/(k+1) rows; each fold trains on everything before its
// validation window, so later information never leaks into training.
func TimeSeriesSplit(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("time series split: need at least 2 folds, got %d", k)
	}
	testSize := n / (k + 1)
	if testSize < 1 {
		return nil, fmt.Errorf("time series split: %d rows is too few for %d folds", n, k)
	}

	folds := make([]Fold, 0, k)
	for i := 0; i < k; i++ {
		testStart := n - (k-i)*testSize
		trainIdx := make([]int, testStart)
		for j := range trainIdx {
			trainIdx[j] = j
		}
		valIdx := make([]int, testSize)
		for j := range valIdx {
			valIdx[j] = testStart + j
		}
		folds = append(folds, Fold{TrainIdx: trainIdx, ValIdx: valIdx})
	}
	return folds, nil
}

// HoldoutSplit reserves the trailing ratio of rows for validation.
func HoldoutSplit(n int, ratio float64) (trainIdx, valIdx []int, err error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, nil, fmt.Errorf("holdout split: ratio must be in (0, 1), got %v", ratio)
	}
	valSize := int(float64(n) * ratio)
	if valSize < 1 || valSize >= n {
		return nil, nil, fmt.Errorf("holdout split: %d rows is too few for ratio %v", n, ratio)
	}

	cut := n - valSize
	trainIdx = make([]int, cut)
	for i := range trainIdx {
		trainIdx[i] = i
	}
	valIdx = make([]int, valSize)
	for i := range valIdx {
		valIdx[i] = cut + i
	}
	return trainIdx, valIdx, nil
}
