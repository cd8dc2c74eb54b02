package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSeriesSplit(t *testing.T) {
	folds, err := TimeSeriesSplit(12, 3)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	assert.Equal(t, 3, len(folds[0].TrainIdx))
	assert.Equal(t, []int{3, 4, 5}, folds[0].ValIdx)

	assert.Equal(t, 6, len(folds[1].TrainIdx))
	assert.Equal(t, []int{6, 7, 8}, folds[1].ValIdx)

	assert.Equal(t, 9, len(folds[2].TrainIdx))
	assert.Equal(t, []int{9, 10, 11}, folds[2].ValIdx)
}

func TestTimeSeriesSplitOrdering(t *testing.T) {
	folds, err := TimeSeriesSplit(100, 5)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	for _, fold := range folds {
		require.NotEmpty(t, fold.TrainIdx)
		require.NotEmpty(t, fold.ValIdx)
		// every training index precedes every validation index
		lastTrain := fold.TrainIdx[len(fold.TrainIdx)-1]
		assert.Less(t, lastTrain, fold.ValIdx[0])
	}
}

func TestTimeSeriesSplitTooSmall(t *testing.T) {
	_, err := TimeSeriesSplit(3, 5)
	assert.Error(t, err)

	_, err = TimeSeriesSplit(100, 1)
	assert.Error(t, err)
}

func TestHoldoutSplit(t *testing.T) {
	train, val, err := HoldoutSplit(10, 0.2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, train)
	assert.Equal(t, []int{8, 9}, val)

	_, _, err = HoldoutSplit(10, 0)
	assert.Error(t, err)
	_, _, err = HoldoutSplit(10, 1)
	assert.Error(t, err)
}
