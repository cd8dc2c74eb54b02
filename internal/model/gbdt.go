package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"daytrade/internal/domain/models"
)

// Params holds the boosting hyperparameters.
type Params struct {
	NumLeaves           int     `json:"num_leaves"`
	LearningRate        float64 `json:"learning_rate"`
	NEstimators         int     `json:"n_estimators"`
	MinChildSamples     int     `json:"min_child_samples"`
	FeatureFraction     float64 `json:"feature_fraction"`
	BaggingFraction     float64 `json:"bagging_fraction"`
	BaggingFreq         int     `json:"bagging_freq"`
	RegAlpha            float64 `json:"reg_alpha"`
	RegLambda           float64 `json:"reg_lambda"`
	Seed                int64   `json:"seed"`
	EarlyStoppingRounds int     `json:"early_stopping_rounds"`
}

// DefaultParams mirrors the tuned configuration for next-day direction.
func DefaultParams() Params {
	return Params{
		NumLeaves:           31,
		LearningRate:        0.05,
		NEstimators:         100,
		MinChildSamples:     20,
		FeatureFraction:     0.8,
		BaggingFraction:     0.8,
		BaggingFreq:         5,
		RegAlpha:            0.1,
		RegLambda:           0.1,
		Seed:                42,
		EarlyStoppingRounds: 10,
	}
}

// Node is one tree node. Leaf nodes carry the output value; internal nodes
// route rows by threshold, sending missing values down the default side.
type Node struct {
	Feature     int     `json:"feature"`
	Threshold   float64 `json:"threshold"`
	Left        int     `json:"left"`
	Right       int     `json:"right"`
	DefaultLeft bool    `json:"default_left"`
	Value       float64 `json:"value"`
	IsLeaf      bool    `json:"is_leaf"`
}

// Tree is a single boosted regression tree.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict routes one row through the tree.
func (t *Tree) Predict(row []float64) float64 {
	i := 0
	for {
		node := &t.Nodes[i]
		if node.IsLeaf {
			return node.Value
		}
		v := row[node.Feature]
		if math.IsNaN(v) {
			if node.DefaultLeft {
				i = node.Left
			} else {
				i = node.Right
			}
			continue
		}
		if v <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}

// Classifier is a gradient boosted tree binary classifier with logistic
// loss. Trees are grown leaf-wise with L1/L2 regularized gains.
type Classifier struct {
	Params        Params    `json:"params"`
	Features      []string  `json:"features"`
	InitScore     float64   `json:"init_score"`
	Trees         []Tree    `json:"trees"`
	BestIteration int       `json:"best_iteration"`
	Importance    []float64 `json:"importance"` // gain per feature
}

// NewClassifier creates an untrained classifier for the given feature names.
func NewClassifier(params Params, features []string) *Classifier {
	return &Classifier{
		Params:   params,
		Features: features,
	}
}

// Fit trains the model. When valRows is non-empty, validation AUC drives
// early stopping; otherwise all NEstimators trees are kept.
func (c *Classifier) Fit(rows [][]float64, labels []float64, valRows [][]float64, valLabels []float64) error {
	n := len(rows)
	if n == 0 {
		return fmt.Errorf("fit: empty training set")
	}
	if len(labels) != n {
		return fmt.Errorf("fit: %d rows but %d labels", n, len(labels))
	}
	for _, row := range rows {
		if len(row) != len(c.Features) {
			return fmt.Errorf("fit: row has %d values, want %d", len(row), len(c.Features))
		}
	}

	pos := 0.0
	for _, y := range labels {
		pos += y
	}
	p := pos / float64(n)
	if p < 1e-6 {
		p = 1e-6
	}
	if p > 1-1e-6 {
		p = 1 - 1e-6
	}
	c.InitScore = math.Log(p / (1 - p))
	c.Trees = nil
	c.BestIteration = 0
	c.Importance = make([]float64, len(c.Features))

	rng := rand.New(rand.NewSource(c.Params.Seed))

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = c.InitScore
	}
	valScores := make([]float64, len(valRows))
	for i := range valScores {
		valScores[i] = c.InitScore
	}

	grad := make([]float64, n)
	hess := make([]float64, n)

	bag := allIndices(n)
	bestAUC := math.Inf(-1)
	roundsSinceBest := 0

	for m := 0; m < c.Params.NEstimators; m++ {
		if c.Params.BaggingFraction < 1 && c.Params.BaggingFreq > 0 && m%c.Params.BaggingFreq == 0 {
			bag = sampleIndices(rng, n, c.Params.BaggingFraction)
		}

		for i := range rows {
			sig := sigmoid(scores[i])
			grad[i] = sig - labels[i]
			hess[i] = sig * (1 - sig)
		}

		featureSubset := sampleFeatures(rng, len(c.Features), c.Params.FeatureFraction)
		tree := c.growTree(rows, grad, hess, bag, featureSubset)
		c.Trees = append(c.Trees, tree)

		for i, row := range rows {
			scores[i] += tree.Predict(row)
		}

		if len(valRows) == 0 {
			c.BestIteration = len(c.Trees)
			continue
		}

		for i, row := range valRows {
			valScores[i] += tree.Predict(row)
		}
		auc := ROCAUC(valLabels, valScores)
		if auc > bestAUC {
			bestAUC = auc
			c.BestIteration = len(c.Trees)
			roundsSinceBest = 0
		} else {
			roundsSinceBest++
			if c.Params.EarlyStoppingRounds > 0 && roundsSinceBest >= c.Params.EarlyStoppingRounds {
				break
			}
		}
	}

	if c.BestIteration == 0 {
		c.BestIteration = len(c.Trees)
	}
	return nil
}

// PredictProba returns the probability of the positive class for each row.
func (c *Classifier) PredictProba(rows [][]float64) ([]float64, error) {
	if len(c.Trees) == 0 {
		return nil, fmt.Errorf("predict: model is not trained")
	}
	trees := c.Trees
	if c.BestIteration > 0 && c.BestIteration < len(trees) {
		trees = trees[:c.BestIteration]
	}

	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(c.Features) {
			return nil, fmt.Errorf("predict: row has %d values, want %d", len(row), len(c.Features))
		}
		score := c.InitScore
		for t := range trees {
			score += trees[t].Predict(row)
		}
		out[i] = sigmoid(score)
	}
	return out, nil
}

// Predict returns hard labels at a 0.5 threshold.
func (c *Classifier) Predict(rows [][]float64) ([]float64, error) {
	probas, err := c.PredictProba(rows)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(probas))
	for i, p := range probas {
		if p >= 0.5 {
			out[i] = 1
		}
	}
	return out, nil
}

// FeatureImportance returns features sorted by accumulated split gain.
func (c *Classifier) FeatureImportance() []models.FeatureImportance {
	out := make([]models.FeatureImportance, 0, len(c.Features))
	for i, name := range c.Features {
		out = append(out, models.FeatureImportance{Name: name, Gain: c.Importance[i]})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Gain > out[b].Gain })
	return out
}

type splitInfo struct {
	feature     int
	threshold   float64
	gain        float64
	defaultLeft bool
}

type leafState struct {
	nodeIdx int
	indices []int
	sumG    float64
	sumH    float64
	split   *splitInfo
}

func (c *Classifier) growTree(rows [][]float64, grad, hess []float64, bag []int, features []int) Tree {
	tree := Tree{}

	var sumG, sumH float64
	for _, i := range bag {
		sumG += grad[i]
		sumH += hess[i]
	}

	root := &leafState{nodeIdx: 0, indices: bag, sumG: sumG, sumH: sumH}
	tree.Nodes = append(tree.Nodes, Node{IsLeaf: true, Value: c.leafValue(sumG, sumH)})
	root.split = c.findBestSplit(rows, grad, hess, root, features)

	leaves := []*leafState{root}
	for len(leaves) < c.Params.NumLeaves {
		best := -1
		for i, leaf := range leaves {
			if leaf.split == nil {
				continue
			}
			if best == -1 || leaf.split.gain > leaves[best].split.gain {
				best = i
			}
		}
		if best == -1 {
			break
		}

		leaf := leaves[best]
		split := leaf.split

		var leftIdx, rightIdx []int
		var lG, lH, rG, rH float64
		for _, i := range leaf.indices {
			v := rows[i][split.feature]
			goLeft := false
			if math.IsNaN(v) {
				goLeft = split.defaultLeft
			} else {
				goLeft = v <= split.threshold
			}
			if goLeft {
				leftIdx = append(leftIdx, i)
				lG += grad[i]
				lH += hess[i]
			} else {
				rightIdx = append(rightIdx, i)
				rG += grad[i]
				rH += hess[i]
			}
		}

		leftNode := len(tree.Nodes)
		tree.Nodes = append(tree.Nodes, Node{IsLeaf: true, Value: c.leafValue(lG, lH)})
		rightNode := len(tree.Nodes)
		tree.Nodes = append(tree.Nodes, Node{IsLeaf: true, Value: c.leafValue(rG, rH)})

		tree.Nodes[leaf.nodeIdx] = Node{
			Feature:     split.feature,
			Threshold:   split.threshold,
			Left:        leftNode,
			Right:       rightNode,
			DefaultLeft: split.defaultLeft,
		}
		c.Importance[split.feature] += split.gain

		left := &leafState{nodeIdx: leftNode, indices: leftIdx, sumG: lG, sumH: lH}
		right := &leafState{nodeIdx: rightNode, indices: rightIdx, sumG: rG, sumH: rH}
		left.split = c.findBestSplit(rows, grad, hess, left, features)
		right.split = c.findBestSplit(rows, grad, hess, right, features)

		leaves[best] = left
		leaves = append(leaves, right)
	}

	return tree
}

// findBestSplit scans every candidate feature for the threshold with the
// highest regularized gain. Missing values are routed to whichever side
// scores better; that side becomes the node's default direction.
func (c *Classifier) findBestSplit(rows [][]float64, grad, hess []float64, leaf *leafState, features []int) *splitInfo {
	if len(leaf.indices) < 2*c.Params.MinChildSamples {
		return nil
	}

	parentScore := c.splitScore(leaf.sumG, leaf.sumH)
	var best *splitInfo

	type sample struct {
		v, g, h float64
	}
	samples := make([]sample, 0, len(leaf.indices))

	for _, f := range features {
		samples = samples[:0]
		var nanG, nanH float64
		nanCount := 0
		for _, i := range leaf.indices {
			v := rows[i][f]
			if math.IsNaN(v) {
				nanG += grad[i]
				nanH += hess[i]
				nanCount++
				continue
			}
			samples = append(samples, sample{v: v, g: grad[i], h: hess[i]})
		}
		if len(samples) < 2 {
			continue
		}
		sort.Slice(samples, func(a, b int) bool { return samples[a].v < samples[b].v })

		var cumG, cumH float64
		for k := 0; k < len(samples)-1; k++ {
			cumG += samples[k].g
			cumH += samples[k].h
			if samples[k].v == samples[k+1].v {
				continue
			}

			threshold := (samples[k].v + samples[k+1].v) / 2
			leftCount := k + 1
			rightCount := len(samples) - leftCount

			// missing goes right
			if leftCount >= c.Params.MinChildSamples && rightCount+nanCount >= c.Params.MinChildSamples {
				gain := c.splitScore(cumG, cumH) +
					c.splitScore(leaf.sumG-cumG, leaf.sumH-cumH) - parentScore
				if best == nil || gain > best.gain {
					best = &splitInfo{feature: f, threshold: threshold, gain: gain, defaultLeft: false}
				}
			}

			// missing goes left
			if nanCount > 0 && leftCount+nanCount >= c.Params.MinChildSamples && rightCount >= c.Params.MinChildSamples {
				gain := c.splitScore(cumG+nanG, cumH+nanH) +
					c.splitScore(leaf.sumG-cumG-nanG, leaf.sumH-cumH-nanH) - parentScore
				if best == nil || gain > best.gain {
					best = &splitInfo{feature: f, threshold: threshold, gain: gain, defaultLeft: true}
				}
			}
		}
	}

	if best == nil || best.gain <= 0 {
		return nil
	}
	return best
}

// splitScore is the regularized quality of a node: T(G)^2 / (H + lambda)
// where T soft-thresholds the gradient sum by the L1 penalty.
func (c *Classifier) splitScore(g, h float64) float64 {
	t := thresholdL1(g, c.Params.RegAlpha)
	return t * t / (h + c.Params.RegLambda)
}

func (c *Classifier) leafValue(g, h float64) float64 {
	return -thresholdL1(g, c.Params.RegAlpha) / (h + c.Params.RegLambda) * c.Params.LearningRate
}

func thresholdL1(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	default:
		return 0
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// sampleIndices draws a sorted fraction of row indices without replacement.
func sampleIndices(rng *rand.Rand, n int, fraction float64) []int {
	k := int(float64(n) * fraction)
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(n)[:k]
	sort.Ints(perm)
	return perm
}

func sampleFeatures(rng *rand.Rand, n int, fraction float64) []int {
	if fraction >= 1 {
		return allIndices(n)
	}
	k := int(math.Ceil(float64(n) * fraction))
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(n)[:k]
	sort.Ints(perm)
	return perm
}
