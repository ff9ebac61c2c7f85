package model

import (
	"fmt"
	"sort"

	randomforest "github.com/malaschitz/randomForest"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ForestConfig holds the ensemble hyperparameters.
type ForestConfig struct {
	Trees    int // number of trees
	MaxDepth int // bound on tree depth
	LeafSize int // minimum samples per leaf
}

// DefaultForestConfig mirrors the production model configuration.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:    200,
		MaxDepth: 12,
		LeafSize: 2,
	}
}

// Forest is the trained two-class ensemble. Vote probabilities are
// reweighted by balanced class weights n/(K*n_k) learned from the training
// labels, compensating the minority fraud class without resampling.
type Forest struct {
	Forest       *randomforest.Forest
	ClassWeights []float64
}

// FitForest trains the ensemble on already-standardized features.
func FitForest(x [][]float64, y []int, cfg ForestConfig) (*Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("invalid training set: %d rows, %d labels", len(x), len(y))
	}

	weights, err := balancedWeights(y)
	if err != nil {
		return nil, err
	}

	forest := &randomforest.Forest{}
	forest.Data = randomforest.ForestData{X: x, Class: y}
	forest.MaxDepth = cfg.MaxDepth
	forest.LeafSize = cfg.LeafSize
	forest.Train(cfg.Trees)

	return &Forest{
		Forest:       forest,
		ClassWeights: weights,
	}, nil
}

// Predict returns the two-class probability vector [P(legit), P(fraud)]
// for one standardized feature vector.
func (f *Forest) Predict(vec []float64) []float64 {
	votes := f.Forest.Vote(vec)

	probs := make([]float64, 2)
	copy(probs, votes)

	var total float64
	for k := range probs {
		if k < len(f.ClassWeights) {
			probs[k] *= f.ClassWeights[k]
		}
		total += probs[k]
	}
	if total == 0 {
		return []float64{1, 0}
	}
	for k := range probs {
		probs[k] /= total
	}
	return probs
}

// Importance returns the per-feature importance scores, normalized to sum
// to one and sorted descending.
func (f *Forest) Importance(names []string) []domain.FeatureWeight {
	raw := f.Forest.FeatureImportance

	var total float64
	for _, v := range raw {
		total += v
	}

	weights := make([]domain.FeatureWeight, 0, len(names))
	for i, name := range names {
		var w float64
		if i < len(raw) && total > 0 {
			w = raw[i] / total
		}
		weights = append(weights, domain.FeatureWeight{Name: name, Weight: w})
	}

	sort.SliceStable(weights, func(i, j int) bool {
		return weights[i].Weight > weights[j].Weight
	})
	return weights
}

// balancedWeights computes sklearn-style "balanced" class weights for the
// two-class label vector: w_k = n / (K * n_k).
func balancedWeights(y []int) ([]float64, error) {
	counts := make([]float64, 2)
	for _, label := range y {
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("invalid label %d: must be 0 or 1", label)
		}
		counts[label]++
	}
	if counts[0] == 0 || counts[1] == 0 {
		return nil, fmt.Errorf("degenerate training set: one class has no samples")
	}

	n := float64(len(y))
	return []float64{
		n / (2 * counts[0]),
		n / (2 * counts[1]),
	}, nil
}
