package model

import (
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/feature"
)

// TrainConfig holds the training pipeline parameters.
type TrainConfig struct {
	TestFraction float64 // held-out fraction, stratified on the label
	Seed         uint64  // split determinism
	Forest       ForestConfig
}

// DefaultTrainConfig mirrors the production training setup: 80/20 split,
// 200 trees bounded at depth 12.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		TestFraction: 0.2,
		Seed:         42,
		Forest:       DefaultForestConfig(),
	}
}

// TrainResult is the output of one training run.
type TrainResult struct {
	Artifacts  *Artifacts
	Evaluation *Evaluation
	TrainRows  int
	TestRows   int
}

// Train fits the full pipeline on a labeled dataset: stratified split,
// scaler fit on the training partition only, forest fit on standardized
// training data, evaluation on the held-out partition. Errors from
// degenerate inputs (single-class data, empty partitions) propagate;
// there is no retry or fallback.
func Train(records []domain.LabeledRecord, cfg TrainConfig) (*TrainResult, error) {
	names := feature.Names()

	trainSet, testSet, err := StratifiedSplit(records, cfg.TestFraction, cfg.Seed)
	if err != nil {
		return nil, err
	}
	if len(trainSet) == 0 || len(testSet) == 0 {
		return nil, fmt.Errorf("degenerate split: %d train rows, %d test rows", len(trainSet), len(testSet))
	}

	xTrain, yTrain, err := feature.Matrix(trainSet, names)
	if err != nil {
		return nil, err
	}
	xTest, yTest, err := feature.Matrix(testSet, names)
	if err != nil {
		return nil, err
	}

	scaler, err := FitScaler(xTrain)
	if err != nil {
		return nil, err
	}
	xTrainSc, err := scaler.TransformAll(xTrain)
	if err != nil {
		return nil, err
	}
	xTestSc, err := scaler.TransformAll(xTest)
	if err != nil {
		return nil, err
	}

	forest, err := FitForest(xTrainSc, yTrain, cfg.Forest)
	if err != nil {
		return nil, err
	}

	yPred := make([]int, len(xTestSc))
	pFraud := make([]float64, len(xTestSc))
	for i, vec := range xTestSc {
		probs := forest.Predict(vec)
		pFraud[i] = probs[1]
		if domain.IsFraud(probs[1]) {
			yPred[i] = 1
		}
	}

	eval, err := Evaluate(yTest, yPred, pFraud)
	if err != nil {
		return nil, err
	}
	eval.Importances = forest.Importance(names)

	artifacts := &Artifacts{
		Scaler:       scaler,
		Forest:       forest,
		FeatureNames: names,
		Manifest: &Manifest{
			SchemaVersion: 1,
			ModelVersion:  ModelVersion,
			FeatureCount:  len(names),
			Trees:         cfg.Forest.Trees,
			CreatedAt:     time.Now().UTC(),
		},
	}

	return &TrainResult{
		Artifacts:  artifacts,
		Evaluation: eval,
		TrainRows:  len(trainSet),
		TestRows:   len(testSet),
	}, nil
}
