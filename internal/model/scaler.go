// Package model implements the trained scoring pipeline: standardization,
// the ensemble-tree classifier, evaluation metrics, and artifact persistence.
package model

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes feature vectors to zero mean and unit variance.
// Mean and Std are learned from training data only, so the test partition
// never leaks into preprocessing.
type Scaler struct {
	Mean []float64
	Std  []float64
}

// FitScaler learns per-column mean and standard deviation from x.
// Columns with zero variance get Std = 1 so Transform is a no-op shift.
func FitScaler(x [][]float64) (*Scaler, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("cannot fit scaler on empty data")
	}
	cols := len(x[0])
	col := make([]float64, len(x))

	s := &Scaler{
		Mean: make([]float64, cols),
		Std:  make([]float64, cols),
	}
	for j := 0; j < cols; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Std[j] = std
	}
	return s, nil
}

// Transform standardizes one vector. The input is not modified.
func (s *Scaler) Transform(vec []float64) ([]float64, error) {
	if len(vec) != len(s.Mean) {
		return nil, fmt.Errorf("scaler fitted on %d features, got %d", len(s.Mean), len(vec))
	}
	out := make([]float64, len(vec))
	for j, v := range vec {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}

// TransformAll standardizes a batch.
func (s *Scaler) TransformAll(x [][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i := range x {
		vec, err := s.Transform(x[i])
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
