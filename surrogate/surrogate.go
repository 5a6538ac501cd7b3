// Package surrogate defines the contract between strategies and the model
// backends that learn outputs from encoded inputs.
//
// A Fitter turns training data into a Model; a Model predicts a mean and a
// standard deviation per query point. Implementations live in the gp and
// forest subpackages.
package surrogate

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrNoData is returned when a Fitter is called without observations.
var ErrNoData = errors.New("surrogate: no training data")

// Model predicts an output from encoded inputs.
type Model interface {
	// Predict returns one mean and one standard deviation per row of X.
	Predict(X [][]float64) (mean, std []float64, err error)
}

// Fitter learns a Model from training rows X and targets y.
type Fitter interface {
	Fit(ctx context.Context, X [][]float64, y []float64) (Model, error)
}

// FitterFunc adapts a function to the Fitter interface.
type FitterFunc func(ctx context.Context, X [][]float64, y []float64) (Model, error)

// Fit implements Fitter.
func (f FitterFunc) Fit(ctx context.Context, X [][]float64, y []float64) (Model, error) {
	return f(ctx, X, y)
}

// Conditioner is implemented by models that can absorb a hypothetical
// observation without refitting hyper-parameters. Batch strategies use it
// to "believe" the prediction at an already chosen point.
type Conditioner interface {
	Model

	Condition(x []float64, y float64) (Model, error)
}

// CheckTrainingData validates shapes and finiteness of training data.
func CheckTrainingData(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return ErrNoData
	}

	if len(X) != len(y) {
		return fmt.Errorf("surrogate: %d rows but %d targets", len(X), len(y))
	}

	width := len(X[0])

	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("surrogate: row %d has %d columns, want %d", i, len(row), width)
		}

		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return fmt.Errorf("surrogate: target %d is not finite", i)
		}
	}

	return nil
}

// Standardize returns (y - mean) / scale together with mean and scale.
// A constant y gets scale 1.
func Standardize(y []float64) (z []float64, mean, scale float64) {
	for _, v := range y {
		mean += v
	}

	mean /= float64(len(y))

	for _, v := range y {
		scale += (v - mean) * (v - mean)
	}

	scale = math.Sqrt(scale / float64(len(y)))
	if scale < 1e-12 {
		scale = 1
	}

	z = make([]float64, len(y))
	for i, v := range y {
		z[i] = (v - mean) / scale
	}

	return z, mean, scale
}
