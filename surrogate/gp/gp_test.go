package gp

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/doe/surrogate"
)

func sine(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)

	for i := range X {
		x := float64(i) / float64(n-1)
		X[i] = []float64{x}
		y[i] = math.Sin(2 * math.Pi * x)
	}

	return X, y
}

func TestRBFKernel(t *testing.T) {
	m := &Model{lengthscale: 1}

	assert.Equal(t, 1.0, m.RBFKernel([]float64{1, 2}, []float64{1, 2}))
	assert.InDelta(t, math.Exp(-0.5), m.RBFKernel([]float64{0}, []float64{1}), 1e-12)
	assert.Panics(t, func() { m.RBFKernel([]float64{0}, []float64{1, 2}) })
}

func TestFitInterpolates(t *testing.T) {
	X, y := sine(12)

	model, err := Fitter{}.Fit(context.Background(), X, y)
	require.NoError(t, err)

	mean, std, err := model.Predict(X)
	require.NoError(t, err)

	for i := range X {
		assert.InDelta(t, y[i], mean[i], 1e-2)
		assert.Less(t, std[i], 0.05)
	}

	// Uncertainty grows away from the data.
	_, far, err := model.Predict([][]float64{{3}})
	require.NoError(t, err)
	assert.Greater(t, far[0], std[0])
}

func TestFitPicksLengthscale(t *testing.T) {
	X, y := sine(15)

	model, err := Fitter{}.fit(context.Background(), X, y)
	require.NoError(t, err)
	assert.Contains(t, DefaultLengthscales, model.Lengthscale())

	fixed, err := Fitter{Lengthscale: 0.42}.fit(context.Background(), X, y)
	require.NoError(t, err)
	assert.Equal(t, 0.42, fixed.Lengthscale())

	for _, l := range DefaultLengthscales {
		other, err := Fitter{Lengthscale: l}.fit(context.Background(), X, y)
		require.NoError(t, err)
		assert.LessOrEqual(t, other.LogMarginalLikelihood(), model.LogMarginalLikelihood())
	}
}

func TestCondition(t *testing.T) {
	X, y := sine(6)

	model, err := Fitter{Lengthscale: 0.2}.Fit(context.Background(), X, y)
	require.NoError(t, err)

	cond, ok := model.(surrogate.Conditioner)
	require.True(t, ok)

	query := [][]float64{{0.55}}
	_, before, err := model.Predict(query)
	require.NoError(t, err)

	next, err := cond.Condition([]float64{0.55}, 0.3)
	require.NoError(t, err)

	mean, after, err := next.Predict(query)
	require.NoError(t, err)

	assert.Less(t, after[0], before[0])
	assert.InDelta(t, 0.3, mean[0], 1e-2)
}

func TestFitErrors(t *testing.T) {
	_, err := Fitter{}.Fit(context.Background(), nil, nil)
	assert.ErrorIs(t, err, surrogate.ErrNoData)

	_, err = Fitter{}.Fit(context.Background(), [][]float64{{1}, {2, 3}}, []float64{1, 2})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Fitter{}.Fit(ctx, [][]float64{{1}}, []float64{1})
	assert.ErrorIs(t, err, context.Canceled)

	model, err := Fitter{Lengthscale: 1}.Fit(context.Background(), [][]float64{{1}}, []float64{1})
	require.NoError(t, err)

	_, _, err = model.Predict([][]float64{{1, 2}})
	assert.Error(t, err)
}
