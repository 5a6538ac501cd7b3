// Package gp implements a Gaussian process regression surrogate with a
// squared exponential (RBF) kernel.
package gp

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/thalesfsp/doe/surrogate"
)

//////
// Const, vars, types.
//////

// DefaultLengthscales is the grid searched when Fitter.Lengthscale is zero.
// Inputs are expected to be normalized to [0, 1].
var DefaultLengthscales = []float64{0.05, 0.1, 0.2, 0.35, 0.5, 1, 2}

// Fitter fits Gaussian process models.
//
// Fields:
// - Lengthscale: kernel width; zero selects it by maximum marginal likelihood
// - Noise: observation noise variance relative to the signal (default 1e-6)
//
// Usage example:
//
//	model, err := gp.Fitter{Lengthscale: 0.3}.Fit(ctx, X, y)
//	mean, std, err := model.Predict(queries)
type Fitter struct {
	Lengthscale float64
	Noise       float64
}

// Model is a fitted Gaussian process. It is immutable and safe for
// concurrent use.
//
// Fields:
// - x: training inputs (copied)
// - z: standardized training targets
// - mean, scale: standardization of the targets
// - lengthscale, noise: kernel hyper-parameters
// - chol: Cholesky factor of K + noise*I
// - alpha: (K + noise*I)^-1 z.
type Model struct {
	x           [][]float64
	z           []float64
	mean, scale float64
	lengthscale float64
	noise       float64
	chol        *mat.Cholesky
	alpha       *mat.VecDense
	logML       float64
}

//////
// Fitting.
//////

// Fit implements surrogate.Fitter.
//
// Returns:
// - *Model as surrogate.Model
// - surrogate.ErrNoData for empty training data
//
// Important notes:
// - Targets are standardized internally, predictions are on the original scale
// - With Lengthscale == 0 every value of DefaultLengthscales is tried and
//   the one with the highest log marginal likelihood wins.
func (f Fitter) Fit(ctx context.Context, X [][]float64, y []float64) (surrogate.Model, error) {
	m, err := f.fit(ctx, X, y)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (f Fitter) fit(ctx context.Context, X [][]float64, y []float64) (*Model, error) {
	if err := surrogate.CheckTrainingData(X, y); err != nil {
		return nil, err
	}

	noise := f.Noise
	if noise <= 0 {
		noise = 1e-6
	}

	grid := DefaultLengthscales
	if f.Lengthscale > 0 {
		grid = []float64{f.Lengthscale}
	}

	z, mean, scale := surrogate.Standardize(y)

	var best *Model

	for _, l := range grid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m, err := newModel(X, z, mean, scale, l, noise)
		if err != nil {
			continue
		}

		if best == nil || m.logML > best.logML {
			best = m
		}
	}

	if best == nil {
		return nil, fmt.Errorf("gp: kernel matrix is not positive definite for any lengthscale")
	}

	return best, nil
}

func newModel(X [][]float64, z []float64, mean, scale, lengthscale, noise float64) (*Model, error) {
	m := &Model{
		x:           copyRows(X),
		z:           append([]float64(nil), z...),
		mean:        mean,
		scale:       scale,
		lengthscale: lengthscale,
		noise:       noise,
	}

	n := len(X)

	// Retry with growing jitter when the kernel matrix is numerically
	// singular (duplicate rows, tiny lengthscales).
	for jitter := 0.0; jitter <= 1e-2; jitter = nextJitter(jitter) {
		K := mat.NewSymDense(n, nil)

		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				k := m.RBFKernel(m.x[i], m.x[j])
				if i == j {
					k += noise + jitter
				}

				K.SetSym(i, j, k)
			}
		}

		var chol mat.Cholesky
		if !chol.Factorize(K) {
			continue
		}

		alpha := mat.NewVecDense(n, nil)
		if err := chol.SolveVecTo(alpha, mat.NewVecDense(n, m.z)); err != nil {
			continue
		}

		m.chol = &chol
		m.alpha = alpha
		m.logML = -0.5*mat.Dot(mat.NewVecDense(n, m.z), alpha) - 0.5*chol.LogDet() - 0.5*float64(n)*math.Log(2*math.Pi)

		return m, nil
	}

	return nil, fmt.Errorf("gp: cholesky factorization failed")
}

func nextJitter(j float64) float64 {
	if j == 0 {
		return 1e-8
	}

	return j * 100
}

//////
// Methods.
//////

// RBFKernel implements the Radial Basis Function (also known as Gaussian)
// kernel:
//
//	k(x1, x2) = exp(-sum((x1 - x2)^2) / (2 * lengthscale^2))
//
// Important notes:
// - Panics if input vectors have different lengths
// - Returns 1.0 for identical points.
func (m *Model) RBFKernel(x1, x2 []float64) float64 {
	if len(x1) != len(x2) {
		panic("input vectors must have the same length")
	}

	var sum float64

	for i := range x1 {
		diff := x1[i] - x2[i]

		sum += diff * diff
	}

	return math.Exp(-sum / (2 * m.lengthscale * m.lengthscale))
}

// Predict implements surrogate.Model. It returns the posterior mean and the
// posterior standard deviation of the latent function.
func (m *Model) Predict(X [][]float64) (mean, std []float64, err error) {
	n := len(m.x)
	mean = make([]float64, len(X))
	std = make([]float64, len(X))

	k := mat.NewVecDense(n, nil)
	v := mat.NewVecDense(n, nil)

	for q, x := range X {
		if len(x) != len(m.x[0]) {
			return nil, nil, fmt.Errorf("gp: query %d has %d columns, want %d", q, len(x), len(m.x[0]))
		}

		for i := range m.x {
			k.SetVec(i, m.RBFKernel(x, m.x[i]))
		}

		if err := m.chol.SolveVecTo(v, k); err != nil {
			return nil, nil, fmt.Errorf("gp: predict: %w", err)
		}

		variance := 1 - mat.Dot(k, v)
		if variance < 1e-12 {
			variance = 1e-12
		}

		mean[q] = m.mean + m.scale*mat.Dot(k, m.alpha)
		std[q] = m.scale * math.Sqrt(variance)
	}

	return mean, std, nil
}

// Condition implements surrogate.Conditioner: it returns a new model that
// also observed y at x, keeping the hyper-parameters and the target
// standardization.
func (m *Model) Condition(x []float64, y float64) (surrogate.Model, error) {
	X := append(copyRows(m.x), append([]float64(nil), x...))
	z := append(append([]float64(nil), m.z...), (y-m.mean)/m.scale)

	next, err := newModel(X, z, m.mean, m.scale, m.lengthscale, m.noise)
	if err != nil {
		return nil, err
	}

	return next, nil
}

// Lengthscale returns the kernel width in use.
func (m *Model) Lengthscale() float64 { return m.lengthscale }

// LogMarginalLikelihood returns the log evidence of the standardized targets.
func (m *Model) LogMarginalLikelihood() float64 { return m.logML }

//////
// Helpers.
//////

func copyRows(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = append([]float64(nil), row...)
	}

	return out
}
