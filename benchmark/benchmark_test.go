package benchmark

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/doe/domain"
)

func at(x1, x2 float64) domain.Assignment {
	return domain.Assignment{"x1": domain.Number(x1), "x2": domain.Number(x2)}
}

func TestKnownOptima(t *testing.T) {
	tests := []struct {
		name   string
		points []domain.Assignment
	}{
		{"himmelblau", []domain.Assignment{at(3, 2), at(-2.805118, 3.131312), at(-3.779310, -3.283186), at(3.584428, -1.848126)}},
		{"branin", []domain.Assignment{at(-math.Pi, 12.275), at(math.Pi, 2.275), at(9.42478, 2.475)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Get(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.name, f.Name())

			for _, p := range tt.points {
				require.True(t, f.Domain().IsFeasible(p))

				out, err := f.Evaluate(context.Background(), p)
				require.NoError(t, err)
				assert.InDelta(t, f.Optimum(), out[OutputKey], 1e-4)
			}

			out, err := f.Evaluate(context.Background(), at(0, 0))
			require.NoError(t, err)
			assert.Greater(t, out[OutputKey], f.Optimum())
		})
	}
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"branin", "himmelblau"}, Names())

	_, err := Get("rosenbrock")
	assert.Error(t, err)
}

func TestEvaluateErrors(t *testing.T) {
	f := Himmelblau()

	_, err := f.Evaluate(context.Background(), domain.Assignment{"x1": domain.Number(1)})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.Evaluate(ctx, at(1, 1))
	assert.ErrorIs(t, err, context.Canceled)
}
