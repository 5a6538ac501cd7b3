package domain

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mixtureDomain(t *testing.T, constraints ...Constraint) *Domain {
	t.Helper()

	d, err := New(
		[]Feature{
			MustContinuous("x1", 0, 1),
			MustContinuous("x2", 0, 1),
			MustContinuous("x3", 0, 1),
			MustContinuous("x4", 0, 1),
		},
		[]*Output{MustContinuousOutput("y", Minimize())},
		constraints,
	)
	require.NoError(t, err)

	return d
}

func point(xs ...float64) Assignment {
	a := Assignment{}
	for i, x := range xs {
		a["x"+string(rune('1'+i))] = Number(x)
	}

	return a
}

func TestLinearResidual(t *testing.T) {
	eq := MustLinearEquality([]string{"x1", "x2", "x3"}, []float64{1, 1, 1}, 1)
	ineq := MustLinearInequality([]string{"x1", "x2"}, []float64{1, 2}, 1)

	r, err := eq.Residual(point(0.2, 0.3, 0.5, 0))
	require.NoError(t, err)
	assert.InDelta(t, 0, r, 1e-12)
	assert.True(t, Satisfied(eq.Type(), r, DefaultTolerance))

	r, err = ineq.Residual(point(0.5, 0.5, 0, 0))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r, 1e-12)
	assert.False(t, Satisfied(ineq.Type(), r, DefaultTolerance))

	_, err = eq.Residual(Assignment{"x1": Number(1)})
	assert.Error(t, err)
}

func TestLinearRejectsMalformed(t *testing.T) {
	_, err := NewLinearEquality([]string{"x1", "x2"}, []float64{1}, 1)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewLinearInequality([]string{"x1"}, []float64{0}, 1)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewLinearInequality(nil, nil, 1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNonlinearResidual(t *testing.T) {
	c := MustNonlinearInequality("x1**2 + x2**2 - 1")
	assert.Equal(t, []string{"x1", "x2"}, c.Features())

	r, err := c.Residual(point(0.6, 0.6, 0, 0))
	require.NoError(t, err)
	assert.InDelta(t, -0.28, r, 1e-12)

	_, err = NewNonlinearEquality("x1 + zz", []string{"x1"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewNonlinearEquality("x1 + (", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNonlinearResidualIsIndependentPerConstraint(t *testing.T) {
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			c := MustNonlinearEquality(fmt.Sprintf("x1 * %d - x2", i))

			for j := 0; j < 10; j++ {
				r, err := c.Residual(point(float64(j), 1, 0, 0))
				assert.NoError(t, err)
				assert.Equal(t, float64(i*j-1), r)
			}
		}(i)
	}

	wg.Wait()

	c := MustNonlinearEquality("x1 - x2")
	_, err := c.Residual(Assignment{"x1": Number(1)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNChooseKExactlyTwoOfFour(t *testing.T) {
	d := mixtureDomain(t, MustNChooseK([]string{"x1", "x2", "x3", "x4"}, 2, 2, false))

	tests := []struct {
		name     string
		point    Assignment
		feasible bool
	}{
		{"two active", point(0.5, 0, 0.3, 0), true},
		{"one active", point(0.5, 0, 0, 0), false},
		{"three active", point(0.5, 0.1, 0.3, 0), false},
		{"none active", point(0, 0, 0, 0), false},
		{"below threshold counts as inactive", point(0.5, 1e-9, 0.3, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.feasible, d.IsFeasible(tt.point))
		})
	}
}

func TestNChooseKNoneAlsoValid(t *testing.T) {
	d := mixtureDomain(t, MustNChooseK([]string{"x1", "x2", "x3"}, 2, 3, true))

	assert.True(t, d.IsFeasible(point(0, 0, 0, 0.4)))
	assert.False(t, d.IsFeasible(point(0.1, 0, 0, 0)))

	c := d.Constraints()[0].(*NChooseKConstraint)
	assert.Equal(t, []int{0, 2, 3}, c.AllowedCounts())
}

func TestNChooseKRequiresBinding(t *testing.T) {
	c := MustNChooseK([]string{"x1", "x2"}, 1, 1, false)

	_, err := c.Residual(point(1, 0))
	assert.Error(t, err)
}

func TestNChooseKRejectsNonZeroLowerBound(t *testing.T) {
	_, err := New(
		[]Feature{MustContinuous("a", 0.1, 1), MustContinuous("b", 0, 1)},
		nil,
		[]Constraint{MustNChooseK([]string{"a", "b"}, 1, 1, false)},
	)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInterpointEquality(t *testing.T) {
	c := MustInterpointEquality("x1", 2)

	batch := []Assignment{point(0.3), point(0.3), point(0.7), point(0.7), point(0.1)}

	for i := range batch {
		r, err := c.BatchResidual(batch, i)
		require.NoError(t, err)
		assert.InDelta(t, 0, r, 1e-12, "candidate %d", i)
	}

	batch[1] = point(0.5)

	r, err := c.BatchResidual(batch, 0)
	require.NoError(t, err)
	assert.InDelta(t, -0.1, r, 1e-12)

	start, end := c.Block(4, 5)
	assert.Equal(t, 4, start)
	assert.Equal(t, 5, end)

	_, err = NewInterpointEquality("x1", 1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInterpointSum(t *testing.T) {
	d := mixtureDomain(t, MustInterpointSum("x1", 1))

	assert.True(t, d.IsBatchFeasible([]Assignment{point(0.4, 0, 0, 0), point(0.5, 0, 0, 0)}))
	assert.False(t, d.IsBatchFeasible([]Assignment{point(0.6, 0, 0, 0), point(0.5, 0, 0, 0)}))

	vs := d.Violations([]Assignment{point(0.6, 0, 0, 0), point(0.5, 0, 0, 0)}, DefaultTolerance)
	require.Len(t, vs, 2)
	assert.InDelta(t, 0.1, vs[0].Residual, 1e-12)
}
