package domain

import "math"

// InterpointEqualityConstraint forces a feature to take the same value for
// every candidate of a block of Multiplicity consecutive candidates in a
// batch. Multiplicity 0 means the whole batch is one block.
//
// A typical use is a reactor temperature that can only be set once per run
// of several parallel vessels.
type InterpointEqualityConstraint struct {
	feature      string
	multiplicity int
}

// NewInterpointEquality builds an interpoint equality constraint.
func NewInterpointEquality(feature string, multiplicity int) (*InterpointEqualityConstraint, error) {
	c := &InterpointEqualityConstraint{feature: feature, multiplicity: multiplicity}
	if feature == "" {
		return nil, validationErrorf(c.String(), "feature must not be empty")
	}

	if multiplicity < 0 || multiplicity == 1 {
		return nil, validationErrorf(c.String(), "multiplicity must be 0 or >= 2, got %d", multiplicity)
	}

	return c, nil
}

// MustInterpointEquality is NewInterpointEquality that panics on error.
func MustInterpointEquality(feature string, multiplicity int) *InterpointEqualityConstraint {
	c, err := NewInterpointEquality(feature, multiplicity)
	if err != nil {
		panic(err)
	}

	return c
}

// Type implements Constraint.
func (c *InterpointEqualityConstraint) Type() ConstraintType { return InterpointEqualityType }

// Features implements Constraint.
func (c *InterpointEqualityConstraint) Features() []string { return []string{c.feature} }

// Feature returns the constrained feature key.
func (c *InterpointEqualityConstraint) Feature() string { return c.feature }

// Multiplicity returns the block size (0: whole batch).
func (c *InterpointEqualityConstraint) Multiplicity() int { return c.multiplicity }

func (c *InterpointEqualityConstraint) String() string {
	return describe(InterpointEqualityType, []string{c.feature})
}

// Block returns the half-open index range [start, end) of the block that
// candidate i belongs to in a batch of size n.
func (c *InterpointEqualityConstraint) Block(i, n int) (start, end int) {
	if c.multiplicity == 0 || c.multiplicity >= n {
		return 0, n
	}

	start = (i / c.multiplicity) * c.multiplicity
	end = start + c.multiplicity

	if end > n {
		end = n
	}

	return start, end
}

// BatchResidual implements BatchConstraint: the deviation of candidate i
// from the mean of its block.
func (c *InterpointEqualityConstraint) BatchResidual(batch []Assignment, i int) (float64, error) {
	start, end := c.Block(i, len(batch))

	v, ok := batch[i][c.feature]
	if !ok {
		return math.NaN(), validationErrorf(c.String(), "missing value for %q", c.feature)
	}

	if v.IsCategorical() {
		for j := start; j < end; j++ {
			if !batch[j][c.feature].Equal(v) {
				return 1, nil
			}
		}

		return 0, nil
	}

	var sum float64
	for j := start; j < end; j++ {
		sum += batch[j].Float(c.feature)
	}

	return batch[i].Float(c.feature) - sum/float64(end-start), nil
}

func (c *InterpointEqualityConstraint) bind(inputs map[string]Feature) (Constraint, error) {
	if err := checkKeys(c, inputs); err != nil {
		return nil, err
	}

	return c, nil
}

// InterpointSumConstraint bounds the sum of a numeric feature over the whole
// batch: Σᵢ xᵢ <= rhs. Useful for a shared stock of reagent.
type InterpointSumConstraint struct {
	feature string
	rhs     float64
}

// NewInterpointSum builds an interpoint sum constraint.
func NewInterpointSum(feature string, rhs float64) (*InterpointSumConstraint, error) {
	c := &InterpointSumConstraint{feature: feature, rhs: rhs}
	if feature == "" {
		return nil, validationErrorf(c.String(), "feature must not be empty")
	}

	if !isFinite(rhs) {
		return nil, validationErrorf(c.String(), "rhs must be finite")
	}

	return c, nil
}

// MustInterpointSum is NewInterpointSum that panics on error.
func MustInterpointSum(feature string, rhs float64) *InterpointSumConstraint {
	c, err := NewInterpointSum(feature, rhs)
	if err != nil {
		panic(err)
	}

	return c
}

// Type implements Constraint.
func (c *InterpointSumConstraint) Type() ConstraintType { return InterpointSumType }

// Features implements Constraint.
func (c *InterpointSumConstraint) Features() []string { return []string{c.feature} }

// Feature returns the constrained feature key.
func (c *InterpointSumConstraint) Feature() string { return c.feature }

// RHS returns the bound on the batch sum.
func (c *InterpointSumConstraint) RHS() float64 { return c.rhs }

func (c *InterpointSumConstraint) String() string {
	return describe(InterpointSumType, []string{c.feature})
}

// BatchResidual implements BatchConstraint: Σ x - rhs over the batch. The
// value does not depend on i.
func (c *InterpointSumConstraint) BatchResidual(batch []Assignment, _ int) (float64, error) {
	var sum float64

	for _, a := range batch {
		x := a.Float(c.feature)
		if x != x {
			return x, validationErrorf(c.String(), "missing numeric value for %q", c.feature)
		}

		sum += x
	}

	return sum - c.rhs, nil
}

func (c *InterpointSumConstraint) bind(inputs map[string]Feature) (Constraint, error) {
	if err := checkKeys(c, inputs); err != nil {
		return nil, err
	}

	if _, ok := inputs[c.feature].(*ContinuousInput); !ok {
		return nil, validationErrorf(c.String(), "input %q must be continuous", c.feature)
	}

	return c, nil
}
