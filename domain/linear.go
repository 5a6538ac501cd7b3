package domain

// LinearConstraint is Σ cᵢxᵢ = rhs (equality) or Σ cᵢxᵢ <= rhs (inequality)
// over continuous inputs.
type LinearConstraint struct {
	equality     bool
	features     []string
	coefficients []float64
	rhs          float64
}

// NewLinearEquality builds Σ coefficients[i]*features[i] = rhs.
func NewLinearEquality(features []string, coefficients []float64, rhs float64) (*LinearConstraint, error) {
	return newLinear(true, features, coefficients, rhs)
}

// NewLinearInequality builds Σ coefficients[i]*features[i] <= rhs.
func NewLinearInequality(features []string, coefficients []float64, rhs float64) (*LinearConstraint, error) {
	return newLinear(false, features, coefficients, rhs)
}

// MustLinearEquality is NewLinearEquality that panics on error.
func MustLinearEquality(features []string, coefficients []float64, rhs float64) *LinearConstraint {
	c, err := NewLinearEquality(features, coefficients, rhs)
	if err != nil {
		panic(err)
	}

	return c
}

// MustLinearInequality is NewLinearInequality that panics on error.
func MustLinearInequality(features []string, coefficients []float64, rhs float64) *LinearConstraint {
	c, err := NewLinearInequality(features, coefficients, rhs)
	if err != nil {
		panic(err)
	}

	return c
}

func newLinear(equality bool, features []string, coefficients []float64, rhs float64) (*LinearConstraint, error) {
	c := &LinearConstraint{
		equality:     equality,
		features:     append([]string(nil), features...),
		coefficients: append([]float64(nil), coefficients...),
		rhs:          rhs,
	}

	if len(features) == 0 {
		return nil, validationErrorf(c.String(), "must reference at least one feature")
	}

	if len(features) != len(coefficients) {
		return nil, validationErrorf(c.String(), "got %d features but %d coefficients", len(features), len(coefficients))
	}

	allZero := true
	for _, a := range coefficients {
		if !isFinite(a) {
			return nil, validationErrorf(c.String(), "coefficients must be finite")
		}

		if a != 0 {
			allZero = false
		}
	}

	if allZero {
		return nil, validationErrorf(c.String(), "coefficients must not all be zero")
	}

	if !isFinite(rhs) {
		return nil, validationErrorf(c.String(), "rhs must be finite")
	}

	return c, nil
}

// Type implements Constraint.
func (c *LinearConstraint) Type() ConstraintType {
	if c.equality {
		return LinearEqualityType
	}

	return LinearInequalityType
}

// Features implements Constraint.
func (c *LinearConstraint) Features() []string { return append([]string(nil), c.features...) }

// Coefficients returns a copy of the coefficient vector.
func (c *LinearConstraint) Coefficients() []float64 {
	return append([]float64(nil), c.coefficients...)
}

// RHS returns the right-hand side.
func (c *LinearConstraint) RHS() float64 { return c.rhs }

func (c *LinearConstraint) String() string { return describe(c.Type(), c.features) }

// Residual implements PointConstraint: Σ cᵢxᵢ - rhs.
func (c *LinearConstraint) Residual(a Assignment) (float64, error) {
	var sum float64

	for i, k := range c.features {
		x := a.Float(k)
		if x != x {
			return x, validationErrorf(c.String(), "missing numeric value for %q", k)
		}

		sum += c.coefficients[i] * x
	}

	return sum - c.rhs, nil
}

func (c *LinearConstraint) bind(inputs map[string]Feature) (Constraint, error) {
	if err := checkKeys(c, inputs); err != nil {
		return nil, err
	}

	for _, k := range c.features {
		if _, ok := inputs[k].(*ContinuousInput); !ok {
			return nil, validationErrorf(c.String(), "input %q must be continuous", k)
		}
	}

	return c, nil
}
