package domain

import "math"

// NChooseKConstraint requires the number of active features among Features
// to lie in [MinCount, MaxCount]. When NoneAlsoValid is set a candidate with
// no active feature is accepted as well.
//
// A continuous or discrete feature is active when |x| exceeds the activation
// threshold; a categorical feature is active when its value differs from the
// baseline (first) category.
type NChooseKConstraint struct {
	features      []string
	minCount      int
	maxCount      int
	noneAlsoValid bool

	inputs map[string]Feature
}

// NewNChooseK builds a cardinality constraint.
func NewNChooseK(features []string, minCount, maxCount int, noneAlsoValid bool) (*NChooseKConstraint, error) {
	c := &NChooseKConstraint{
		features:      append([]string(nil), features...),
		minCount:      minCount,
		maxCount:      maxCount,
		noneAlsoValid: noneAlsoValid,
	}

	if len(features) < 2 {
		return nil, validationErrorf(c.String(), "needs at least two features")
	}

	if minCount < 0 || maxCount < minCount || maxCount > len(features) {
		return nil, validationErrorf(c.String(),
			"counts must satisfy 0 <= min <= max <= %d, got min=%d max=%d", len(features), minCount, maxCount)
	}

	return c, nil
}

// MustNChooseK is NewNChooseK that panics on error.
func MustNChooseK(features []string, minCount, maxCount int, noneAlsoValid bool) *NChooseKConstraint {
	c, err := NewNChooseK(features, minCount, maxCount, noneAlsoValid)
	if err != nil {
		panic(err)
	}

	return c
}

// Type implements Constraint.
func (c *NChooseKConstraint) Type() ConstraintType { return NChooseKType }

// Features implements Constraint.
func (c *NChooseKConstraint) Features() []string { return append([]string(nil), c.features...) }

// MinCount returns the minimum number of active features.
func (c *NChooseKConstraint) MinCount() int { return c.minCount }

// MaxCount returns the maximum number of active features.
func (c *NChooseKConstraint) MaxCount() int { return c.maxCount }

// NoneAlsoValid reports whether zero active features is acceptable.
func (c *NChooseKConstraint) NoneAlsoValid() bool { return c.noneAlsoValid }

func (c *NChooseKConstraint) String() string { return describe(NChooseKType, c.features) }

// AllowedCounts returns every acceptable number of active features in
// ascending order.
func (c *NChooseKConstraint) AllowedCounts() []int {
	var counts []int
	if c.noneAlsoValid && c.minCount > 0 {
		counts = append(counts, 0)
	}

	for k := c.minCount; k <= c.maxCount; k++ {
		counts = append(counts, k)
	}

	return counts
}

// ActivationThreshold is the magnitude above which a numeric feature counts
// as active.
const ActivationThreshold = 1e-6

// IsActive reports whether feature key of a is active. The constraint must
// belong to a Domain.
func (c *NChooseKConstraint) IsActive(key string, a Assignment) bool {
	v, ok := a[key]
	if !ok {
		return false
	}

	if cats := Categories(c.inputs[key]); cats != nil {
		label, _ := v.Category()

		return label != cats[0]
	}

	x, _ := v.Float()

	return math.Abs(x) > ActivationThreshold
}

// Residual implements PointConstraint. It is the distance of the active
// count to the allowed range: 0 inside, positive outside.
func (c *NChooseKConstraint) Residual(a Assignment) (float64, error) {
	if c.inputs == nil {
		return math.NaN(), validationErrorf(c.String(), "constraint is not bound to a domain")
	}

	active := 0
	for _, k := range c.features {
		if c.IsActive(k, a) {
			active++
		}
	}

	switch {
	case active == 0 && c.noneAlsoValid:
		return 0, nil
	case active < c.minCount:
		return float64(c.minCount - active), nil
	case active > c.maxCount:
		return float64(active - c.maxCount), nil
	default:
		return 0, nil
	}
}

func (c *NChooseKConstraint) bind(inputs map[string]Feature) (Constraint, error) {
	if err := checkKeys(c, inputs); err != nil {
		return nil, err
	}

	bound := make(map[string]Feature, len(c.features))
	for _, k := range c.features {
		switch f := inputs[k].(type) {
		case *ContinuousInput:
			if lo, _ := f.Bounds(); lo != 0 {
				return nil, validationErrorf(c.String(), "continuous input %q must have lower bound 0, got %g", k, lo)
			}
		case *DiscreteInput:
			if !f.Contains(0) {
				return nil, validationErrorf(c.String(), "discrete input %q must allow the value 0", k)
			}
		case *CategoricalInput, *CategoricalDescriptorInput:
			if len(Categories(f)) < 2 {
				return nil, validationErrorf(c.String(), "categorical input %q needs a non-baseline category", k)
			}
		}

		bound[k] = inputs[k]
	}

	out := *c
	out.features = append([]string(nil), c.features...)
	out.inputs = bound

	return &out, nil
}
