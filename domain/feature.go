package domain

import (
	"math"
	"sort"
)

// FeatureType is the schema tag of a feature variant.
type FeatureType string

// Feature types. The string values are the `type` tags of the schema.
const (
	ContinuousInputType            FeatureType = "ContinuousInput"
	DiscreteInputType              FeatureType = "DiscreteInput"
	CategoricalInputType           FeatureType = "CategoricalInput"
	CategoricalDescriptorInputType FeatureType = "CategoricalDescriptorInput"
	ContinuousOutputType           FeatureType = "ContinuousOutput"
)

// AllInputTypes lists every input feature type.
var AllInputTypes = []FeatureType{
	ContinuousInputType,
	DiscreteInputType,
	CategoricalInputType,
	CategoricalDescriptorInputType,
}

// Feature is one named, typed input dimension. The set of implementations is
// closed: *ContinuousInput, *DiscreteInput, *CategoricalInput and
// *CategoricalDescriptorInput.
type Feature interface {
	// Key returns the unique feature name.
	Key() string

	// Type returns the schema tag.
	Type() FeatureType

	// Validate checks type conformance and bound/category membership.
	Validate(v Value) error

	feature()
}

//////
// Continuous.
//////

// ContinuousInput is a real-valued input in [Lower, Upper].
type ContinuousInput struct {
	key   string
	lower float64
	upper float64
}

// NewContinuous builds a continuous input. Bounds must be finite with
// lower <= upper; lower == upper is a fixed feature.
func NewContinuous(key string, lower, upper float64) (*ContinuousInput, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	if !isFinite(lower) || !isFinite(upper) {
		return nil, validationErrorf(key, "bounds must be finite, got [%g, %g]", lower, upper)
	}

	if lower > upper {
		return nil, validationErrorf(key, "lower bound %g exceeds upper bound %g", lower, upper)
	}

	return &ContinuousInput{key: key, lower: lower, upper: upper}, nil
}

// MustContinuous is NewContinuous that panics on error. Meant for tests and
// static domain definitions.
func MustContinuous(key string, lower, upper float64) *ContinuousInput {
	f, err := NewContinuous(key, lower, upper)
	if err != nil {
		panic(err)
	}

	return f
}

func (f *ContinuousInput) feature() {}

// Key implements Feature.
func (f *ContinuousInput) Key() string { return f.key }

// Type implements Feature.
func (f *ContinuousInput) Type() FeatureType { return ContinuousInputType }

// Bounds returns the closed interval of allowed values.
func (f *ContinuousInput) Bounds() (lower, upper float64) { return f.lower, f.upper }

// IsFixed reports whether the interval is a single point.
func (f *ContinuousInput) IsFixed() bool { return f.lower == f.upper }

// Validate implements Feature.
func (f *ContinuousInput) Validate(v Value) error {
	x, ok := v.Float()
	if !ok {
		return validationErrorf(f.key, "expected a number, got category %q", v.cat)
	}

	if math.IsNaN(x) || x < f.lower || x > f.upper {
		return validationErrorf(f.key, "value %g outside bounds [%g, %g]", x, f.lower, f.upper)
	}

	return nil
}

//////
// Discrete.
//////

// DiscreteInput is a numeric input restricted to a finite set of values.
type DiscreteInput struct {
	key    string
	values []float64
}

// NewDiscrete builds a discrete input. Values are sorted; they must be finite,
// distinct and non-empty.
func NewDiscrete(key string, values []float64) (*DiscreteInput, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	if len(values) == 0 {
		return nil, validationErrorf(key, "discrete values must not be empty")
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	for i, v := range sorted {
		if !isFinite(v) {
			return nil, validationErrorf(key, "discrete value %g is not finite", v)
		}

		if i > 0 && sorted[i-1] == v {
			return nil, validationErrorf(key, "duplicate discrete value %g", v)
		}
	}

	return &DiscreteInput{key: key, values: sorted}, nil
}

// MustDiscrete is NewDiscrete that panics on error.
func MustDiscrete(key string, values ...float64) *DiscreteInput {
	f, err := NewDiscrete(key, values)
	if err != nil {
		panic(err)
	}

	return f
}

func (f *DiscreteInput) feature() {}

// Key implements Feature.
func (f *DiscreteInput) Key() string { return f.key }

// Type implements Feature.
func (f *DiscreteInput) Type() FeatureType { return DiscreteInputType }

// Values returns a copy of the allowed values in ascending order.
func (f *DiscreteInput) Values() []float64 { return append([]float64(nil), f.values...) }

// Bounds returns the smallest and largest allowed value.
func (f *DiscreteInput) Bounds() (lower, upper float64) {
	return f.values[0], f.values[len(f.values)-1]
}

// Contains reports whether x is one of the allowed values.
func (f *DiscreteInput) Contains(x float64) bool {
	i := sort.SearchFloat64s(f.values, x)

	return i < len(f.values) && f.values[i] == x
}

// Validate implements Feature.
func (f *DiscreteInput) Validate(v Value) error {
	x, ok := v.Float()
	if !ok {
		return validationErrorf(f.key, "expected a number, got category %q", v.cat)
	}

	if !f.Contains(x) {
		return validationErrorf(f.key, "value %g is not one of %v", x, f.values)
	}

	return nil
}

//////
// Categorical.
//////

// CategoricalInput takes one label out of a finite set. The first category
// is the baseline used by NChooseK constraints ("inactive").
type CategoricalInput struct {
	key        string
	categories []string
}

// NewCategorical builds a categorical input with non-empty, distinct labels.
func NewCategorical(key string, categories []string) (*CategoricalInput, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	if err := validateCategories(key, categories); err != nil {
		return nil, err
	}

	return &CategoricalInput{key: key, categories: append([]string(nil), categories...)}, nil
}

// MustCategorical is NewCategorical that panics on error.
func MustCategorical(key string, categories ...string) *CategoricalInput {
	f, err := NewCategorical(key, categories)
	if err != nil {
		panic(err)
	}

	return f
}

func (f *CategoricalInput) feature() {}

// Key implements Feature.
func (f *CategoricalInput) Key() string { return f.key }

// Type implements Feature.
func (f *CategoricalInput) Type() FeatureType { return CategoricalInputType }

// Categories returns a copy of the labels in declaration order.
func (f *CategoricalInput) Categories() []string { return append([]string(nil), f.categories...) }

// Validate implements Feature.
func (f *CategoricalInput) Validate(v Value) error {
	return validateLabel(f.key, f.categories, v)
}

// CategoricalDescriptorInput is a categorical input whose categories carry a
// numeric descriptor row each.
type CategoricalDescriptorInput struct {
	CategoricalInput
	descriptors []string
	values      [][]float64
}

// NewCategoricalDescriptor builds a categorical input with descriptors.
// values must have one row per category and one column per descriptor.
func NewCategoricalDescriptor(
	key string,
	categories []string,
	descriptors []string,
	values [][]float64,
) (*CategoricalDescriptorInput, error) {
	base, err := NewCategorical(key, categories)
	if err != nil {
		return nil, err
	}

	if len(descriptors) == 0 {
		return nil, validationErrorf(key, "descriptors must not be empty")
	}

	seen := make(map[string]struct{}, len(descriptors))
	for _, d := range descriptors {
		if d == "" {
			return nil, validationErrorf(key, "descriptor names must not be empty")
		}

		if _, dup := seen[d]; dup {
			return nil, validationErrorf(key, "duplicate descriptor %q", d)
		}

		seen[d] = struct{}{}
	}

	if len(values) != len(categories) {
		return nil, validationErrorf(key, "expected %d descriptor rows, got %d", len(categories), len(values))
	}

	rows := make([][]float64, len(values))
	for i, row := range values {
		if len(row) != len(descriptors) {
			return nil, validationErrorf(key, "descriptor row %d has %d values, want %d", i, len(row), len(descriptors))
		}

		for _, x := range row {
			if !isFinite(x) {
				return nil, validationErrorf(key, "descriptor row %d contains a non-finite value", i)
			}
		}

		rows[i] = append([]float64(nil), row...)
	}

	return &CategoricalDescriptorInput{
		CategoricalInput: *base,
		descriptors:      append([]string(nil), descriptors...),
		values:           rows,
	}, nil
}

// Type implements Feature.
func (f *CategoricalDescriptorInput) Type() FeatureType { return CategoricalDescriptorInputType }

// Descriptors returns the descriptor names.
func (f *CategoricalDescriptorInput) Descriptors() []string {
	return append([]string(nil), f.descriptors...)
}

// DescriptorRow returns the descriptor values of a category.
func (f *CategoricalDescriptorInput) DescriptorRow(category string) ([]float64, bool) {
	for i, c := range f.categories {
		if c == category {
			return append([]float64(nil), f.values[i]...), true
		}
	}

	return nil, false
}

// DescriptorValues returns a copy of the descriptor matrix.
func (f *CategoricalDescriptorInput) DescriptorValues() [][]float64 {
	out := make([][]float64, len(f.values))
	for i, row := range f.values {
		out[i] = append([]float64(nil), row...)
	}

	return out
}

//////
// Helpers.
//////

// Categories returns the labels of a categorical or categorical-descriptor
// feature, or nil for numeric features.
func Categories(f Feature) []string {
	switch t := f.(type) {
	case *CategoricalInput:
		return t.Categories()
	case *CategoricalDescriptorInput:
		return t.Categories()
	default:
		return nil
	}
}

// NumericBounds returns the bounds of a continuous or discrete feature. ok is
// false for categorical features.
func NumericBounds(f Feature) (lower, upper float64, ok bool) {
	switch t := f.(type) {
	case *ContinuousInput:
		lower, upper = t.Bounds()

		return lower, upper, true
	case *DiscreteInput:
		lower, upper = t.Bounds()

		return lower, upper, true
	default:
		return 0, 0, false
	}
}

// IsNumeric reports whether f holds numeric values.
func IsNumeric(f Feature) bool {
	_, _, ok := NumericBounds(f)

	return ok
}

func validateKey(key string) error {
	if key == "" {
		return &ValidationError{Reason: "feature key must not be empty"}
	}

	return nil
}

func validateCategories(key string, categories []string) error {
	if len(categories) == 0 {
		return validationErrorf(key, "categories must not be empty")
	}

	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		if _, dup := seen[c]; dup {
			return validationErrorf(key, "duplicate category %q", c)
		}

		seen[c] = struct{}{}
	}

	return nil
}

func validateLabel(key string, categories []string, v Value) error {
	c, ok := v.Category()
	if !ok {
		return validationErrorf(key, "expected a category, got number %g", v.num)
	}

	for _, allowed := range categories {
		if allowed == c {
			return nil
		}
	}

	return validationErrorf(key, "category %q is not one of %v", c, categories)
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
