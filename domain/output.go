package domain

import (
	"math"
)

// ObjectiveKind selects the direction of an output objective.
type ObjectiveKind string

// Objective kinds.
const (
	MinimizeObjective ObjectiveKind = "minimize"
	MaximizeObjective ObjectiveKind = "maximize"
	TargetObjective   ObjectiveKind = "target"
)

// Objective attaches an optimization direction to an output.
type Objective struct {
	// Kind is minimize, maximize or target.
	Kind ObjectiveKind `json:"kind"`

	// Target is the desired value for target objectives.
	Target float64 `json:"target,omitempty"`

	// Weight scales the objective when several outputs are scalarized. Nil
	// means 1; an explicit 0 keeps the output out of the score.
	Weight *float64 `json:"weight,omitempty"`
}

// Minimize returns a unit-weight minimize objective.
func Minimize() *Objective { return &Objective{Kind: MinimizeObjective} }

// Maximize returns a unit-weight maximize objective.
func Maximize() *Objective { return &Objective{Kind: MaximizeObjective} }

// Target returns a unit-weight objective pulling the output towards t.
func Target(t float64) *Objective { return &Objective{Kind: TargetObjective, Target: t} }

// WithWeight returns a copy of o with the given weight.
func (o *Objective) WithWeight(w float64) *Objective {
	c := o.clone()
	c.Weight = &w

	return c
}

// EffectiveWeight returns Weight, defaulting to 1.
func (o *Objective) EffectiveWeight() float64 {
	if o.Weight == nil {
		return 1
	}

	return *o.Weight
}

func (o *Objective) clone() *Objective {
	c := *o
	if o.Weight != nil {
		w := *o.Weight
		c.Weight = &w
	}

	return &c
}

// Transform maps an observed value into a maximize convention: larger is
// always better.
func (o *Objective) Transform(y float64) float64 {
	switch o.Kind {
	case MinimizeObjective:
		return -y
	case TargetObjective:
		return -math.Abs(y - o.Target)
	default:
		return y
	}
}

func (o *Objective) validate(key string) error {
	switch o.Kind {
	case MinimizeObjective, MaximizeObjective:
	case TargetObjective:
		if !isFinite(o.Target) {
			return validationErrorf(key, "target must be finite")
		}
	default:
		return validationErrorf(key, "unknown objective kind %q", o.Kind)
	}

	if w := o.EffectiveWeight(); w < 0 || !isFinite(w) {
		return validationErrorf(key, "objective weight must be a non-negative finite number, got %g", w)
	}

	return nil
}

// Output is a measured, continuous output dimension.
type Output struct {
	key       string
	objective *Objective
	lower     float64
	upper     float64
	bounded   bool
}

// OutputOption configures an Output.
type OutputOption func(*Output)

// WithOutputBounds declares the range observed values must fall into.
func WithOutputBounds(lower, upper float64) OutputOption {
	return func(o *Output) {
		o.lower, o.upper, o.bounded = lower, upper, true
	}
}

// NewContinuousOutput builds an output. A nil objective declares a measured
// but not optimized quantity.
func NewContinuousOutput(key string, objective *Objective, opts ...OutputOption) (*Output, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	o := &Output{key: key}
	for _, opt := range opts {
		opt(o)
	}

	if objective != nil {
		if err := objective.validate(key); err != nil {
			return nil, err
		}

		o.objective = objective.clone()
	}

	if o.bounded && (!isFinite(o.lower) || !isFinite(o.upper) || o.lower > o.upper) {
		return nil, validationErrorf(key, "invalid output bounds [%g, %g]", o.lower, o.upper)
	}

	return o, nil
}

// MustContinuousOutput is NewContinuousOutput that panics on error.
func MustContinuousOutput(key string, objective *Objective, opts ...OutputOption) *Output {
	o, err := NewContinuousOutput(key, objective, opts...)
	if err != nil {
		panic(err)
	}

	return o
}

// Key returns the output name.
func (o *Output) Key() string { return o.key }

// Type returns ContinuousOutputType.
func (o *Output) Type() FeatureType { return ContinuousOutputType }

// Objective returns a copy of the objective, or nil.
func (o *Output) Objective() *Objective {
	if o.objective == nil {
		return nil
	}

	return o.objective.clone()
}

// Bounds returns the declared output range. ok is false when unbounded.
func (o *Output) Bounds() (lower, upper float64, ok bool) {
	return o.lower, o.upper, o.bounded
}

// Validate checks an observed output value.
func (o *Output) Validate(y float64) error {
	if !isFinite(y) {
		return validationErrorf(o.key, "observed value must be finite, got %g", y)
	}

	if o.bounded && (y < o.lower || y > o.upper) {
		return validationErrorf(o.key, "observed value %g outside bounds [%g, %g]", y, o.lower, o.upper)
	}

	return nil
}
