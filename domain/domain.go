package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Domain is the complete declaration of an experiment's input/output space
// and its feasibility rules. It is immutable after New and safe to share.
type Domain struct {
	inputs      []Feature
	outputs     []*Output
	constraints []Constraint
	tolerance   float64

	inputIndex  map[string]int
	outputIndex map[string]int
}

// Option configures a Domain.
type Option func(*Domain)

// WithTolerance sets the absolute tolerance used by IsFeasible.
func WithTolerance(tol float64) Option {
	return func(d *Domain) {
		d.tolerance = tol
	}
}

// New validates and builds a Domain.
//
// Invariants checked:
//   - input keys are unique, output keys are unique, and the two namespaces
//     are disjoint
//   - every constraint only references existing inputs of a suitable type
//   - linear equality constraints are fewer than the features they span
func New(inputs []Feature, outputs []*Output, constraints []Constraint, opts ...Option) (*Domain, error) {
	d := &Domain{
		inputs:      append([]Feature(nil), inputs...),
		outputs:     append([]*Output(nil), outputs...),
		tolerance:   DefaultTolerance,
		inputIndex:  make(map[string]int, len(inputs)),
		outputIndex: make(map[string]int, len(outputs)),
	}

	for _, opt := range opts {
		opt(d)
	}

	if !(d.tolerance > 0) || math.IsInf(d.tolerance, 0) {
		return nil, &ValidationError{Reason: fmt.Sprintf("tolerance must be positive and finite, got %g", d.tolerance)}
	}

	if len(d.inputs) == 0 {
		return nil, &ValidationError{Reason: "domain needs at least one input"}
	}

	byKey := make(map[string]Feature, len(d.inputs))

	for i, f := range d.inputs {
		if f == nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("input %d is nil", i)}
		}

		if _, dup := byKey[f.Key()]; dup {
			return nil, validationErrorf(f.Key(), "duplicate input key")
		}

		byKey[f.Key()] = f
		d.inputIndex[f.Key()] = i
	}

	for i, o := range d.outputs {
		if o == nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("output %d is nil", i)}
		}

		if _, dup := d.outputIndex[o.Key()]; dup {
			return nil, validationErrorf(o.Key(), "duplicate output key")
		}

		if _, clash := byKey[o.Key()]; clash {
			return nil, validationErrorf(o.Key(), "key is used by both an input and an output")
		}

		d.outputIndex[o.Key()] = i
	}

	equalitySpan := map[string]struct{}{}
	equalities := 0

	for i, c := range constraints {
		if c == nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("constraint %d is nil", i)}
		}

		bound, err := c.bind(byKey)
		if err != nil {
			return nil, err
		}

		if c.Type() == LinearEqualityType {
			equalities++

			for _, k := range c.Features() {
				equalitySpan[k] = struct{}{}
			}
		}

		d.constraints = append(d.constraints, bound)
	}

	if equalities > 0 && equalities >= len(equalitySpan) {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("%d linear equality constraints over %d features leave no freedom", equalities, len(equalitySpan)),
		}
	}

	return d, nil
}

// MustNew is New that panics on error.
func MustNew(inputs []Feature, outputs []*Output, constraints []Constraint, opts ...Option) *Domain {
	d, err := New(inputs, outputs, constraints, opts...)
	if err != nil {
		panic(err)
	}

	return d
}

//////
// Accessors.
//////

// Inputs returns the input features in declaration order.
func (d *Domain) Inputs() []Feature { return append([]Feature(nil), d.inputs...) }

// Outputs returns the outputs in declaration order.
func (d *Domain) Outputs() []*Output { return append([]*Output(nil), d.outputs...) }

// Constraints returns the constraints in declaration order.
func (d *Domain) Constraints() []Constraint { return append([]Constraint(nil), d.constraints...) }

// Tolerance returns the feasibility tolerance.
func (d *Domain) Tolerance() float64 { return d.tolerance }

// Input returns the input feature with the given key.
func (d *Domain) Input(key string) (Feature, bool) {
	i, ok := d.inputIndex[key]
	if !ok {
		return nil, false
	}

	return d.inputs[i], true
}

// Output returns the output with the given key.
func (d *Domain) Output(key string) (*Output, bool) {
	i, ok := d.outputIndex[key]
	if !ok {
		return nil, false
	}

	return d.outputs[i], true
}

// InputKeys returns the input keys in declaration order.
func (d *Domain) InputKeys() []string {
	keys := make([]string, len(d.inputs))
	for i, f := range d.inputs {
		keys[i] = f.Key()
	}

	return keys
}

// OutputKeys returns the output keys in declaration order.
func (d *Domain) OutputKeys() []string {
	keys := make([]string, len(d.outputs))
	for i, o := range d.outputs {
		keys[i] = o.Key()
	}

	return keys
}

// ObjectiveOutputs returns the outputs that carry an objective.
func (d *Domain) ObjectiveOutputs() []*Output {
	var out []*Output

	for _, o := range d.outputs {
		if o.objective != nil {
			out = append(out, o)
		}
	}

	return out
}

// HasConstraint reports whether the domain holds a constraint of type t.
func (d *Domain) HasConstraint(t ConstraintType) bool {
	for _, c := range d.constraints {
		if c.Type() == t {
			return true
		}
	}

	return false
}

//////
// Validation & feasibility.
//////

// ValidateInputs checks that a holds exactly the domain inputs with values
// conforming to their features.
func (d *Domain) ValidateInputs(a Assignment) error {
	for _, f := range d.inputs {
		v, ok := a[f.Key()]
		if !ok {
			return validationErrorf(f.Key(), "missing input value")
		}

		if err := f.Validate(v); err != nil {
			return err
		}
	}

	for _, k := range a.Keys() {
		if _, ok := d.inputIndex[k]; !ok {
			return validationErrorf(k, "unknown input key")
		}
	}

	return nil
}

// ValidateExperiment checks an observed record: every input must be present
// and conform to its feature, outputs must be declared and valid, missing
// outputs are allowed.
func (d *Domain) ValidateExperiment(e Experiment) error {
	if err := d.ValidateInputs(e.Inputs); err != nil {
		return err
	}

	keys := make([]string, 0, len(e.Outputs))
	for k := range e.Outputs {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		o, ok := d.Output(k)
		if !ok {
			return validationErrorf(k, "unknown output key")
		}

		if err := o.Validate(e.Outputs[k]); err != nil {
			return err
		}
	}

	return nil
}

// IsFeasible reports whether a single candidate satisfies every input bound
// and point constraint within the domain tolerance. Interpoint constraints
// are properties of a batch, see IsBatchFeasible.
func (d *Domain) IsFeasible(a Assignment) bool {
	return len(d.PointViolations(a, d.tolerance)) == 0
}

// IsBatchFeasible reports whether every candidate of batch is feasible,
// interpoint constraints included.
func (d *Domain) IsBatchFeasible(batch []Assignment) bool {
	return len(d.Violations(batch, d.tolerance)) == 0
}

// CheckBatch is IsBatchFeasible returning a ValidationError listing every
// violation.
func (d *Domain) CheckBatch(batch []Assignment, tol float64) error {
	vs := d.Violations(batch, tol)
	if len(vs) == 0 {
		return nil
	}

	return &ValidationError{Key: vs[0].Key, Reason: "infeasible: " + joinViolations(vs)}
}

// PointViolations evaluates the bounds and point constraints for a single
// candidate.
func (d *Domain) PointViolations(a Assignment, tol float64) []Violation {
	return d.violations([]Assignment{a}, tol, false)
}

// Violations evaluates every bound and constraint against every candidate
// of batch and returns the failures. Constraints are combined by logical
// AND, so an empty result means feasible.
func (d *Domain) Violations(batch []Assignment, tol float64) []Violation {
	return d.violations(batch, tol, true)
}

func (d *Domain) violations(batch []Assignment, tol float64, interpoint bool) []Violation {
	var out []Violation

	for i, a := range batch {
		if err := d.ValidateInputs(a); err != nil {
			key := ""

			var verr *ValidationError
			if errors.As(err, &verr) {
				key = verr.Key
			}

			out = append(out, Violation{Index: i, Key: key})

			continue
		}

		for _, c := range d.constraints {
			if !interpoint && c.Type().IsInterpoint() {
				continue
			}

			r, err := Evaluate(c, batch, i)
			if err != nil || !Satisfied(c.Type(), r, tol) {
				out = append(out, Violation{Index: i, Key: c.String(), Residual: r})
			}
		}
	}

	return out
}

// Score scalarizes the objective outputs of an observation into one number
// where larger is better. ok is false when an objective output is missing.
func (d *Domain) Score(outputs map[string]float64) (score float64, ok bool) {
	objectives := d.ObjectiveOutputs()
	if len(objectives) == 0 {
		return 0, false
	}

	for _, o := range objectives {
		y, present := outputs[o.Key()]
		if !present || math.IsNaN(y) {
			return 0, false
		}

		score += o.objective.EffectiveWeight() * o.objective.Transform(y)
	}

	return score, true
}
