package domain

import (
	"fmt"
	"strings"
)

// ConstraintType is the schema tag of a constraint variant.
type ConstraintType string

// Constraint types. The string values are the `type` tags of the schema.
const (
	LinearEqualityType      ConstraintType = "LinearEqualityConstraint"
	LinearInequalityType    ConstraintType = "LinearInequalityConstraint"
	NonlinearEqualityType   ConstraintType = "NonlinearEqualityConstraint"
	NonlinearInequalityType ConstraintType = "NonlinearInequalityConstraint"
	NChooseKType            ConstraintType = "NChooseKConstraint"
	InterpointEqualityType  ConstraintType = "InterpointEqualityConstraint"
	InterpointSumType       ConstraintType = "InterpointSumConstraint"
)

// AllConstraintTypes lists every constraint type.
var AllConstraintTypes = []ConstraintType{
	LinearEqualityType,
	LinearInequalityType,
	NonlinearEqualityType,
	NonlinearInequalityType,
	NChooseKType,
	InterpointEqualityType,
	InterpointSumType,
}

// IsEquality reports whether residuals of this type must be ~0 rather than
// <= 0.
func (t ConstraintType) IsEquality() bool {
	switch t {
	case LinearEqualityType, NonlinearEqualityType, InterpointEqualityType:
		return true
	default:
		return false
	}
}

// IsInterpoint reports whether the type relates several points of a batch.
func (t ConstraintType) IsInterpoint() bool {
	return t == InterpointEqualityType || t == InterpointSumType
}

// Constraint is a feasibility rule over a subset of input features.
//
// Every constraint implements exactly one of PointConstraint or
// BatchConstraint. Evaluation sites switch over the concrete types listed in
// AllConstraintTypes.
type Constraint interface {
	// Type returns the schema tag.
	Type() ConstraintType

	// Features returns the referenced input keys in declaration order.
	Features() []string

	// String is a short description used in errors.
	String() string

	// bind checks the constraint against the inputs of its owning domain and
	// returns the constraint instance the domain keeps.
	bind(inputs map[string]Feature) (Constraint, error)
}

// PointConstraint is evaluated on one candidate at a time.
type PointConstraint interface {
	Constraint

	// Residual returns the signed residual for a single assignment.
	Residual(a Assignment) (float64, error)
}

// BatchConstraint relates the candidates of one batch.
type BatchConstraint interface {
	Constraint

	// BatchResidual returns the signed residual of candidate i within batch.
	BatchResidual(batch []Assignment, i int) (float64, error)
}

// Satisfied reports whether residual r of a constraint of type t is within
// tolerance.
func Satisfied(t ConstraintType, r, tol float64) bool {
	if r != r { // NaN
		return false
	}

	if t.IsEquality() {
		return r <= tol && r >= -tol
	}

	return r <= tol
}

// Evaluate computes the residual of c for candidate i of batch, whatever
// the constraint variant.
func Evaluate(c Constraint, batch []Assignment, i int) (float64, error) {
	switch t := c.(type) {
	case PointConstraint:
		return t.Residual(batch[i])
	case BatchConstraint:
		return t.BatchResidual(batch, i)
	default:
		return 0, fmt.Errorf("constraint %s implements neither point nor batch evaluation", c)
	}
}

func checkKeys(c Constraint, inputs map[string]Feature) error {
	seen := make(map[string]struct{}, len(c.Features()))
	for _, k := range c.Features() {
		if _, ok := inputs[k]; !ok {
			return validationErrorf(c.String(), "references unknown input %q", k)
		}

		if _, dup := seen[k]; dup {
			return validationErrorf(c.String(), "references input %q twice", k)
		}

		seen[k] = struct{}{}
	}

	return nil
}

func describe(t ConstraintType, keys []string) string {
	return fmt.Sprintf("%s(%s)", t, strings.Join(keys, ","))
}
