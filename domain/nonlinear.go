package domain

import (
	"github.com/thalesfsp/doe/expression"
)

// NonlinearConstraint is expr(x) = 0 (equality) or expr(x) <= 0 (inequality)
// for an arbitrary algebraic expression over numeric inputs.
type NonlinearConstraint struct {
	equality bool
	features []string
	program  *expression.Program
}

// NewNonlinearEquality builds expr = 0. When features is empty the
// identifiers referenced by the expression are used.
func NewNonlinearEquality(expr string, features []string) (*NonlinearConstraint, error) {
	return newNonlinear(true, expr, features)
}

// NewNonlinearInequality builds expr <= 0.
func NewNonlinearInequality(expr string, features []string) (*NonlinearConstraint, error) {
	return newNonlinear(false, expr, features)
}

// MustNonlinearInequality is NewNonlinearInequality that panics on error.
func MustNonlinearInequality(expr string, features ...string) *NonlinearConstraint {
	c, err := NewNonlinearInequality(expr, features)
	if err != nil {
		panic(err)
	}

	return c
}

// MustNonlinearEquality is NewNonlinearEquality that panics on error.
func MustNonlinearEquality(expr string, features ...string) *NonlinearConstraint {
	c, err := NewNonlinearEquality(expr, features)
	if err != nil {
		panic(err)
	}

	return c
}

func newNonlinear(equality bool, expr string, features []string) (*NonlinearConstraint, error) {
	t := NonlinearInequalityType
	if equality {
		t = NonlinearEqualityType
	}

	program, err := expression.Compile(expr)
	if err != nil {
		return nil, validationErrorf(describe(t, features), "%v", err)
	}

	ids := program.Identifiers()
	if len(features) == 0 {
		features = ids
	}

	declared := make(map[string]struct{}, len(features))
	for _, f := range features {
		declared[f] = struct{}{}
	}

	for _, id := range ids {
		if _, ok := declared[id]; !ok {
			return nil, validationErrorf(describe(t, features), "expression uses %q which is not a declared feature", id)
		}
	}

	if len(features) == 0 {
		return nil, validationErrorf(describe(t, features), "expression %q references no features", expr)
	}

	return &NonlinearConstraint{
		equality: equality,
		features: append([]string(nil), features...),
		program:  program,
	}, nil
}

// Type implements Constraint.
func (c *NonlinearConstraint) Type() ConstraintType {
	if c.equality {
		return NonlinearEqualityType
	}

	return NonlinearInequalityType
}

// Features implements Constraint.
func (c *NonlinearConstraint) Features() []string { return append([]string(nil), c.features...) }

// Expression returns the expression source.
func (c *NonlinearConstraint) Expression() string { return c.program.Source() }

func (c *NonlinearConstraint) String() string { return describe(c.Type(), c.features) }

// Residual implements PointConstraint: the value of the expression.
func (c *NonlinearConstraint) Residual(a Assignment) (float64, error) {
	env := make(map[string]float64, len(c.features))
	for _, k := range c.features {
		x := a.Float(k)
		if x != x {
			return x, validationErrorf(c.String(), "missing numeric value for %q", k)
		}

		env[k] = x
	}

	return c.program.Eval(env)
}

func (c *NonlinearConstraint) bind(inputs map[string]Feature) (Constraint, error) {
	if err := checkKeys(c, inputs); err != nil {
		return nil, err
	}

	for _, k := range c.features {
		if !IsNumeric(inputs[k]) {
			return nil, validationErrorf(c.String(), "input %q must be numeric", k)
		}
	}

	return c, nil
}
