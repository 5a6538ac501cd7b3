package strategy

import (
	"fmt"
	"slices"

	"github.com/thalesfsp/doe/domain"
)

// Capabilities is the static description of what a strategy can represent.
type Capabilities struct {
	// Inputs lists the supported input feature types.
	Inputs []domain.FeatureType

	// Constraints lists the supported constraint types.
	Constraints []domain.ConstraintType

	// RequiresData is true when Ask needs observations first.
	RequiresData bool
}

// SupportsInput reports whether t is supported.
func (c Capabilities) SupportsInput(t domain.FeatureType) bool {
	return slices.Contains(c.Inputs, t)
}

// SupportsConstraint reports whether t is supported.
func (c Capabilities) SupportsConstraint(t domain.ConstraintType) bool {
	return slices.Contains(c.Constraints, t)
}

// check returns a *ConfigurationError naming the first input or constraint
// of d that the strategy cannot represent.
func (c Capabilities) check(name string, d *domain.Domain) error {
	for _, f := range d.Inputs() {
		if !c.SupportsInput(f.Type()) {
			return &ConfigurationError{
				Strategy: name,
				Option:   f.Key(),
				Reason:   fmt.Sprintf("input type %s is not supported", f.Type()),
			}
		}
	}

	for _, k := range d.Constraints() {
		if !c.SupportsConstraint(k.Type()) {
			return &ConfigurationError{
				Strategy: name,
				Option:   k.String(),
				Reason:   fmt.Sprintf("constraint type %s is not supported", k.Type()),
			}
		}
	}

	return nil
}

func without(all []domain.ConstraintType, drop ...domain.ConstraintType) []domain.ConstraintType {
	out := make([]domain.ConstraintType, 0, len(all))

	for _, t := range all {
		if !slices.Contains(drop, t) {
			out = append(out, t)
		}
	}

	return out
}
