package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// The domain schema is a JSON document:
//
//	{
//	  "inputs":      [{"type": "ContinuousInput", "key": "x1", "bounds": [0, 1]}, ...],
//	  "outputs":     [{"type": "ContinuousOutput", "key": "y", "objective": {"kind": "minimize"}}],
//	  "constraints": [{"type": "LinearEqualityConstraint", "features": ["x1", "x2"], "coefficients": [1, 1], "rhs": 1}],
//	  "tolerance":   1e-6
//	}
//
// Every feature and constraint is tagged by its type. Unknown fields and
// unknown types are rejected. An objective may carry a "weight"; when it is
// absent the weight is 1, and 0 keeps the output out of the score.

type featureDoc struct {
	Type             FeatureType `json:"type"`
	Key              string      `json:"key"`
	Bounds           []float64   `json:"bounds,omitempty"`
	Values           []float64   `json:"values,omitempty"`
	Categories       []string    `json:"categories,omitempty"`
	Descriptors      []string    `json:"descriptors,omitempty"`
	DescriptorValues [][]float64 `json:"descriptor_values,omitempty"`
	Objective        *Objective  `json:"objective,omitempty"`
}

type constraintDoc struct {
	Type          ConstraintType `json:"type"`
	Features      []string       `json:"features,omitempty"`
	Coefficients  []float64      `json:"coefficients,omitempty"`
	RHS           *float64       `json:"rhs,omitempty"`
	Expression    string         `json:"expression,omitempty"`
	MinCount      *int           `json:"min_count,omitempty"`
	MaxCount      *int           `json:"max_count,omitempty"`
	NoneAlsoValid bool           `json:"none_also_valid,omitempty"`
	Feature       string         `json:"feature,omitempty"`
	Multiplicity  int            `json:"multiplicity,omitempty"`
}

type domainDoc struct {
	Inputs      []featureDoc    `json:"inputs"`
	Outputs     []featureDoc    `json:"outputs"`
	Constraints []constraintDoc `json:"constraints"`
	Tolerance   float64         `json:"tolerance,omitempty"`
}

//////
// Features.
//////

func encodeFeature(f Feature) featureDoc {
	doc := featureDoc{Type: f.Type(), Key: f.Key()}

	switch t := f.(type) {
	case *ContinuousInput:
		lo, hi := t.Bounds()
		doc.Bounds = []float64{lo, hi}
	case *DiscreteInput:
		doc.Values = t.Values()
	case *CategoricalInput:
		doc.Categories = t.Categories()
	case *CategoricalDescriptorInput:
		doc.Categories = t.Categories()
		doc.Descriptors = t.Descriptors()
		doc.DescriptorValues = t.DescriptorValues()
	}

	return doc
}

func decodeFeature(doc featureDoc) (Feature, error) {
	switch doc.Type {
	case ContinuousInputType:
		if len(doc.Bounds) != 2 {
			return nil, validationErrorf(doc.Key, "bounds must have two entries, got %d", len(doc.Bounds))
		}

		return NewContinuous(doc.Key, doc.Bounds[0], doc.Bounds[1])
	case DiscreteInputType:
		return NewDiscrete(doc.Key, doc.Values)
	case CategoricalInputType:
		return NewCategorical(doc.Key, doc.Categories)
	case CategoricalDescriptorInputType:
		return NewCategoricalDescriptor(doc.Key, doc.Categories, doc.Descriptors, doc.DescriptorValues)
	default:
		return nil, validationErrorf(doc.Key, "unknown input type %q", doc.Type)
	}
}

func encodeOutput(o *Output) featureDoc {
	doc := featureDoc{Type: ContinuousOutputType, Key: o.Key(), Objective: o.Objective()}

	if lo, hi, ok := o.Bounds(); ok {
		doc.Bounds = []float64{lo, hi}
	}

	return doc
}

func decodeOutput(doc featureDoc) (*Output, error) {
	if doc.Type != ContinuousOutputType {
		return nil, validationErrorf(doc.Key, "unknown output type %q", doc.Type)
	}

	var opts []OutputOption

	switch len(doc.Bounds) {
	case 0:
	case 2:
		opts = append(opts, WithOutputBounds(doc.Bounds[0], doc.Bounds[1]))
	default:
		return nil, validationErrorf(doc.Key, "bounds must have two entries, got %d", len(doc.Bounds))
	}

	return NewContinuousOutput(doc.Key, doc.Objective, opts...)
}

//////
// Constraints.
//////

type constraintDecoder func(constraintDoc) (Constraint, error)

var constraintDecoders = map[ConstraintType]constraintDecoder{
	LinearEqualityType: func(doc constraintDoc) (Constraint, error) {
		if doc.RHS == nil {
			return nil, validationErrorf(string(doc.Type), "rhs is required")
		}

		return NewLinearEquality(doc.Features, doc.Coefficients, *doc.RHS)
	},
	LinearInequalityType: func(doc constraintDoc) (Constraint, error) {
		if doc.RHS == nil {
			return nil, validationErrorf(string(doc.Type), "rhs is required")
		}

		return NewLinearInequality(doc.Features, doc.Coefficients, *doc.RHS)
	},
	NonlinearEqualityType: func(doc constraintDoc) (Constraint, error) {
		return NewNonlinearEquality(doc.Expression, doc.Features)
	},
	NonlinearInequalityType: func(doc constraintDoc) (Constraint, error) {
		return NewNonlinearInequality(doc.Expression, doc.Features)
	},
	NChooseKType: func(doc constraintDoc) (Constraint, error) {
		if doc.MinCount == nil || doc.MaxCount == nil {
			return nil, validationErrorf(string(doc.Type), "min_count and max_count are required")
		}

		return NewNChooseK(doc.Features, *doc.MinCount, *doc.MaxCount, doc.NoneAlsoValid)
	},
	InterpointEqualityType: func(doc constraintDoc) (Constraint, error) {
		return NewInterpointEquality(doc.Feature, doc.Multiplicity)
	},
	InterpointSumType: func(doc constraintDoc) (Constraint, error) {
		if doc.RHS == nil {
			return nil, validationErrorf(string(doc.Type), "rhs is required")
		}

		return NewInterpointSum(doc.Feature, *doc.RHS)
	},
}

func encodeConstraint(c Constraint) constraintDoc {
	doc := constraintDoc{Type: c.Type()}

	switch t := c.(type) {
	case *LinearConstraint:
		rhs := t.RHS()
		doc.Features = t.Features()
		doc.Coefficients = t.Coefficients()
		doc.RHS = &rhs
	case *NonlinearConstraint:
		doc.Features = t.Features()
		doc.Expression = t.Expression()
	case *NChooseKConstraint:
		lo, hi := t.MinCount(), t.MaxCount()
		doc.Features = t.Features()
		doc.MinCount, doc.MaxCount = &lo, &hi
		doc.NoneAlsoValid = t.NoneAlsoValid()
	case *InterpointEqualityConstraint:
		doc.Feature = t.Feature()
		doc.Multiplicity = t.Multiplicity()
	case *InterpointSumConstraint:
		rhs := t.RHS()
		doc.Feature = t.Feature()
		doc.RHS = &rhs
	}

	return doc
}

func decodeConstraint(doc constraintDoc) (Constraint, error) {
	decode, ok := constraintDecoders[doc.Type]
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown constraint type %q", doc.Type)}
	}

	return decode(doc)
}

//////
// Domain.
//////

func (d *Domain) document() domainDoc {
	doc := domainDoc{
		Inputs:      make([]featureDoc, 0, len(d.inputs)),
		Outputs:     make([]featureDoc, 0, len(d.outputs)),
		Constraints: make([]constraintDoc, 0, len(d.constraints)),
	}

	for _, f := range d.inputs {
		doc.Inputs = append(doc.Inputs, encodeFeature(f))
	}

	for _, o := range d.outputs {
		doc.Outputs = append(doc.Outputs, encodeOutput(o))
	}

	for _, c := range d.constraints {
		doc.Constraints = append(doc.Constraints, encodeConstraint(c))
	}

	if d.tolerance != DefaultTolerance {
		doc.Tolerance = d.tolerance
	}

	return doc
}

func fromDocument(doc domainDoc) (*Domain, error) {
	inputs := make([]Feature, 0, len(doc.Inputs))
	for _, fd := range doc.Inputs {
		f, err := decodeFeature(fd)
		if err != nil {
			return nil, err
		}

		inputs = append(inputs, f)
	}

	outputs := make([]*Output, 0, len(doc.Outputs))
	for _, od := range doc.Outputs {
		o, err := decodeOutput(od)
		if err != nil {
			return nil, err
		}

		outputs = append(outputs, o)
	}

	constraints := make([]Constraint, 0, len(doc.Constraints))
	for _, cd := range doc.Constraints {
		c, err := decodeConstraint(cd)
		if err != nil {
			return nil, err
		}

		constraints = append(constraints, c)
	}

	var opts []Option
	if doc.Tolerance != 0 {
		opts = append(opts, WithTolerance(doc.Tolerance))
	}

	return New(inputs, outputs, constraints, opts...)
}

// MarshalJSON encodes the domain schema.
func (d *Domain) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.document())
}

// UnmarshalJSON decodes and validates a domain schema.
func (d *Domain) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}

	*d = *parsed

	return nil
}

// ParseJSON decodes and validates a domain schema.
func ParseJSON(data []byte) (*Domain, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc domainDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("malformed domain document: %v", err)}
	}

	return fromDocument(doc)
}

// ParseYAML decodes a domain schema written in YAML. The document has the
// same shape as the JSON schema.
func ParseYAML(data []byte) (*Domain, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("malformed domain document: %v", err)}
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("malformed domain document: %v", err)}
	}

	return ParseJSON(data)
}

// MarshalYAML renders the domain schema as YAML.
func (d *Domain) MarshalYAML() (any, error) {
	data, err := json.Marshal(d.document())
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	return raw, nil
}

// Equal reports whether two domains declare the same inputs and outputs (in
// order), the same tolerance and the same constraints in any order.
func (d *Domain) Equal(o *Domain) bool {
	if d == nil || o == nil {
		return d == o
	}

	a, b := d.document(), o.document()

	if a.Tolerance != b.Tolerance || !sameJSON(a.Inputs, b.Inputs) || !sameJSON(a.Outputs, b.Outputs) {
		return false
	}

	return sameJSON(sortedConstraints(a.Constraints), sortedConstraints(b.Constraints))
}

func sortedConstraints(docs []constraintDoc) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		data, _ := json.Marshal(doc)
		out = append(out, string(data))
	}

	sort.Strings(out)

	return out
}

func sameJSON(a, b any) bool {
	x, errX := json.Marshal(a)
	y, errY := json.Marshal(b)

	return errX == nil && errY == nil && bytes.Equal(x, y)
}
