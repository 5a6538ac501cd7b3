// Package domain describes the space an experimental campaign works in: the
// input features a scientist can control, the outputs that are measured, and
// the feasibility rules (constraints) every proposed experiment must obey.
//
// # Features
//
// Inputs come in four flavours:
//
//   - ContinuousInput: a real value in a closed interval
//   - DiscreteInput: one value out of a finite, sorted set of numbers
//   - CategoricalInput: one label out of a finite set
//   - CategoricalDescriptorInput: a categorical input whose labels carry a
//     numeric descriptor row, used by models that need continuous encodings
//
// Outputs are ContinuousOutput values with an optional Objective (minimize,
// maximize or target).
//
// # Constraints
//
// Constraints report a signed residual. Equality variants are satisfied when
// |residual| <= tolerance, the others when residual <= tolerance:
//
//   - LinearEquality / LinearInequality: Σ cᵢxᵢ = rhs, Σ cᵢxᵢ <= rhs
//   - NonlinearEquality / NonlinearInequality: expr = 0, expr <= 0
//   - NChooseK: between MinCount and MaxCount referenced features are active
//   - InterpointEquality: a feature takes the same value across blocks of a batch
//   - InterpointSum: the batch-wide sum of a feature stays below rhs
//
// # Domain
//
// A Domain is built once with New, validated eagerly, and is read-only
// afterwards, so it can be shared by any number of samplers and strategies.
//
//	d, err := domain.New(
//	    []domain.Feature{
//	        domain.MustContinuous("x1", 0, 1),
//	        domain.MustContinuous("x2", 0, 1),
//	    },
//	    []domain.Output{domain.MustContinuousOutput("y", domain.Maximize())},
//	    []domain.Constraint{
//	        domain.MustLinearEquality([]string{"x1", "x2"}, []float64{1, 1}, 1),
//	    },
//	)
//
// Domains serialize to a tagged JSON document (see MarshalJSON) and
// experiments/candidates are exchanged as CSV tables (see ReadExperiments).
package domain
