package strategy

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/thalesfsp/doe/domain"
	"github.com/thalesfsp/doe/encoding"
	"github.com/thalesfsp/doe/optimizer"
	"github.com/thalesfsp/doe/sampling"
)

// MixedIntegerStrategy is backed by random forest surrogates and treats the
// discrete and categorical inputs as a lattice: every slot enumerates all
// their combinations, optimizes the continuous inputs with the combination
// pinned, and keeps the best.
type MixedIntegerStrategy struct {
	modelCore

	options struct {
		CommonOptions `koanf:",squash"`
		ModelOptions  `koanf:",squash"`
		ForestOptions `koanf:",squash"`

		// MaxCombinations caps the lattice size accepted at Configure.
		MaxCombinations int `koanf:"max_combinations" validate:"gte=1"`
	}

	combinations []map[string]domain.Value
}

// NewMixedInteger returns an unconfigured MixedIntegerStrategy.
func NewMixedInteger(logger *zap.Logger) *MixedIntegerStrategy {
	s := &MixedIntegerStrategy{
		modelCore: modelCore{
			base: newBase(MixedInteger, Capabilities{
				Inputs: []domain.FeatureType{
					domain.ContinuousInputType,
					domain.DiscreteInputType,
					domain.CategoricalInputType,
				},
				Constraints: []domain.ConstraintType{
					domain.LinearEqualityType,
					domain.LinearInequalityType,
					domain.NChooseKType,
				},
				RequiresData: true,
			}, logger),
		},
	}

	s.search = s.enumerate

	return s
}

// Configure implements Strategy.
//
// Options besides the common ones: acquisition (ucb), beta (2), xi (0.01),
// num_candidates (32, per combination), num_restarts (2), local_steps (10),
// num_trees (50), max_depth (8), min_leaf (1), max_features (1),
// max_combinations (256).
func (s *MixedIntegerStrategy) Configure(d *domain.Domain, options map[string]any) error {
	defaults := merge(commonDefaults(), modelDefaults(), forestDefaults(), map[string]any{
		"num_candidates":   32,
		"num_restarts":     2,
		"local_steps":      10,
		"max_combinations": 256,
	})

	if err := s.configure(d, options, defaults, &s.options, &s.options.CommonOptions); err != nil {
		return err
	}

	combinations, err := Lattice(d, s.options.MaxCombinations)
	if err != nil {
		return s.abandon(&ConfigurationError{Strategy: s.name, Option: "max_combinations", Reason: err.Error()})
	}

	s.combinations = combinations
	s.fitter = forestFitter(s.options.ForestOptions, s.options.Seed)

	return s.setup(d, encoding.OneHot, s.options.ModelOptions)
}

// enumerate maximizes the problem once per lattice combination that agrees
// with the slot's fixed values.
func (s *MixedIntegerStrategy) enumerate(ctx context.Context, p optimizer.Problem) (optimizer.Result, error) {
	var (
		best    = optimizer.Result{Value: math.Inf(-1)}
		found   bool
		lastErr error
	)

	for _, combo := range s.combinations {
		if ctx.Err() != nil {
			break
		}

		o, ok := pin(p.Overrides, combo)
		if !ok {
			continue
		}

		q := p
		q.Overrides = o

		r, err := s.maximizer.Maximize(ctx, q, s.rng)
		if err != nil {
			lastErr = err

			continue
		}

		if !found || r.Value > best.Value {
			best, found = r, true
		}
	}

	if found {
		return best, nil
	}

	if err := ctx.Err(); err != nil {
		return optimizer.Result{}, err
	}

	if lastErr == nil {
		lastErr = optimizer.ErrNoCandidate
	}

	s.logger.Debug("strategy: no lattice combination admits a candidate", zap.Error(lastErr))

	return optimizer.Result{}, lastErr
}

// pin adds combo to the fixed values of o. ok is false when combo disagrees
// with a value o already fixes.
func pin(o sampling.Overrides, combo map[string]domain.Value) (sampling.Overrides, bool) {
	fixed := make(map[string]domain.Value, len(o.Fixed)+len(combo))

	for k, v := range o.Fixed {
		fixed[k] = v
	}

	for k, v := range combo {
		if prev, ok := fixed[k]; ok && !prev.Equal(v) {
			return o, false
		}

		fixed[k] = v
	}

	return sampling.Overrides{Fixed: fixed, Bounds: o.Bounds}, true
}

// Lattice enumerates every combination of the discrete and categorical
// inputs of d in input order, the last input varying fastest. A domain
// without such inputs has one empty combination. It fails when the lattice
// has more than limit points.
func Lattice(d *domain.Domain, limit int) ([]map[string]domain.Value, error) {
	var (
		keys   []string
		levels [][]domain.Value
	)

	size := 1

	for _, f := range d.Inputs() {
		var values []domain.Value

		switch t := f.(type) {
		case *domain.DiscreteInput:
			for _, v := range t.Values() {
				values = append(values, domain.Number(v))
			}
		case *domain.CategoricalInput:
			for _, c := range t.Categories() {
				values = append(values, domain.Label(c))
			}
		default:
			continue
		}

		if size > limit/len(values) {
			return nil, fmt.Errorf("lattice of discrete and categorical inputs exceeds %d combinations", limit)
		}

		size *= len(values)
		keys = append(keys, f.Key())
		levels = append(levels, values)
	}

	out := make([]map[string]domain.Value, 0, size)
	idx := make([]int, len(keys))

	for {
		combo := make(map[string]domain.Value, len(keys))
		for j, k := range keys {
			combo[k] = levels[j][idx[j]]
		}

		out = append(out, combo)

		j := len(idx) - 1
		for ; j >= 0; j-- {
			idx[j]++
			if idx[j] < len(levels[j]) {
				break
			}

			idx[j] = 0
		}

		if j < 0 {
			return out, nil
		}
	}
}
