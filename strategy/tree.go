package strategy

import (
	"go.uber.org/zap"

	"github.com/thalesfsp/doe/domain"
	"github.com/thalesfsp/doe/encoding"
	"github.com/thalesfsp/doe/surrogate"
	"github.com/thalesfsp/doe/surrogate/forest"
)

// TreeStrategy is backed by random forest surrogates; the spread of the
// trees serves as uncertainty.
type TreeStrategy struct {
	modelCore

	options struct {
		CommonOptions `koanf:",squash"`
		ModelOptions  `koanf:",squash"`
		ForestOptions `koanf:",squash"`
	}
}

// NewTree returns an unconfigured TreeStrategy.
func NewTree(logger *zap.Logger) *TreeStrategy {
	return &TreeStrategy{
		modelCore: modelCore{
			base: newBase(Tree, Capabilities{
				Inputs: domain.AllInputTypes,
				Constraints: []domain.ConstraintType{
					domain.LinearEqualityType,
					domain.LinearInequalityType,
					domain.NonlinearInequalityType,
					domain.NChooseKType,
				},
				RequiresData: true,
			}, logger),
		},
	}
}

// Configure implements Strategy.
//
// Options besides the common ones: acquisition (ucb), beta (2), xi (0.01),
// num_candidates (256), num_restarts (4), local_steps (20), num_trees (50),
// max_depth (8), min_leaf (1), max_features (1).
func (s *TreeStrategy) Configure(d *domain.Domain, options map[string]any) error {
	defaults := merge(commonDefaults(), modelDefaults(), forestDefaults())

	if err := s.configure(d, options, defaults, &s.options, &s.options.CommonOptions); err != nil {
		return err
	}

	s.fitter = forestFitter(s.options.ForestOptions, s.options.Seed)

	return s.setup(d, encoding.OneHot, s.options.ModelOptions)
}

// forestFitter gives every output its own deterministic seed.
func forestFitter(o ForestOptions, seed int64) func(int) surrogate.Fitter {
	return func(output int) surrogate.Fitter {
		return forest.Fitter{
			Trees:       o.NumTrees,
			MaxDepth:    o.MaxDepth,
			MinLeaf:     o.MinLeaf,
			MaxFeatures: o.MaxFeatures,
			Seed:        seed + int64(output),
		}
	}
}
