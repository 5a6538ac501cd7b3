package strategy

import (
	"go.uber.org/zap"

	"github.com/thalesfsp/doe/domain"
	"github.com/thalesfsp/doe/encoding"
	"github.com/thalesfsp/doe/surrogate"
	"github.com/thalesfsp/doe/surrogate/gp"
)

// BayesianStrategy is backed by Gaussian process surrogates. Batches are
// built with kriging-believer fantasies: after every pick the process is
// conditioned on its own predicted mean, which shrinks the uncertainty
// around the pick and pushes the next slot elsewhere.
type BayesianStrategy struct {
	modelCore

	options struct {
		CommonOptions `koanf:",squash"`
		ModelOptions  `koanf:",squash"`

		// Lengthscale of the RBF kernel in encoded units; zero selects it by
		// marginal likelihood.
		Lengthscale float64 `koanf:"lengthscale" validate:"gte=0"`

		// Noise is the observation noise variance relative to the signal.
		Noise float64 `koanf:"noise" validate:"gt=0"`

		// CategoricalEncoding is one_hot or descriptor.
		CategoricalEncoding string `koanf:"categorical_encoding" validate:"oneof=one_hot descriptor"`
	}
}

// NewBayesian returns an unconfigured BayesianStrategy.
func NewBayesian(logger *zap.Logger) *BayesianStrategy {
	return &BayesianStrategy{
		modelCore: modelCore{
			base: newBase(Bayesian, Capabilities{
				Inputs:       domain.AllInputTypes,
				Constraints:  domain.AllConstraintTypes,
				RequiresData: true,
			}, logger),
		},
	}
}

// Configure implements Strategy.
//
// Options besides the common ones: acquisition (ucb), beta (2), xi (0.01),
// num_candidates (256), num_restarts (4), local_steps (20), lengthscale (0),
// noise (1e-6), categorical_encoding (one_hot).
func (s *BayesianStrategy) Configure(d *domain.Domain, options map[string]any) error {
	defaults := merge(commonDefaults(), modelDefaults(), map[string]any{
		"lengthscale":          0.0,
		"noise":                1e-6,
		"categorical_encoding": string(encoding.OneHot),
	})

	if err := s.configure(d, options, defaults, &s.options, &s.options.CommonOptions); err != nil {
		return err
	}

	fitter := gp.Fitter{Lengthscale: s.options.Lengthscale, Noise: s.options.Noise}
	s.fitter = func(int) surrogate.Fitter { return fitter }

	return s.setup(d, encoding.Categorical(s.options.CategoricalEncoding), s.options.ModelOptions)
}
