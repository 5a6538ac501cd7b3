package strategy

import (
	"context"

	"go.uber.org/zap"

	"github.com/thalesfsp/doe/domain"
	"github.com/thalesfsp/doe/sampling"
)

// RandomStrategy proposes uniformly drawn feasible points. It needs no data.
type RandomStrategy struct {
	base

	options struct {
		CommonOptions `koanf:",squash"`
	}
}

// NewRandom returns an unconfigured RandomStrategy.
func NewRandom(logger *zap.Logger) *RandomStrategy {
	return &RandomStrategy{
		base: newBase(Random, Capabilities{
			Inputs:      domain.AllInputTypes,
			Constraints: domain.AllConstraintTypes,
		}, logger),
	}
}

// Configure implements Strategy. Only the common options are recognized.
func (s *RandomStrategy) Configure(d *domain.Domain, options map[string]any) error {
	return s.configure(d, options, commonDefaults(), &s.options, &s.options.CommonOptions)
}

// Tell implements Strategy. The history only matters for repeat checks.
func (s *RandomStrategy) Tell(_ context.Context, experiments []domain.Experiment) error {
	if _, err := s.ingest(experiments); err != nil {
		return err
	}

	s.settle(len(s.history) > 0)

	return nil
}

// Ask implements Strategy.
func (s *RandomStrategy) Ask(ctx context.Context, n int) ([]domain.Candidate, error) {
	if s.state == Uninitialized {
		return nil, s.opError("ask", s.notReady("Configure must be called first"))
	}

	return s.propose(ctx, n, s.slot)
}

func (s *RandomStrategy) slot(ctx context.Context, batch []domain.Assignment, i, n int, o sampling.Overrides) (domain.Candidate, error) {
	for attempt := 0; attempt < s.common.MaxRetries; attempt++ {
		a, err := s.sampler.Point(ctx, s.rng, o)
		if err != nil {
			return domain.Candidate{}, err
		}

		if s.repeats(batch, a) {
			continue
		}

		return domain.Candidate{Inputs: a}, nil
	}

	return domain.Candidate{}, &sampling.InfeasibleRegionError{
		Requested:  n,
		Found:      i,
		Attempts:   s.common.MaxRetries,
		Constraint: "distinct candidates",
	}
}
