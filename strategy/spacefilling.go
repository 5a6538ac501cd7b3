package strategy

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/thalesfsp/doe/domain"
	"github.com/thalesfsp/doe/encoding"
	"github.com/thalesfsp/doe/sampling"
)

// SpaceFillingStrategy spreads candidates over the feasible region with a
// greedy maximin design: every slot takes the pool point farthest from the
// points already placed, history included. It needs no data.
type SpaceFillingStrategy struct {
	base

	options struct {
		CommonOptions `koanf:",squash"`

		// PoolFactor scales the pool drawn per slot: pool_factor × n points.
		PoolFactor int `koanf:"pool_factor" validate:"gte=1"`
	}

	encoder *encoding.Encoder
}

// NewSpaceFilling returns an unconfigured SpaceFillingStrategy.
func NewSpaceFilling(logger *zap.Logger) *SpaceFillingStrategy {
	return &SpaceFillingStrategy{
		base: newBase(SpaceFilling, Capabilities{
			Inputs: domain.AllInputTypes,
			Constraints: without(domain.AllConstraintTypes,
				domain.InterpointEqualityType,
				domain.InterpointSumType,
			),
		}, logger),
	}
}

// Configure implements Strategy. Besides the common options it recognizes
// pool_factor (default 20).
func (s *SpaceFillingStrategy) Configure(d *domain.Domain, options map[string]any) error {
	defaults := merge(commonDefaults(), map[string]any{"pool_factor": 20})

	if err := s.configure(d, options, defaults, &s.options, &s.options.CommonOptions); err != nil {
		return err
	}

	enc, err := encoding.New(d, encoding.OneHot)
	if err != nil {
		return s.abandon(&ConfigurationError{Strategy: s.name, Reason: err.Error()})
	}

	s.encoder = enc

	return nil
}

// Tell implements Strategy. Observed inputs count as placed points.
func (s *SpaceFillingStrategy) Tell(_ context.Context, experiments []domain.Experiment) error {
	if _, err := s.ingest(experiments); err != nil {
		return err
	}

	s.settle(len(s.history) > 0)

	return nil
}

// Ask implements Strategy.
func (s *SpaceFillingStrategy) Ask(ctx context.Context, n int) ([]domain.Candidate, error) {
	if s.state == Uninitialized {
		return nil, s.opError("ask", s.notReady("Configure must be called first"))
	}

	placed, err := s.encoder.EncodeAll(s.historyInputs())
	if err != nil {
		return nil, s.opError("ask", err)
	}

	return s.propose(ctx, n, func(ctx context.Context, batch []domain.Assignment, i, n int, o sampling.Overrides) (domain.Candidate, error) {
		c, x, err := s.slot(ctx, batch, placed, n, o)
		if err != nil {
			return domain.Candidate{}, err
		}

		placed = append(placed, x)

		return c, nil
	})
}

func (s *SpaceFillingStrategy) slot(
	ctx context.Context,
	batch []domain.Assignment,
	placed [][]float64,
	n int,
	o sampling.Overrides,
) (domain.Candidate, []float64, error) {
	pool, err := s.sampler.Pool(ctx, s.options.PoolFactor*n, s.rng, o)
	if err != nil && len(pool) == 0 {
		return domain.Candidate{}, nil, err
	}

	var (
		best     domain.Assignment
		bestX    []float64
		bestDist = -1.0
	)

	for _, a := range pool {
		if s.repeats(batch, a) {
			continue
		}

		x, err := s.encoder.Encode(a)
		if err != nil {
			return domain.Candidate{}, nil, err
		}

		d := nearestDistance(x, placed)
		if d > bestDist {
			best, bestX, bestDist = a, x, d
		}
	}

	if best == nil {
		return domain.Candidate{}, nil, &sampling.InfeasibleRegionError{Requested: n, Found: len(batch), Constraint: "distinct candidates"}
	}

	return domain.Candidate{Inputs: best}, bestX, nil
}

// nearestDistance is the Euclidean distance from x to the closest placed
// point, +Inf when nothing is placed.
func nearestDistance(x []float64, placed [][]float64) float64 {
	best := math.Inf(1)

	for _, p := range placed {
		var d float64
		for j := range x {
			d += (x[j] - p[j]) * (x[j] - p[j])
		}

		best = math.Min(best, d)
	}

	return math.Sqrt(best)
}
