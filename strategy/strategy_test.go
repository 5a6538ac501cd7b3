package strategy

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/doe/acquisition"
	"github.com/thalesfsp/doe/domain"
	"github.com/thalesfsp/doe/sampling"
)

//////
// Fixtures.
//////

func boxDomain(t *testing.T) *domain.Domain {
	t.Helper()

	d, err := domain.New(
		[]domain.Feature{
			domain.MustContinuous("x1", 0, 1),
			domain.MustContinuous("x2", 0, 1),
		},
		[]*domain.Output{domain.MustContinuousOutput("y", domain.Maximize())},
		nil,
	)
	require.NoError(t, err)

	return d
}

func mixedDomain(t *testing.T) *domain.Domain {
	t.Helper()

	d, err := domain.New(
		[]domain.Feature{
			domain.MustContinuous("x", 0, 1),
			domain.MustDiscrete("k", 0, 1, 2),
			domain.MustCategorical("c", "a", "b"),
		},
		[]*domain.Output{domain.MustContinuousOutput("y", domain.Minimize())},
		nil,
	)
	require.NoError(t, err)

	return d
}

// peak is maximal at (0.7, 0.2).
func peak(a domain.Assignment) float64 {
	dx, dy := a.Float("x1")-0.7, a.Float("x2")-0.2

	return -(dx*dx + dy*dy)
}

func mixedResponse(a domain.Assignment) float64 {
	y := (a.Float("x")-0.4)*(a.Float("x")-0.4) + a.Float("k")

	if c, _ := a["c"].Category(); c == "b" {
		y += 0.5
	}

	return y
}

// history draws n random experiments and evaluates f on them.
func history(t *testing.T, d *domain.Domain, n int, f func(domain.Assignment) float64) []domain.Experiment {
	t.Helper()

	r := NewRandom(nil)
	require.NoError(t, r.Configure(d, map[string]any{"seed": 99}))

	cs, err := r.Ask(context.Background(), n)
	require.NoError(t, err)

	out := make([]domain.Experiment, len(cs))
	for i, c := range cs {
		out[i] = domain.Experiment{Inputs: c.Inputs, Outputs: map[string]float64{"y": f(c.Inputs)}}
	}

	return out
}

func assertDistinctFeasible(t *testing.T, d *domain.Domain, cs []domain.Candidate) {
	t.Helper()

	batch := domain.Assignments(cs)

	assert.True(t, d.IsBatchFeasible(batch))

	for i := range batch {
		assert.True(t, d.IsFeasible(batch[i]), "candidate %d", i)

		for j := i + 1; j < len(batch); j++ {
			assert.False(t, batch[i].Equal(batch[j]), "candidates %d and %d are identical", i, j)
		}
	}
}

//////
// Contract.
//////

func TestRandomReturnsDistinctFeasibleCandidates(t *testing.T) {
	d := boxDomain(t)

	s, err := New(Random, nil)
	require.NoError(t, err)
	require.NoError(t, s.Configure(d, map[string]any{"seed": 1}))

	cs, err := s.Ask(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, cs, 5)

	assertDistinctFeasible(t, d, cs)
	assert.Equal(t, Proposing, s.State())
}

func TestAskUsesBatchSize(t *testing.T) {
	s := NewSpaceFilling(nil)
	require.NoError(t, s.Configure(boxDomain(t), map[string]any{"batch_size": 3}))

	cs, err := s.Ask(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, cs, 3)
}

func TestNotReady(t *testing.T) {
	d := boxDomain(t)

	for _, name := range []string{Bayesian, Tree} {
		t.Run(name, func(t *testing.T) {
			s, err := New(name, nil)
			require.NoError(t, err)

			_, err = s.Ask(context.Background(), 1)
			require.ErrorIs(t, err, ErrNotReady)

			require.NoError(t, s.Configure(d, nil))
			assert.True(t, s.Capabilities().RequiresData)

			_, err = s.Ask(context.Background(), 1)
			require.ErrorIs(t, err, ErrNotReady)

			var notReady *NotReadyError
			require.ErrorAs(t, err, &notReady)
			assert.Equal(t, Configured, notReady.State)

			var op *OpError
			require.ErrorAs(t, err, &op)
			assert.Equal(t, name, op.Strategy)
			assert.Equal(t, "ask", op.Op)
		})
	}

	// Data-free strategies work on an empty history.
	for _, name := range []string{Random, SpaceFilling} {
		s, err := New(name, nil)
		require.NoError(t, err)
		require.NoError(t, s.Configure(d, nil))
		assert.False(t, s.Capabilities().RequiresData)

		cs, err := s.Ask(context.Background(), 2)
		require.NoError(t, err)
		assert.Len(t, cs, 2)
	}
}

func TestExcludedOrOutputlessHistoryIsNotUsable(t *testing.T) {
	d := boxDomain(t)
	exps := history(t, d, 4, peak)

	for i := range exps {
		exps[i].Excluded = true
	}

	exps = append(exps, domain.Experiment{Inputs: exps[0].Inputs.Clone()})

	s := NewBayesian(nil)
	require.NoError(t, s.Configure(d, nil))
	require.NoError(t, s.Tell(context.Background(), exps))

	assert.Equal(t, Configured, s.State())
	assert.Len(t, s.Experiments(), 5)

	_, err := s.Ask(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestConfigurationErrors(t *testing.T) {
	d := boxDomain(t)

	tests := []struct {
		name     string
		strategy string
		domain   *domain.Domain
		options  map[string]any
		option   string
	}{
		{"unknown option", Random, d, map[string]any{"bogus": 1}, "bogus"},
		{"variant option on another variant", Random, d, map[string]any{"pool_factor": 3}, "pool_factor"},
		{"batch size", Random, d, map[string]any{"batch_size": 0}, "batch_size"},
		{"tolerance", SpaceFilling, d, map[string]any{"tolerance": -1.0}, "tolerance"},
		{"acquisition", Bayesian, d, map[string]any{"acquisition": "kg"}, "acquisition"},
		{"encoding", Bayesian, d, map[string]any{"categorical_encoding": "ordinal"}, "categorical_encoding"},
		{"max features", Tree, d, map[string]any{"max_features": 1.5}, "max_features"},
		{
			"descriptor input",
			MixedInteger,
			domain.MustNew([]domain.Feature{
				mustDescriptor(t),
			}, []*domain.Output{domain.MustContinuousOutput("y", domain.Maximize())}, nil),
			nil,
			"solvent",
		},
		{
			"lattice too large",
			MixedInteger,
			mixedDomain(t),
			map[string]any{"max_combinations": 5},
			"max_combinations",
		},
		{
			"no objective",
			Tree,
			domain.MustNew([]domain.Feature{domain.MustContinuous("x", 0, 1)}, nil, nil),
			nil,
			"outputs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.strategy, nil)
			require.NoError(t, err)

			err = s.Configure(tt.domain, tt.options)
			require.ErrorIs(t, err, ErrConfiguration)

			var cfg *ConfigurationError
			require.ErrorAs(t, err, &cfg)
			assert.Equal(t, tt.strategy, cfg.Strategy)
			assert.Equal(t, tt.option, cfg.Option)
		})
	}
}

func mustDescriptor(t *testing.T) domain.Feature {
	t.Helper()

	f, err := domain.NewCategoricalDescriptor("solvent", []string{"water", "ethanol"}, []string{"polarity"}, [][]float64{{1}, {0.6}})
	require.NoError(t, err)

	return f
}

func TestUnsupportedConstraint(t *testing.T) {
	d := domain.MustNew(
		[]domain.Feature{domain.MustContinuous("x", 0, 1), domain.MustContinuous("t", 0, 1)},
		[]*domain.Output{domain.MustContinuousOutput("y", domain.Maximize())},
		[]domain.Constraint{domain.MustInterpointEquality("t", 2)},
	)

	for _, name := range []string{SpaceFilling, Tree, MixedInteger} {
		s, err := New(name, nil)
		require.NoError(t, err)

		err = s.Configure(d, nil)
		assert.ErrorIs(t, err, ErrConfiguration, name)
	}

	for _, name := range []string{Random, Bayesian} {
		s, err := New(name, nil)
		require.NoError(t, err)
		assert.NoError(t, s.Configure(d, nil), name)
	}
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{Bayesian, MixedInteger, Random, SpaceFilling, Tree}, Names())

	_, err := New("simulated_annealing", nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	for _, name := range Names() {
		s, err := New(name, nil)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
		assert.Equal(t, Uninitialized, s.State())
	}
}

func TestTellIsIdempotent(t *testing.T) {
	d := boxDomain(t)
	exps := history(t, d, 6, peak)

	s := NewTree(nil)
	require.NoError(t, s.Configure(d, map[string]any{"num_trees": 5}))

	require.NoError(t, s.Tell(context.Background(), exps))
	require.NoError(t, s.Tell(context.Background(), exps))
	require.NoError(t, s.Tell(context.Background(), exps[:2]))

	assert.Len(t, s.Experiments(), 6)
	assert.Equal(t, Fitted, s.State())
}

func TestTellRejectsInvalidExperiments(t *testing.T) {
	d := boxDomain(t)
	exps := history(t, d, 3, peak)
	exps = append(exps, domain.Experiment{Inputs: domain.Assignment{"x1": domain.Number(2), "x2": domain.Number(0)}})

	s := NewRandom(nil)
	require.NoError(t, s.Configure(d, nil))

	err := s.Tell(context.Background(), exps)
	require.ErrorIs(t, err, domain.ErrValidation)

	var op *OpError
	require.ErrorAs(t, err, &op)
	assert.Equal(t, "tell", op.Op)

	assert.Empty(t, s.Experiments())
	assert.Equal(t, Configured, s.State())
}

func TestTellDoesNotRetainCallerData(t *testing.T) {
	d := boxDomain(t)
	exps := history(t, d, 1, peak)

	s := NewRandom(nil)
	require.NoError(t, s.Configure(d, nil))
	require.NoError(t, s.Tell(context.Background(), exps))

	exps[0].Outputs["y"] = 42

	assert.NotEqual(t, 42.0, s.Experiments()[0].Outputs["y"])
}

func TestDeterminism(t *testing.T) {
	box := boxDomain(t)
	mixed := mixedDomain(t)

	tests := []struct {
		name    string
		domain  *domain.Domain
		history []domain.Experiment
		options map[string]any
	}{
		{Random, box, nil, nil},
		{SpaceFilling, box, history(t, box, 3, peak), nil},
		{Bayesian, box, history(t, box, 6, peak), map[string]any{"num_candidates": 64}},
		{Tree, box, history(t, box, 8, peak), map[string]any{"num_trees": 10, "num_candidates": 64}},
		{MixedInteger, mixed, history(t, mixed, 8, mixedResponse), map[string]any{"num_trees": 10, "num_candidates": 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := func() []domain.Candidate {
				s, err := New(tt.name, nil)
				require.NoError(t, err)

				options := map[string]any{"seed": 5}
				for k, v := range tt.options {
					options[k] = v
				}

				require.NoError(t, s.Configure(tt.domain, options))
				require.NoError(t, s.Tell(context.Background(), tt.history))

				cs, err := s.Ask(context.Background(), 3)
				require.NoError(t, err)

				return cs
			}

			a, b := run(), run()
			require.Len(t, a, 3)
			require.Len(t, b, 3)

			for i := range a {
				assert.True(t, a[i].Inputs.Equal(b[i].Inputs), "candidate %d differs", i)
			}

			assertDistinctFeasible(t, tt.domain, a)
		})
	}
}

//////
// Variants.
//////

func TestBayesianBatch(t *testing.T) {
	d := boxDomain(t)

	s := NewBayesian(nil)
	require.NoError(t, s.Configure(d, map[string]any{"seed": 3, "acquisition": "ei"}))
	require.NoError(t, s.Tell(context.Background(), history(t, d, 8, peak)))
	assert.Equal(t, Fitted, s.State())

	cs, err := s.Ask(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, cs, 3)

	assertDistinctFeasible(t, d, cs)

	for i, c := range cs {
		require.NotNil(t, c.Score)
		require.Contains(t, c.Predictions, "y")
		assert.False(t, math.IsNaN(c.Predictions["y"].Mean))

		if i > 0 {
			assert.GreaterOrEqual(t, *cs[i-1].Score, *c.Score)
		}
	}
}

func TestObjectivePassesGeneratorOnlyToStochasticAcquisition(t *testing.T) {
	d := boxDomain(t)
	point := []domain.Assignment{{"x1": domain.Number(0.5), "x2": domain.Number(0.5)}}

	for acq, want := range map[string]bool{"ei": false, "ucb": false, "ts": true} {
		t.Run(acq, func(t *testing.T) {
			s := NewBayesian(nil)
			require.NoError(t, s.Configure(d, map[string]any{"seed": 3, "acquisition": acq}))
			require.NoError(t, s.Tell(context.Background(), history(t, d, 8, peak)))
			require.NotNil(t, s.predictor)

			var got bool

			s.acq = func(_, _ float64, p acquisition.Params) float64 {
				got = p.RandomState != nil

				return 0
			}

			_, err := s.objective(s.predictor, s.params)(rand.New(rand.NewSource(1)), point)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestBayesianHonorsLinearConstraint(t *testing.T) {
	d := domain.MustNew(
		[]domain.Feature{domain.MustContinuous("x1", 0, 1), domain.MustContinuous("x2", 0, 1)},
		[]*domain.Output{domain.MustContinuousOutput("y", domain.Maximize())},
		[]domain.Constraint{domain.MustLinearInequality([]string{"x1", "x2"}, []float64{1, 1}, 0.6)},
	)

	s := NewBayesian(nil)
	require.NoError(t, s.Configure(d, map[string]any{"seed": 4, "num_candidates": 64}))
	require.NoError(t, s.Tell(context.Background(), history(t, d, 6, peak)))

	cs, err := s.Ask(context.Background(), 2)
	require.NoError(t, err)

	assertDistinctFeasible(t, d, cs)

	for _, c := range cs {
		assert.LessOrEqual(t, c.Inputs.Float("x1")+c.Inputs.Float("x2"), 0.6+1e-6)
	}
}

func TestRandomHonorsInterpointEquality(t *testing.T) {
	d := domain.MustNew(
		[]domain.Feature{domain.MustContinuous("x", 0, 1), domain.MustContinuous("t", 20, 80)},
		nil,
		[]domain.Constraint{domain.MustInterpointEquality("t", 2)},
	)

	s := NewRandom(nil)
	require.NoError(t, s.Configure(d, map[string]any{"seed": 8}))

	cs, err := s.Ask(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, cs, 4)

	assertDistinctFeasible(t, d, cs)
	assert.Equal(t, cs[0].Inputs.Float("t"), cs[1].Inputs.Float("t"))
	assert.Equal(t, cs[2].Inputs.Float("t"), cs[3].Inputs.Float("t"))
}

func TestMixedIntegerProposesLatticePoints(t *testing.T) {
	d := mixedDomain(t)

	s := NewMixedInteger(nil)
	require.NoError(t, s.Configure(d, map[string]any{"seed": 2, "num_trees": 10, "num_candidates": 8}))
	require.NoError(t, s.Tell(context.Background(), history(t, d, 10, mixedResponse)))

	cs, err := s.Ask(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, cs, 2)

	assertDistinctFeasible(t, d, cs)

	for _, c := range cs {
		assert.NoError(t, d.ValidateInputs(c.Inputs))
	}
}

func TestLattice(t *testing.T) {
	d := mixedDomain(t)

	combos, err := Lattice(d, 6)
	require.NoError(t, err)
	require.Len(t, combos, 6)

	assert.Equal(t, domain.Number(0), combos[0]["k"])
	assert.Equal(t, domain.Label("a"), combos[0]["c"])
	assert.Equal(t, domain.Label("b"), combos[1]["c"])
	assert.Equal(t, domain.Number(2), combos[5]["k"])

	_, err = Lattice(d, 5)
	assert.Error(t, err)

	combos, err = Lattice(boxDomain(t), 1)
	require.NoError(t, err)
	assert.Equal(t, []map[string]domain.Value{{}}, combos)
}

func TestShortBatch(t *testing.T) {
	d := domain.MustNew([]domain.Feature{domain.MustDiscrete("k", 1, 2)}, nil, nil)

	s := NewRandom(nil)
	require.NoError(t, s.Configure(d, map[string]any{"seed": 1, "max_retries": 50}))

	_, err := s.Ask(context.Background(), 3)
	require.ErrorIs(t, err, sampling.ErrInfeasible)

	var infeasible *sampling.InfeasibleRegionError
	require.ErrorAs(t, err, &infeasible)
	assert.Equal(t, 3, infeasible.Requested)
	assert.Equal(t, 2, infeasible.Found)

	require.NoError(t, s.Configure(d, map[string]any{"seed": 1, "max_retries": 50, "best_effort": true}))

	cs, err := s.Ask(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, cs, 2)

	require.NoError(t, s.Configure(d, map[string]any{"seed": 1, "allow_repeats": true}))

	cs, err = s.Ask(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, cs, 3)
}

func TestAskHonorsCancellation(t *testing.T) {
	s := NewRandom(nil)
	require.NoError(t, s.Configure(boxDomain(t), map[string]any{"time_budget": "1s"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Ask(ctx, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
