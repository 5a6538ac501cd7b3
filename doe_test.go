package doe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/doe/benchmark"
	"github.com/thalesfsp/doe/domain"
	"github.com/thalesfsp/doe/strategy"
)

// Sample function to be benchmarked.
func testFuncInt(bufferSize int, multiplier int) error {
	buffer := make([]int, 0, bufferSize)

	// Simulate some work
	for i := 0; i < 10000; i++ {
		if len(buffer) == bufferSize {
			buffer = buffer[:0]
		}

		buffer = append(buffer, i*multiplier)
	}

	return nil
}

// Sample function to be benchmarked.
func testFuncFloat(scale float32, multiplier float32) error {
	buffer := []float32{}

	// Simulate some work.
	for i := 0; i < 10000; i++ {
		if float32(len(buffer)) >= scale {
			buffer = buffer[:0]
		}

		buffer = append(buffer, float32(i)*multiplier)
	}

	return nil
}

// smallConfig keeps the loops short.
func smallConfig() LoopConfig {
	config := DefaultConfig()
	config.Seed = 7
	config.InitialSamples = 3
	config.Iterations = 4
	config.Options = map[string]any{"num_candidates": 64, "num_restarts": 2, "local_steps": 5}

	return config
}

func TestOptimizeBufferSize(t *testing.T) {
	// Hyperparameter ranges
	ranges := []ParameterRange[int]{
		{Min: 1, Max: 100},
		{Min: 1, Max: 3},
	}

	// Run optimization with chosen configuration
	optimal, err := OptimizeHyperparameters(
		context.Background(),
		smallConfig(),
		func(params ...int) error {
			return testFuncInt(params[0], params[1])
		},
		ranges...,
	)
	require.NoError(t, err)

	// Assert has `optimal` has two elements, each inside its range.
	require.Len(t, optimal, 2)

	for i, r := range ranges {
		assert.GreaterOrEqual(t, optimal[i], r.Min)
		assert.LessOrEqual(t, optimal[i], r.Max)
	}
}

func TestOptimizeBufferSizeChannel(t *testing.T) {
	config := smallConfig()

	// Room for every update, so none is dropped.
	progressChan := make(chan ProgressUpdate, config.InitialSamples+config.Iterations)
	config.ProgressChan = progressChan

	// Define parameter ranges
	ranges := []ParameterRange[int]{
		{Min: 1024, Max: 1048576}, // Buffer size (1KB to 1MB).
		{Min: 1, Max: 32},         // Worker count.
	}

	// Run optimization.
	bestParams, err := OptimizeHyperparameters(
		context.Background(),
		config,
		func(params ...int) error {
			return testFuncInt(params[0], params[1])
		},
		ranges...,
	)
	require.NoError(t, err)
	assert.Len(t, bestParams, 2)

	// Ensure events where emitted.
	close(progressChan)

	phases := map[string]int{}

	for update := range progressChan {
		phases[update.Phase]++

		assert.LessOrEqual(t, update.CurrentIteration, update.TotalIterations)
		assert.NotNil(t, update.CurrentBestInputs)
	}

	assert.Equal(t, map[string]int{PhaseInitialSampling: 3, PhaseOptimization: 4}, phases)
}

func TestOptimizeFloat(t *testing.T) {
	ranges := []ParameterRange[float32]{
		{Min: 1, Max: 1000},
		{Min: 0.5, Max: 2},
	}

	best, err := OptimizeHyperparameters(
		context.Background(),
		smallConfig(),
		func(params ...float32) error {
			return testFuncFloat(params[0], params[1])
		},
		ranges...,
	)
	require.NoError(t, err)
	require.Len(t, best, 2)

	assert.GreaterOrEqual(t, best[1], float32(0.5))
	assert.LessOrEqual(t, best[1], float32(2))
}

func TestOptimizeEveryCallFails(t *testing.T) {
	_, err := OptimizeHyperparameters(
		context.Background(),
		smallConfig(),
		func(params ...int) error { return errors.New("boom") },
		ParameterRange[int]{Min: 1, Max: 10},
	)
	assert.ErrorIs(t, err, ErrNoSuccessfulRun)

	_, err = OptimizeHyperparameters(context.Background(), smallConfig(), func(params ...int) error { return nil })
	assert.Error(t, err)

	_, err = OptimizeHyperparameters(
		context.Background(),
		smallConfig(),
		func(params ...int) error { return nil },
		ParameterRange[int]{Min: 10, Max: 1},
	)
	assert.Error(t, err)
}

func TestParameterRangeFeature(t *testing.T) {
	f, err := ParameterRange[int]{Min: 1, Max: 5}.Feature("k")
	require.NoError(t, err)

	discrete, ok := f.(*domain.DiscreteInput)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, discrete.Values())

	f, err = ParameterRange[int64]{Min: 0, Max: 1 << 20}.Feature("k")
	require.NoError(t, err)
	assert.Equal(t, domain.ContinuousInputType, f.Type())

	f, err = ParameterRange[float64]{Min: 0, Max: 3}.Feature("k")
	require.NoError(t, err)
	assert.Equal(t, domain.ContinuousInputType, f.Type())

	assert.Equal(t, int64(4), ParameterRange[int64]{Min: 0, Max: 10}.value(3.6))
	assert.Equal(t, int64(10), ParameterRange[int64]{Min: 0, Max: 10}.value(10.4))
	assert.InDelta(t, 3.6, ParameterRange[float64]{Min: 0, Max: 10}.value(3.6), 1e-12)
}

func TestRunHimmelblau(t *testing.T) {
	f := benchmark.Himmelblau()

	config := smallConfig()
	config.InitialSamples = 6
	config.Iterations = 5
	config.BatchSize = 2

	result, err := Run(context.Background(), f.Domain(), f.Evaluate, config)
	require.NoError(t, err)
	require.Len(t, result.Experiments, 16)
	require.NotNil(t, result.Best)

	// The output is minimized, so the best score is the negated minimum.
	lowest := result.Experiments[0].Outputs[benchmark.OutputKey]
	for _, e := range result.Experiments {
		assert.False(t, e.Excluded)
		assert.True(t, f.Domain().IsFeasible(e.Inputs))

		lowest = min(lowest, e.Outputs[benchmark.OutputKey])
	}

	assert.InDelta(t, -lowest, result.BestScore, 1e-12)
	assert.InDelta(t, lowest, result.Best.Outputs[benchmark.OutputKey], 1e-12)
}

func TestRunIsDeterministic(t *testing.T) {
	f := benchmark.Branin()

	config := smallConfig()
	config.Strategy = strategy.Tree
	config.Options = map[string]any{"num_trees": 10, "num_candidates": 32, "num_restarts": 2}

	first, err := Run(context.Background(), f.Domain(), f.Evaluate, config)
	require.NoError(t, err)

	second, err := Run(context.Background(), f.Domain(), f.Evaluate, config)
	require.NoError(t, err)

	require.Len(t, second.Experiments, len(first.Experiments))

	for i := range first.Experiments {
		assert.True(t, first.Experiments[i].Inputs.Equal(second.Experiments[i].Inputs), "experiment %d", i)
	}
}

func TestRunRecordsFailures(t *testing.T) {
	f := benchmark.Himmelblau()

	runner := func(ctx context.Context, a domain.Assignment) (map[string]float64, error) {
		if a.Float("x1") < 0 {
			return nil, errors.New("unstable")
		}

		return f.Evaluate(ctx, a)
	}

	config := smallConfig()
	config.InitialSamples = 8

	result, err := Run(context.Background(), f.Domain(), runner, config)
	require.NoError(t, err)
	require.Len(t, result.Experiments, 12)

	for _, e := range result.Experiments {
		if e.Inputs.Float("x1") < 0 {
			assert.True(t, e.Excluded)
			assert.Equal(t, "unstable", e.Labels["error"])
			assert.Nil(t, e.Outputs)
		} else {
			assert.False(t, e.Excluded)
		}
	}

	if result.Best != nil {
		assert.GreaterOrEqual(t, result.Best.Inputs.Float("x1"), 0.0)
	}
}

func TestRunFallsBackWhileNotReady(t *testing.T) {
	f := benchmark.Branin()

	calls := 0
	runner := func(ctx context.Context, a domain.Assignment) (map[string]float64, error) {
		calls++
		if calls <= 4 {
			return nil, errors.New("warming up")
		}

		return f.Evaluate(ctx, a)
	}

	config := smallConfig()
	config.InitialSamples = 2
	config.Iterations = 5

	result, err := Run(context.Background(), f.Domain(), runner, config)
	require.NoError(t, err)
	assert.Len(t, result.Experiments, 7)
	assert.NotNil(t, result.Best)
}

func TestRunRejectsUndeclaredOutputs(t *testing.T) {
	f := benchmark.Himmelblau()

	runner := func(context.Context, domain.Assignment) (map[string]float64, error) {
		return map[string]float64{"z": 1}, nil
	}

	config := smallConfig()
	config.Iterations = 1

	result, err := Run(context.Background(), f.Domain(), runner, config)
	require.NoError(t, err)
	assert.Nil(t, result.Best)

	for _, e := range result.Experiments {
		assert.True(t, e.Excluded)
		assert.NotEmpty(t, e.Labels["error"])
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	f := benchmark.Himmelblau()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	runner := func(ctx context.Context, a domain.Assignment) (map[string]float64, error) {
		calls++
		if calls == 3 {
			cancel()

			return nil, ctx.Err()
		}

		return f.Evaluate(ctx, a)
	}

	result, err := Run(ctx, f.Domain(), runner, smallConfig())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Len(t, result.Experiments, 2)
}

func TestRunValidatesConfig(t *testing.T) {
	f := benchmark.Himmelblau()

	config := smallConfig()
	config.BatchSize = 0

	_, err := Run(context.Background(), f.Domain(), f.Evaluate, config)
	assert.Error(t, err)

	_, err = Run(context.Background(), f.Domain(), nil, smallConfig())
	assert.Error(t, err)

	_, err = Run(context.Background(), nil, f.Evaluate, smallConfig())
	assert.Error(t, err)

	config = smallConfig()
	config.Strategy = "simplex"

	_, err = Run(context.Background(), f.Domain(), f.Evaluate, config)
	assert.ErrorIs(t, err, strategy.ErrConfiguration)

	config = smallConfig()
	config.Options = map[string]any{"acquisition": "kg"}

	_, err = Run(context.Background(), f.Domain(), f.Evaluate, config)
	assert.ErrorIs(t, err, strategy.ErrConfiguration)
}
