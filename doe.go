package doe

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/constraints"

	"github.com/thalesfsp/doe/domain"
	"github.com/thalesfsp/doe/strategy"
)

// DurationOutput is the output minimized by OptimizeHyperparameters, in
// nanoseconds.
const DurationOutput = "duration_ns"

// ErrNoSuccessfulRun is returned by OptimizeHyperparameters when every
// evaluation failed.
var ErrNoSuccessfulRun = errors.New("no successful evaluation")

//////
// Exported functionalities.
//////

// DefaultConfig returns a default configuration.
func DefaultConfig() LoopConfig {
	return LoopConfig{
		Strategy:       strategy.Bayesian,
		InitialSamples: 10,
		Iterations:     50,
		BatchSize:      1,
		Seed:           time.Now().UnixNano(),
		ProgressChan:   nil, // Default to no progress updates.
	}
}

// Run drives a closed design loop over d: it evaluates InitialSamples random
// experiments, then repeatedly asks the configured strategy for a batch,
// evaluates it with runner and tells the strategy the results.
//
// Parameters:
// - ctx: Cancels the loop; the result gathered so far is returned with ctx's error
// - d: The design domain
// - runner: Runs one experiment and returns its outputs
// - config: LoopConfig controlling the loop
//
// Returns:
// - *Result: Every experiment plus the best one, also on error
// - error: Configuration errors, strategy errors or ctx's error
//
// Usage example:
//
//	f := benchmark.Himmelblau()
//
//	config := DefaultConfig()
//	config.Options = map[string]any{"acquisition": "ei"}
//
//	result, err := Run(ctx, f.Domain(), f.Evaluate, config)
//	if err != nil {
//	    return err
//	}
//
//	fmt.Println(result.Best.Inputs, result.BestScore)
//
// How it works:
// 1. Asks a random strategy for InitialSamples candidates and evaluates them
// 2. For each iteration:
//   - Tells the strategy the experiments evaluated since the last Tell
//   - Asks it for BatchSize candidates, falling back to random candidates
//     while the strategy has no usable data
//   - Evaluates every candidate
//
// 3. Returns every experiment and the best one
//
// Important notes:
// - Failed evaluations are kept as excluded experiments labelled "error"
// - Outputs the domain does not declare fail the evaluation the same way
// - Progress updates are dropped when ProgressChan is full
// - Deterministic for a fixed Seed and a deterministic runner.
func Run(ctx context.Context, d *domain.Domain, runner Runner, config LoopConfig) (*Result, error) {
	if d == nil {
		return nil, errors.New("doe: nil domain")
	}

	if runner == nil {
		return nil, errors.New("doe: nil runner")
	}

	if config.InitialSamples < 0 || config.Iterations < 0 || config.BatchSize < 1 {
		return nil, fmt.Errorf(
			"doe: invalid loop sizes: initial samples %d, iterations %d, batch size %d",
			config.InitialSamples, config.Iterations, config.BatchSize,
		)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Offset so a random main strategy does not replay the initial design.
	initial := strategy.NewRandom(logger)
	if err := initial.Configure(d, map[string]any{"seed": config.Seed + 1, "best_effort": true}); err != nil {
		return nil, err
	}

	proposer, err := strategy.New(config.Strategy, logger)
	if err != nil {
		return nil, err
	}

	options := maps.Clone(config.Options)
	if options == nil {
		options = map[string]any{}
	}

	if _, ok := options["seed"]; !ok {
		options["seed"] = config.Seed
	}

	if err := proposer.Configure(d, options); err != nil {
		return nil, err
	}

	l := &loop{
		domain: d,
		runner: runner,
		config: config,
		logger: logger.With(zap.String("strategy", proposer.Name())),
		result: &Result{},
	}

	// Phase 1: initial random sampling.
	if config.InitialSamples > 0 {
		candidates, err := initial.Ask(ctx, config.InitialSamples)
		if err != nil {
			return l.result, err
		}

		for i, c := range candidates {
			if err := l.evaluate(ctx, PhaseInitialSampling, i+1, config.InitialSamples, c.Inputs); err != nil {
				return l.result, err
			}
		}
	}

	// Phase 2: optimization loop.
	total := config.Iterations * config.BatchSize
	told := 0
	done := 0

	for iter := 0; iter < config.Iterations; iter++ {
		if err := proposer.Tell(ctx, l.result.Experiments[told:]); err != nil {
			return l.result, err
		}

		told = len(l.result.Experiments)

		candidates, err := proposer.Ask(ctx, config.BatchSize)
		if errors.Is(err, strategy.ErrNotReady) {
			l.logger.Debug("strategy not ready, sampling at random", zap.Int("iteration", iter+1))

			candidates, err = initial.Ask(ctx, config.BatchSize)
		}

		if err != nil {
			return l.result, err
		}

		for _, c := range candidates {
			done++

			if err := l.evaluate(ctx, PhaseOptimization, done, total, c.Inputs); err != nil {
				return l.result, err
			}
		}
	}

	l.logger.Info("design loop finished",
		zap.Int("experiments", len(l.result.Experiments)),
		zap.Float64("best_score", l.result.BestScore),
	)

	return l.result, nil
}

// OptimizeHyperparameters uses sequential design to find the optimal
// hyperparameters for your benchmark function: it minimizes the function's
// execution time over the given ranges.
//
// Type Parameter:
//   - T: The numeric type for parameters (int64 or float64)
//
// Parameters:
// - ctx: Cancels the optimization
// - config: LoopConfig controlling the optimization process
// - benchmarkFunc: The function whose parameters you want to optimize
// - hypers: One or more ParameterRange defining the search space
//
// Returns:
// - []T: The best parameters found (in same order as hypers)
// - error: Invalid ranges, loop errors, or ErrNoSuccessfulRun
//
// Usage example:
//
//	// Integer optimization example
//	ranges := []ParameterRange[int64]{
//	    {Min: 1024, Max: 1048576},  // Buffer size (1KB to 1MB)
//	    {Min: 1, Max: 32},          // Worker count
//	}
//
//	intBenchmark := BenchmarkFunc[int64](func(params ...int64) error {
//	    bufferSize := params[0]
//	    workerCount := params[1]
//	    return runWorkload(bufferSize, workerCount)
//	})
//
//	bestIntParams, err := OptimizeHyperparameters(
//	    ctx,
//	    DefaultConfig(),
//	    intBenchmark,
//	    ranges...,
//	)
//
// Important notes:
// - Parameters are exposed to the domain as "p0", "p1", ... in order
// - A failing call is an excluded experiment, never a penalty value
// - Total runtime = InitialSamples + Iterations × BatchSize evaluations.
func OptimizeHyperparameters[T constraints.Integer | constraints.Float](
	ctx context.Context,
	config LoopConfig,
	benchmarkFunc BenchmarkFunc[T],
	hypers ...ParameterRange[T],
) ([]T, error) {
	if len(hypers) == 0 {
		return nil, errors.New("doe: at least one parameter range is required")
	}

	features := make([]domain.Feature, len(hypers))

	for i, h := range hypers {
		f, err := h.Feature(paramKey(i))
		if err != nil {
			return nil, err
		}

		features[i] = f
	}

	out, err := domain.NewContinuousOutput(DurationOutput, domain.Minimize())
	if err != nil {
		return nil, err
	}

	d, err := domain.New(features, []*domain.Output{out}, nil)
	if err != nil {
		return nil, err
	}

	runner := func(_ context.Context, a domain.Assignment) (map[string]float64, error) {
		ns, err := measureExecutionTime(benchmarkFunc, paramsOf(a, hypers))
		if err != nil {
			return nil, err
		}

		return map[string]float64{DurationOutput: ns}, nil
	}

	result, err := Run(ctx, d, runner, config)
	if err != nil {
		return nil, err
	}

	if result.Best == nil {
		return nil, ErrNoSuccessfulRun
	}

	return paramsOf(result.Best.Inputs, hypers), nil
}

//////
// Loop internals.
//////

type loop struct {
	domain *domain.Domain
	runner Runner
	config LoopConfig
	logger *zap.Logger
	result *Result
}

// evaluate runs one experiment, records it and reports progress. Only ctx's
// error stops the loop; runner failures are recorded.
func (l *loop) evaluate(ctx context.Context, phase string, iteration, total int, inputs domain.Assignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	outputs, err := l.runner(ctx, inputs)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	e := domain.Experiment{Inputs: inputs.Clone(), Outputs: outputs}

	if err == nil {
		err = l.domain.ValidateExperiment(e)
	}

	if err != nil {
		l.logger.Warn("evaluation failed",
			zap.String("phase", phase),
			zap.Int("iteration", iteration),
			zap.Error(err),
		)

		e.Outputs = nil
		e.Excluded = true
		e.Labels = map[string]string{"error": err.Error()}
	} else if score, ok := l.domain.Score(outputs); ok && (l.result.Best == nil || score > l.result.BestScore) {
		best := e
		l.result.Best = &best
		l.result.BestScore = score

		l.logger.Debug("new best",
			zap.String("phase", phase),
			zap.Int("iteration", iteration),
			zap.Float64("score", score),
		)
	}

	l.result.Experiments = append(l.result.Experiments, e)

	l.sendProgress(ProgressUpdate{
		Phase:            phase,
		CurrentIteration: iteration,
		TotalIterations:  total,
		CurrentInputs:    e.Inputs,
		CurrentOutputs:   e.Outputs,
		Err:              err,
	})

	return nil
}

// sendProgress sends a progress update without blocking the loop.
func (l *loop) sendProgress(update ProgressUpdate) {
	if l.config.ProgressChan == nil {
		return
	}

	if l.result.Best != nil {
		update.CurrentBestInputs = l.result.Best.Inputs
		update.CurrentBestScore = l.result.BestScore
	}

	select {
	case l.config.ProgressChan <- update:
	default:
		// Skip update if channel is full.
	}
}

func paramKey(i int) string {
	return "p" + strconv.Itoa(i)
}

func paramsOf[T constraints.Integer | constraints.Float](a domain.Assignment, hypers []ParameterRange[T]) []T {
	params := make([]T, len(hypers))
	for i, h := range hypers {
		params[i] = h.value(a.Float(paramKey(i)))
	}

	return params
}

// measureExecutionTime runs a benchmark function with the given parameters and
// measures its execution time in nanoseconds.
//
// Returns:
// - float64: Execution time in nanoseconds
// - error: Error from benchmark function if it failed, nil otherwise
//
// Important notes:
// - Time measurement includes only the execution of f, not parameter preparation
// - A failure carries no time; the loop records it as an excluded experiment.
func measureExecutionTime[T constraints.Integer | constraints.Float](f BenchmarkFunc[T], params []T) (float64, error) {
	start := time.Now()

	if err := f(params...); err != nil {
		return 0, err
	}

	return float64(time.Since(start).Nanoseconds()), nil
}
