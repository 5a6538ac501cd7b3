package doe

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/exp/constraints"

	"github.com/thalesfsp/doe/domain"
)

// Phases reported in ProgressUpdate.Phase.
const (
	PhaseInitialSampling = "InitialSampling"
	PhaseOptimization    = "Optimization"
)

// MaxDiscreteLevels is the widest integer ParameterRange represented as a
// discrete input; wider ranges become continuous inputs rounded on use.
const MaxDiscreteLevels = 100

// ProgressUpdate represents the current state of the optimization loop. One
// update is sent after every evaluation.
type ProgressUpdate struct {
	// Phase is PhaseInitialSampling or PhaseOptimization.
	Phase string

	// CurrentIteration counts the evaluations of the current phase, from 1.
	CurrentIteration int

	// TotalIterations is the number of evaluations planned for the phase.
	TotalIterations int

	// CurrentInputs holds the inputs just evaluated.
	CurrentInputs domain.Assignment

	// CurrentOutputs holds the observed outputs, nil when the run failed.
	CurrentOutputs map[string]float64

	// Err is the runner error of a failed evaluation.
	Err error

	// CurrentBestInputs holds the best inputs found so far, nil before the
	// first successful evaluation.
	CurrentBestInputs domain.Assignment

	// CurrentBestScore is the scalarized objective of CurrentBestInputs
	// (larger is better).
	CurrentBestScore float64
}

// ParameterRange defines the valid range for a hyperparameter in the optimization process.
// Each hyperparameter must have a minimum and maximum value to define its search space.
//
// Type Parameter:
//   - T: The numeric type for this parameter range (int64 or float64)
//
// Fields:
// - Min: The minimum (inclusive) value for this hyperparameter
// - Max: The maximum (inclusive) value for this hyperparameter
//
// Usage:
//
//	// Example 1: Buffer size range from 1KB to 1MB
//	bufferSizeRange := ParameterRange[int64]{
//	    Min: 1024,      // 1KB
//	    Max: 1048576,   // 1MB
//	}
//
//	// Example 2: Learning rate range from 0.0001 to 0.1
//	learningRateRange := ParameterRange[float64]{
//	    Min: 0.0001,
//	    Max: 0.1,
//	}
//
// Mapping to domain inputs:
// - Float ranges become continuous inputs
// - Integer ranges of at most MaxDiscreteLevels values become discrete inputs
// - Wider integer ranges become continuous inputs, rounded before every call
//
// Validation:
// - Min must be less than or equal to Max
// - The range is inclusive of both Min and Max values.
type ParameterRange[T constraints.Integer | constraints.Float] struct {
	// Min defines the minimum allowed value (inclusive) for this hyperparameter.
	Min T

	// Max defines the maximum allowed value (inclusive) for this hyperparameter.
	Max T
}

// Feature returns the domain input representing the range under key.
func (r ParameterRange[T]) Feature(key string) (domain.Feature, error) {
	if r.Min > r.Max {
		return nil, fmt.Errorf("parameter %s: min %v is greater than max %v", key, r.Min, r.Max)
	}

	if !isInteger[T]() || float64(r.Max)-float64(r.Min) >= MaxDiscreteLevels {
		return domain.NewContinuous(key, float64(r.Min), float64(r.Max))
	}

	values := make([]float64, 0, int(r.Max-r.Min)+1)
	for v := r.Min; ; v++ {
		values = append(values, float64(v))

		if v == r.Max {
			break
		}
	}

	return domain.NewDiscrete(key, values)
}

// value converts an input value back to T, rounding for integer types.
func (r ParameterRange[T]) value(x float64) T {
	if isInteger[T]() {
		x = math.Round(x)
	}

	return T(math.Min(float64(r.Max), math.Max(float64(r.Min), x)))
}

func isInteger[T constraints.Integer | constraints.Float]() bool {
	var zero T

	switch any(zero).(type) {
	case float32, float64:
		return false
	default:
		return true
	}
}

// BenchmarkFunc defines the signature for functions that will be optimized.
// This function type represents the task whose parameters you want to optimize.
//
// Type Parameter:
//   - T: The numeric type for parameters (int64 or float64)
//
// Parameters:
//   - params: Variable number of numeric parameters representing the hyperparameters
//     to be optimized. The number of parameters matches the number of
//     ParameterRange values provided to OptimizeHyperparameters.
//
// Returns:
// - error: Return nil if the benchmark succeeded, or an error if it failed
//
// Usage example:
//
//	intBenchmark := BenchmarkFunc[int64](func(params ...int64) error {
//	    bufferSize := params[0]    // First parameter
//	    workerCount := params[1]   // Second parameter
//
//	    _, err := runYourWorkload(bufferSize, workerCount)
//
//	    return err
//	})
type BenchmarkFunc[T constraints.Integer | constraints.Float] func(params ...T) error

// Runner runs one experiment and returns its observed outputs.
//
// Important notes:
//   - A returned error marks the experiment as excluded: it stays in the
//     history but is not used to fit models
//   - Runners are called sequentially, never concurrently.
type Runner func(ctx context.Context, inputs domain.Assignment) (map[string]float64, error)

// LoopConfig holds all configuration parameters of the closed optimization
// loop driven by Run.
//
// Fields explanation:
// - Strategy: registry name of the strategy used after the initial phase
// - Options: options passed to that strategy's Configure
// - InitialSamples: number of random experiments run before optimizing
// - Iterations: number of Ask/evaluate/Tell rounds after the initial phase
// - BatchSize: candidates asked for per iteration
// - Seed: seeds both the initial sampler and the strategy (unless Options sets "seed")
// - ProgressChan: receives one update per evaluation; updates are dropped when full
// - Logger: structured logger, nil discards
//
// Usage example:
//
//	config := DefaultConfig()
//	config.Strategy = strategy.Tree
//	config.Options = map[string]any{"acquisition": "ei", "num_trees": 100}
//	config.Iterations = 30
//
// Performance impact notes:
// - Total evaluations = InitialSamples + Iterations × BatchSize
// - Higher num_candidates in Options = better per-iteration results but slower iterations.
type LoopConfig struct {
	Strategy       string
	Options        map[string]any
	InitialSamples int
	Iterations     int
	BatchSize      int
	Seed           int64
	ProgressChan   chan<- ProgressUpdate
	Logger         *zap.Logger
}

// Result is the outcome of Run.
type Result struct {
	// Experiments is every evaluation in order, failed ones included.
	Experiments []domain.Experiment

	// Best is the best successful experiment, nil when none succeeded.
	Best *domain.Experiment

	// BestScore is the scalarized objective of Best.
	BestScore float64
}
