// Package acquisition provides the criteria model-backed strategies maximize
// to pick the next experiments.
//
// Every function follows a maximize convention: the prediction passed in is
// already oriented so that larger is better, and a larger acquisition value
// marks a more promising point.
package acquisition

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

//////
// Const, vars, types.
//////

// Func scores a point from its predicted mean and variance.
//
// Implementation notes for custom acquisition functions:
// - Should handle edge cases (zero variance, extreme means)
// - Must be safe for concurrent use when Params.RandomState is nil
// - Should return higher values for more promising points.
type Func func(mean, variance float64, params Params) float64

// Params holds the parameters used by the acquisition functions to balance
// exploring new areas and exploiting known good ones.
type Params struct {
	// Beta controls the exploration-exploitation trade-off of UCB.
	// - Higher values (e.g., 3.0 or 5.0) encourage more exploration
	// - Lower values (e.g., 0.1 or 0.5) focus on exploiting known good areas.
	Beta float64

	// Xi (ξ) is the minimum improvement PI and EI look for.
	Xi float64

	// BestSoFar is the best (largest) score observed so far.
	BestSoFar float64

	// RandomState is the generator Thompson sampling draws from. It is not
	// safe for concurrent use, callers give each goroutine its own.
	RandomState *rand.Rand
}

// Names of the built-in acquisition functions.
const (
	UCBName      = "ucb"
	PIName       = "pi"
	EIName       = "ei"
	ThompsonName = "ts"
)

var registry = map[string]Func{
	UCBName:      UCB,
	PIName:       ProbabilityOfImprovement,
	EIName:       ExpectedImprovement,
	ThompsonName: ThompsonSampling,
}

//////
// Available acquisition functions.
//////

// UCB implements the Upper Confidence Bound acquisition function.
//
// How it works:
// - Adds Beta standard deviations to the predicted mean
// - The Beta parameter controls the trade-off between exploration and exploitation
//
// When to use:
// - General purpose, works well in most cases
// - When you want direct control over exploration-exploitation trade-off.
func UCB(mean, variance float64, params Params) float64 {
	return mean + params.Beta*math.Sqrt(math.Max(0, variance))
}

// ProbabilityOfImprovement (PI) calculates the probability that a point will
// improve upon the current best observed value by at least Xi.
//
// When to use:
// - When you want to be conservative in exploring new points
// - When being "probably better" matters more than "how much better".
func ProbabilityOfImprovement(mean, variance float64, params Params) float64 {
	gain := mean - params.BestSoFar - params.Xi

	sigma := math.Sqrt(math.Max(0, variance))
	if sigma == 0 {
		if gain > 0 {
			return 1
		}

		return 0
	}

	return distuv.UnitNormal.CDF(gain / sigma)
}

// ExpectedImprovement (EI) calculates the expected value of the improvement
// over the current best value.
//
// How it works:
// - Combines the probability of improvement with the magnitude of improvement
// - Often provides better exploration than PI.
func ExpectedImprovement(mean, variance float64, params Params) float64 {
	gain := mean - params.BestSoFar - params.Xi

	sigma := math.Sqrt(math.Max(0, variance))
	if sigma == 0 {
		return math.Max(0, gain)
	}

	z := gain / sigma

	return gain*distuv.UnitNormal.CDF(z) + sigma*distuv.UnitNormal.Prob(z)
}

// ThompsonSampling draws one sample from the predictive distribution.
//
// Warning:
// - Params.RandomState must be set
// - Don't share RandomState between goroutines.
func ThompsonSampling(mean, variance float64, params Params) float64 {
	return mean + math.Sqrt(math.Max(0, variance))*params.RandomState.NormFloat64()
}

//////
// Registry.
//////

// Lookup returns the acquisition function registered under name.
func Lookup(name string) (Func, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown acquisition function %q, want one of %v", name, Names())
	}

	return f, nil
}

// Names returns the registered names in lexical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// NeedsRandomState reports whether the named function draws random numbers.
func NeedsRandomState(name string) bool {
	return name == ThompsonName
}
