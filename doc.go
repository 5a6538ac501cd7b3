// Package doe provides sequential design of experiments: given a search
// domain of inputs, outputs and constraints, it proposes the next batch of
// experiments to run, learns from their results and proposes again.
//
// # Features
//
// The module includes the following key features:
//
//   - Domains: continuous, discrete, categorical and descriptor inputs,
//     objective outputs, and linear, nonlinear, n-choose-k and interpoint
//     constraints (package domain)
//   - Feasible Sampling: uniform candidates inside constrained regions
//     (package sampling)
//   - Strategies: random, space-filling, Gaussian process, random forest and
//     mixed-integer strategies behind one Configure/Tell/Ask contract
//     (package strategy)
//   - Multiple Acquisition Functions: Upper Confidence Bound (UCB),
//     Probability of Improvement (PI), Expected Improvement (EI), and
//     Thompson Sampling (package acquisition)
//   - Closed Loops: Run drives a strategy against a Runner until the budget
//     is spent
//   - Generic Tuning: OptimizeHyperparameters works with both integer and
//     floating-point parameters
//   - Progress Monitoring: Real-time updates on loop progress via channels
//
// # Strategies
//
// Strategies are created by name from the registry:
//
// 1. random: uniform feasible sampling, needs no data.
//
// 2. space_filling: greedy maximin designs, needs no data.
//
// 3. bayesian: Gaussian process surrogate with an acquisition function:
//
//	config := DefaultConfig()
//	config.Options = map[string]any{"acquisition": "ei", "xi": 0.01}
//
// 4. tree: random forest surrogate, for rugged or categorical responses:
//
//	config := DefaultConfig()
//	config.Strategy = strategy.Tree
//	config.Options = map[string]any{"num_trees": 100, "acquisition": "ucb", "beta": 2.0}
//
// 5. mixed_integer: enumerates discrete and categorical combinations and
// optimizes the continuous inputs of each.
//
// # Configuration
//
// The LoopConfig struct allows customization of the loop:
//
//	type LoopConfig struct {
//	    Strategy       string                // Registry name
//	    Options        map[string]any        // Strategy options
//	    InitialSamples int                   // Initial random samples
//	    Iterations     int                   // Number of Ask/Tell rounds
//	    BatchSize      int                   // Candidates per round
//	    Seed           int64                 // Reproducibility
//	    ProgressChan   chan<- ProgressUpdate // For progress monitoring
//	    Logger         *zap.Logger
//	}
//
// Recommended settings:
//   - Iterations: 20-200 (more = better results but longer runtime)
//   - InitialSamples: 5-20 (more = better initial model)
//   - num_candidates option: 64-1024 (more = better search but slower iterations)
//
// # Thread Safety
//
// Strategies are not safe for concurrent use; one loop owns one strategy.
// Separate loops can run concurrently.
package doe
