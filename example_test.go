package doe_test

import (
	"context"
	"fmt"

	"github.com/thalesfsp/doe"
	"github.com/thalesfsp/doe/benchmark"
	"github.com/thalesfsp/doe/strategy"
)

func ExampleRun() {
	f := benchmark.Branin()

	config := doe.DefaultConfig()
	config.Seed = 1
	config.InitialSamples = 5
	config.Iterations = 5
	config.Strategy = strategy.Tree
	config.Options = map[string]any{"num_trees": 20, "acquisition": "ei"}

	result, err := doe.Run(context.Background(), f.Domain(), f.Evaluate, config)
	if err != nil {
		fmt.Println(err)

		return
	}

	fmt.Println(len(result.Experiments), result.Best != nil)
	// Output: 10 true
}

func ExampleOptimizeHyperparameters() {
	config := doe.DefaultConfig()
	config.InitialSamples = 4
	config.Iterations = 4

	best, err := doe.OptimizeHyperparameters(
		context.Background(),
		config,
		func(params ...int) error {
			buffer := make([]byte, 0, params[0])
			for i := 0; i < 1000*params[1]; i++ {
				buffer = append(buffer[:0], byte(i))
			}

			return nil
		},
		doe.ParameterRange[int]{Min: 1, Max: 64}, // Buffer size.
		doe.ParameterRange[int]{Min: 1, Max: 8},  // Rounds.
	)
	if err != nil {
		fmt.Println(err)

		return
	}

	fmt.Println(len(best))
	// Output: 2
}
