package strategy_test

import (
	"context"
	"fmt"

	"github.com/thalesfsp/doe/domain"
	"github.com/thalesfsp/doe/strategy"
)

func ExampleNew() {
	d := domain.MustNew(
		[]domain.Feature{
			domain.MustContinuous("temperature", 20, 80),
			domain.MustCategorical("solvent", "water", "ethanol"),
		},
		[]*domain.Output{domain.MustContinuousOutput("yield", domain.Maximize())},
		nil,
	)

	s, err := strategy.New(strategy.SpaceFilling, nil)
	if err != nil {
		panic(err)
	}

	if err := s.Configure(d, map[string]any{"seed": 3, "batch_size": 4}); err != nil {
		panic(err)
	}

	candidates, err := s.Ask(context.Background(), 0)
	if err != nil {
		panic(err)
	}

	for _, c := range candidates {
		fmt.Println(d.IsFeasible(c.Inputs))
	}

	fmt.Println(s.State())
	// Output:
	// true
	// true
	// true
	// true
	// proposing
}
