// Package benchmark provides closed-form test functions with known optima,
// each bundled with its domain, for exercising strategies end to end.
package benchmark

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/thalesfsp/doe/domain"
)

// OutputKey is the single output of every benchmark.
const OutputKey = "y"

// Function is a test problem.
type Function interface {
	// Name returns the registry name.
	Name() string

	// Domain returns the search space; the output is minimized.
	Domain() *domain.Domain

	// Evaluate computes the output at a.
	Evaluate(ctx context.Context, a domain.Assignment) (map[string]float64, error)

	// Optimum is the global minimum of the output.
	Optimum() float64
}

type function struct {
	name    string
	domain  *domain.Domain
	f       func(x, y float64) float64
	optimum float64
}

func (b *function) Name() string           { return b.name }
func (b *function) Domain() *domain.Domain { return b.domain }
func (b *function) Optimum() float64       { return b.optimum }

func (b *function) Evaluate(ctx context.Context, a domain.Assignment) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x, y := a.Float("x1"), a.Float("x2")
	if math.IsNaN(x) || math.IsNaN(y) {
		return nil, fmt.Errorf("%s: inputs x1 and x2 must be numbers", b.name)
	}

	return map[string]float64{OutputKey: b.f(x, y)}, nil
}

func newFunction(name string, lo1, hi1, lo2, hi2 float64, f func(x, y float64) float64, optimum float64) *function {
	return &function{
		name: name,
		domain: domain.MustNew(
			[]domain.Feature{
				domain.MustContinuous("x1", lo1, hi1),
				domain.MustContinuous("x2", lo2, hi2),
			},
			[]*domain.Output{domain.MustContinuousOutput(OutputKey, domain.Minimize())},
			nil,
		),
		f:       f,
		optimum: optimum,
	}
}

// Himmelblau has four global minima of value 0, one at (3, 2), on
// [-6, 6]².
func Himmelblau() Function {
	return newFunction("himmelblau", -6, 6, -6, 6, func(x, y float64) float64 {
		a := x*x + y - 11
		b := x + y*y - 7

		return a*a + b*b
	}, 0)
}

// Branin has three global minima of value 5/(4π) on [-5, 10] × [0, 15].
func Branin() Function {
	const (
		a = 1.0
		r = 6.0
		s = 10.0
	)

	b := 5.1 / (4 * math.Pi * math.Pi)
	c := 5 / math.Pi
	t := 1 / (8 * math.Pi)

	return newFunction("branin", -5, 10, 0, 15, func(x, y float64) float64 {
		u := y - b*x*x + c*x - r

		return a*u*u + s*(1-t)*math.Cos(x) + s
	}, 5/(4*math.Pi))
}

var registry = map[string]func() Function{
	"himmelblau": Himmelblau,
	"branin":     Branin,
}

// Get returns the benchmark registered under name.
func Get(name string) (Function, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown benchmark %q, want one of %v", name, Names())
	}

	return f(), nil
}

// Names returns the registered benchmark names in lexical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
