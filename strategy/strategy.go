// Package strategy defines the contract every experiment-proposal policy
// satisfies and ships five implementations of it.
//
// A Strategy moves through Uninitialized → Configured → Fitted → Proposing:
// Configure binds a domain and a validated option record, Tell ingests
// observed experiments (deduplicated by identity), and Ask returns a batch of
// feasible candidates. Callers are written against Strategy only; concrete
// variants are obtained from the registry by name:
//
//	s, err := strategy.New(strategy.Bayesian, logger)
//	err = s.Configure(d, map[string]any{"seed": 7, "batch_size": 4})
//	err = s.Tell(ctx, history)
//	candidates, err := s.Ask(ctx, 0)
package strategy

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/thalesfsp/doe/domain"
)

// Strategy proposes experiments.
type Strategy interface {
	// Name returns the registry name.
	Name() string

	// Capabilities returns the static set of supported input and constraint
	// types.
	Capabilities() Capabilities

	// State returns the lifecycle state.
	State() State

	// Configure binds the strategy to d with the given options. Options not
	// in the variant's schema fail with *ConfigurationError, as does a
	// domain using an unsupported feature or constraint type. Configure
	// resets any history.
	Configure(d *domain.Domain, options map[string]any) error

	// Tell ingests observed experiments. Re-telling an experiment with the
	// same identity is a no-op. The slice is not retained.
	Tell(ctx context.Context, experiments []domain.Experiment) error

	// Ask returns n candidates, or batch_size when n is zero. Every batch is
	// feasible as a whole.
	Ask(ctx context.Context, n int) ([]domain.Candidate, error)

	// Experiments returns a copy of the ingested history.
	Experiments() []domain.Experiment
}

//////
// State.
//////

// State is the lifecycle state of a Strategy.
type State int

// States.
const (
	Uninitialized State = iota
	Configured
	Fitted
	Proposing
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configured:
		return "configured"
	case Fitted:
		return "fitted"
	case Proposing:
		return "proposing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

//////
// Registry.
//////

// Registry names of the built-in strategies.
const (
	Random       = "random"
	SpaceFilling = "space_filling"
	Bayesian     = "bayesian"
	Tree         = "tree"
	MixedInteger = "mixed_integer"
)

// Factory builds an unconfigured Strategy.
type Factory func(logger *zap.Logger) Strategy

var (
	_ Strategy = (*RandomStrategy)(nil)
	_ Strategy = (*SpaceFillingStrategy)(nil)
	_ Strategy = (*BayesianStrategy)(nil)
	_ Strategy = (*TreeStrategy)(nil)
	_ Strategy = (*MixedIntegerStrategy)(nil)
)

var registry = map[string]Factory{
	Random:       func(l *zap.Logger) Strategy { return NewRandom(l) },
	SpaceFilling: func(l *zap.Logger) Strategy { return NewSpaceFilling(l) },
	Bayesian:     func(l *zap.Logger) Strategy { return NewBayesian(l) },
	Tree:         func(l *zap.Logger) Strategy { return NewTree(l) },
	MixedInteger: func(l *zap.Logger) Strategy { return NewMixedInteger(l) },
}

// New returns an unconfigured strategy registered under name. A nil logger
// discards logs.
func New(name string, logger *zap.Logger) (Strategy, error) {
	f, ok := registry[name]
	if !ok {
		return nil, &ConfigurationError{Strategy: name, Reason: fmt.Sprintf("unknown strategy, want one of %v", Names())}
	}

	return f(logger), nil
}

// Names returns the registered strategy names in lexical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
