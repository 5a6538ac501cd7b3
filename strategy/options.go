package strategy

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"

	"github.com/thalesfsp/doe/domain"
	"github.com/thalesfsp/doe/sampling"
)

// validate is shared by every option schema. Field names are reported by
// their koanf key.
var validate = func() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" {
			return f.Name
		}

		return name
	})

	return v
}()

// CommonOptions are recognized by every strategy.
type CommonOptions struct {
	// BatchSize is the number of candidates Ask returns when asked for zero.
	BatchSize int `koanf:"batch_size" validate:"gte=1"`

	// Seed initializes the strategy's private random generator.
	Seed int64 `koanf:"seed"`

	// Tolerance is the absolute feasibility tolerance.
	Tolerance float64 `koanf:"tolerance" validate:"gt=0"`

	// MaxRetries is the sampler's attempt budget per point.
	MaxRetries int `koanf:"max_retries" validate:"gte=1"`

	// TimeBudget bounds one Ask; zero means no bound.
	TimeBudget time.Duration `koanf:"time_budget" validate:"gte=0"`

	// BestEffort turns a short batch into a success instead of an error.
	BestEffort bool `koanf:"best_effort"`

	// AllowRepeats lets a batch contain identical candidates, and lets
	// model-backed strategies propose points already in the history.
	AllowRepeats bool `koanf:"allow_repeats"`
}

func commonDefaults() map[string]any {
	return map[string]any{
		"batch_size":    1,
		"seed":          int64(0),
		"tolerance":     domain.DefaultTolerance,
		"max_retries":   sampling.DefaultMaxRetries,
		"time_budget":   time.Duration(0),
		"best_effort":   false,
		"allow_repeats": false,
	}
}

// ModelOptions are shared by the model-backed strategies.
type ModelOptions struct {
	// Acquisition is the registry name of the acquisition function.
	Acquisition string `koanf:"acquisition" validate:"oneof=ei pi ucb ts"`

	// Beta is the UCB exploration weight.
	Beta float64 `koanf:"beta" validate:"gte=0"`

	// Xi is the minimum improvement PI and EI look for.
	Xi float64 `koanf:"xi" validate:"gte=0"`

	// NumCandidates is the size of the pool the optimizer scores.
	NumCandidates int `koanf:"num_candidates" validate:"gte=1"`

	// NumRestarts is the number of local searches started from the pool.
	NumRestarts int `koanf:"num_restarts" validate:"gte=1"`

	// LocalSteps bounds every local search.
	LocalSteps int `koanf:"local_steps" validate:"gte=0"`
}

func modelDefaults() map[string]any {
	return map[string]any{
		"acquisition":    "ucb",
		"beta":           2.0,
		"xi":             0.01,
		"num_candidates": 256,
		"num_restarts":   4,
		"local_steps":    20,
	}
}

// ForestOptions configure the random forest surrogate.
type ForestOptions struct {
	NumTrees    int     `koanf:"num_trees" validate:"gte=1"`
	MaxDepth    int     `koanf:"max_depth" validate:"gte=1"`
	MinLeaf     int     `koanf:"min_leaf" validate:"gte=1"`
	MaxFeatures float64 `koanf:"max_features" validate:"gt=0,lte=1"`
}

func forestDefaults() map[string]any {
	return map[string]any{
		"num_trees":    50,
		"max_depth":    8,
		"min_leaf":     1,
		"max_features": 1.0,
	}
}

func merge(maps ...map[string]any) map[string]any {
	out := map[string]any{}

	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}

	return out
}

// decode layers options over defaults with koanf, unmarshals the result into
// out and validates it. The keys of defaults form the schema: any other key
// is rejected.
func decode(name string, defaults, options map[string]any, out any) error {
	unknown := make([]string, 0)

	for k := range options {
		if _, ok := defaults[k]; !ok {
			unknown = append(unknown, k)
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)

		return &ConfigurationError{Strategy: name, Option: unknown[0], Reason: "unknown option"}
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return &ConfigurationError{Strategy: name, Reason: fmt.Sprintf("loading defaults: %v", err)}
	}

	if len(options) > 0 {
		if err := k.Load(confmap.Provider(options, "."), nil); err != nil {
			return &ConfigurationError{Strategy: name, Reason: fmt.Sprintf("loading options: %v", err)}
		}
	}

	if err := k.Unmarshal("", out); err != nil {
		return &ConfigurationError{Strategy: name, Reason: err.Error()}
	}

	if err := validate.Struct(out); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			f := fields[0]

			return &ConfigurationError{
				Strategy: name,
				Option:   f.Field(),
				Reason:   fmt.Sprintf("failed %q constraint %s, got %v", f.Tag(), f.Param(), f.Value()),
			}
		}

		return &ConfigurationError{Strategy: name, Reason: err.Error()}
	}

	return nil
}
