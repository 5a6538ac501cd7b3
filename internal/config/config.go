// Package config loads the command-line configuration: built-in defaults,
// then an optional YAML file, then DOE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "DOE_"

// Config is the full command-line configuration.
type Config struct {
	Log  LogConfig  `koanf:"log"`
	Loop LoopConfig `koanf:"loop"`

	// Options are passed verbatim to the strategy's Configure.
	Options map[string]any `koanf:"options"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// LoopConfig sizes the design loop and names its strategy.
type LoopConfig struct {
	Strategy       string `koanf:"strategy" validate:"required"`
	InitialSamples int    `koanf:"initial_samples" validate:"gte=0"`
	Iterations     int    `koanf:"iterations" validate:"gte=0"`
	BatchSize      int    `koanf:"batch_size" validate:"gte=1"`
	Seed           int64  `koanf:"seed"`
}

// defaults returns the default configuration values.
// These are loaded first and can be overridden by the YAML file and env vars.
func defaults() map[string]any {
	return map[string]any{
		"log.level":  "info",
		"log.format": "console",

		"loop.strategy":        "bayesian",
		"loop.initial_samples": 10,
		"loop.iterations":      30,
		"loop.batch_size":      1,
		"loop.seed":            int64(0),
	}
}

var validate = func() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")

		return name
	})

	return v
}()

// Load reads configuration using a 3-layer hierarchy (highest precedence last):
//
//  1. Built-in defaults
//  2. The YAML file at path, skipped when path is empty
//  3. Environment variables (DOE_ prefix)
//
// Environment variables are matched against the loaded keys so that
// underscores inside a key survive:
//
//	DOE_LOOP_BATCH_SIZE  -> loop.batch_size
//	DOE_LOG_LEVEL        -> log.level
//	DOE_OPTIONS_BETA     -> options.beta
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Defaults.
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Layer 2: Config file.
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	// Layer 3: Environment variables with DOE_ prefix.
	envLookup := buildEnvLookup(k.Keys())

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

			if koanfKey, ok := envLookup[key]; ok {
				return koanfKey, value
			}

			// Unknown strategy options keep their underscores.
			if rest, ok := strings.CutPrefix(key, "options_"); ok {
				return "options." + rest, value
			}

			return strings.ReplaceAll(key, "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks all configuration values and returns aggregated errors.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}

	errs := make([]error, 0, len(fields))

	for _, f := range fields {
		key := strings.TrimPrefix(f.Namespace(), "Config.")
		errs = append(errs, fmt.Errorf("%s failed %q constraint %s, got %v", key, f.Tag(), f.Param(), f.Value()))
	}

	return errors.Join(errs...)
}

// buildEnvLookup creates a reverse mapping from env-style keys to koanf dotted keys.
func buildEnvLookup(keys []string) map[string]string {
	lookup := make(map[string]string, len(keys))
	for _, key := range keys {
		lookup[strings.ReplaceAll(key, ".", "_")] = key
	}

	return lookup
}
