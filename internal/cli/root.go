// Package cli implements the doe command line.
package cli

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thalesfsp/doe/domain"
	"github.com/thalesfsp/doe/internal/config"
	"github.com/thalesfsp/doe/internal/logging"
)

// Version is set at build time.
var Version = "0.1.0"

// app carries what every command shares once the root pre-run has loaded
// the configuration.
type app struct {
	configPath string
	strategy   string
	seed       int64
	batchSize  int

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd returns the doe command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "doe",
		Short: "Sequential design of experiments",
		Long: `doe proposes the next experiments to run for a design domain.

Commands:
  validate    - Check a domain file and, optionally, an experiments table
  sample      - Draw feasible random points
  ask         - Propose candidates from past experiments
  benchmark   - Run a closed loop against a test function
  strategies  - List the available strategies

Example:
  doe validate domain.yaml --experiments runs.csv
  doe ask domain.yaml --experiments runs.csv --strategy tree -n 4
  DOE_LOOP_ITERATIONS=20 doe benchmark branin`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML config file (DOE_* env vars override it)")
	flags.StringVar(&a.strategy, "strategy", "", "Strategy name, overrides loop.strategy")
	flags.Int64Var(&a.seed, "seed", 0, "Random seed, overrides loop.seed")
	flags.IntVarP(&a.batchSize, "batch-size", "n", 0, "Candidates per batch, overrides loop.batch_size")

	root.AddCommand(
		a.validateCmd(),
		a.sampleCmd(),
		a.askCmd(),
		a.benchmarkCmd(),
		a.strategiesCmd(),
	)

	return root
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()

	if flags.Changed("strategy") {
		cfg.Loop.Strategy = a.strategy
	}

	if flags.Changed("seed") {
		cfg.Loop.Seed = a.seed
	}

	if flags.Changed("batch-size") {
		cfg.Loop.BatchSize = a.batchSize
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger.With(zap.String("command", cmd.Name()))

	return nil
}

// strategyOptions returns the configured options with the loop seed filled
// in unless the options set one.
func (a *app) strategyOptions() map[string]any {
	options := maps.Clone(a.cfg.Options)
	if options == nil {
		options = map[string]any{}
	}

	if _, ok := options["seed"]; !ok {
		options["seed"] = a.cfg.Loop.Seed
	}

	return options
}

// loadDomain reads a domain schema, YAML for .yaml/.yml files and JSON
// otherwise.
func loadDomain(path string) (*domain.Domain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading domain: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return domain.ParseYAML(data)
	default:
		return domain.ParseJSON(data)
	}
}

func loadExperiments(path string, d *domain.Domain) ([]domain.Experiment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiments: %w", err)
	}
	defer f.Close()

	return domain.ReadExperiments(f, d)
}
