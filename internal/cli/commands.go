package cli

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thalesfsp/doe"
	"github.com/thalesfsp/doe/benchmark"
	"github.com/thalesfsp/doe/domain"
	"github.com/thalesfsp/doe/sampling"
	"github.com/thalesfsp/doe/strategy"
)

func (a *app) validateCmd() *cobra.Command {
	var experimentsPath string

	cmd := &cobra.Command{
		Use:   "validate DOMAIN",
		Short: "Check a domain file and, optionally, an experiments table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDomain(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "domain ok: %d inputs, %d outputs, %d constraints\n",
				len(d.Inputs()), len(d.Outputs()), len(d.Constraints()))

			if experimentsPath == "" {
				return nil
			}

			experiments, err := loadExperiments(experimentsPath, d)
			if err != nil {
				return err
			}

			excluded := 0

			for _, e := range experiments {
				if e.Excluded {
					excluded++
				}
			}

			fmt.Fprintf(out, "experiments ok: %d rows, %d excluded\n", len(experiments), excluded)

			return nil
		},
	}

	cmd.Flags().StringVarP(&experimentsPath, "experiments", "e", "", "CSV table of experiments")

	return cmd
}

func (a *app) sampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample DOMAIN",
		Short: "Draw a feasible batch of random points as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDomain(args[0])
			if err != nil {
				return err
			}

			s, err := sampling.New(d, sampling.WithLogger(a.logger))
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(a.cfg.Loop.Seed))

			points, err := s.Sample(cmd.Context(), a.cfg.Loop.BatchSize, rng)
			if err != nil {
				return err
			}

			candidates := make([]domain.Candidate, len(points))
			for i, p := range points {
				candidates[i] = domain.Candidate{Inputs: p}
			}

			return domain.WriteCandidates(cmd.OutOrStdout(), d, candidates)
		},
	}
}

func (a *app) askCmd() *cobra.Command {
	var experimentsPath string

	cmd := &cobra.Command{
		Use:   "ask DOMAIN",
		Short: "Propose a batch of candidates from past experiments as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDomain(args[0])
			if err != nil {
				return err
			}

			s, err := strategy.New(a.cfg.Loop.Strategy, a.logger)
			if err != nil {
				return err
			}

			if err := s.Configure(d, a.strategyOptions()); err != nil {
				return err
			}

			if experimentsPath != "" {
				experiments, err := loadExperiments(experimentsPath, d)
				if err != nil {
					return err
				}

				if err := s.Tell(cmd.Context(), experiments); err != nil {
					return err
				}
			}

			candidates, err := s.Ask(cmd.Context(), a.cfg.Loop.BatchSize)
			if errors.Is(err, strategy.ErrNotReady) {
				return fmt.Errorf("%w; pass --experiments or use a strategy that needs no data", err)
			}

			if err != nil {
				return err
			}

			a.logger.Info("proposed candidates", zap.String("strategy", s.Name()), zap.Int("count", len(candidates)))

			return domain.WriteCandidates(cmd.OutOrStdout(), d, candidates)
		},
	}

	cmd.Flags().StringVarP(&experimentsPath, "experiments", "e", "", "CSV table of experiments")

	return cmd
}

func (a *app) benchmarkCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:       "benchmark NAME",
		Short:     "Run a closed design loop against a test function",
		Long:      "Run a closed design loop against a test function: " + strings.Join(benchmark.Names(), ", ") + ".",
		Args:      cobra.ExactArgs(1),
		ValidArgs: benchmark.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := benchmark.Get(args[0])
			if err != nil {
				return err
			}

			progress := make(chan doe.ProgressUpdate, 16)
			done := make(chan struct{})

			go func() {
				defer close(done)

				for update := range progress {
					a.logger.Debug("progress",
						zap.String("phase", update.Phase),
						zap.Int("iteration", update.CurrentIteration),
						zap.Int("total", update.TotalIterations),
						zap.Float64("best_score", update.CurrentBestScore),
					)
				}
			}()

			result, err := doe.Run(cmd.Context(), f.Domain(), f.Evaluate, doe.LoopConfig{
				Strategy:       a.cfg.Loop.Strategy,
				Options:        a.strategyOptions(),
				InitialSamples: a.cfg.Loop.InitialSamples,
				Iterations:     a.cfg.Loop.Iterations,
				BatchSize:      a.cfg.Loop.BatchSize,
				Seed:           a.cfg.Loop.Seed,
				ProgressChan:   progress,
				Logger:         a.logger,
			})

			close(progress)
			<-done

			if err != nil {
				return err
			}

			if outPath != "" {
				if err := writeExperiments(outPath, f.Domain(), result.Experiments); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "benchmark: %s\nexperiments: %d\n", f.Name(), len(result.Experiments))

			if result.Best == nil {
				fmt.Fprintln(out, "best: none")

				return nil
			}

			fmt.Fprintf(out, "best: x1=%g x2=%g\n", result.Best.Inputs.Float("x1"), result.Best.Inputs.Float("x2"))
			fmt.Fprintf(out, "%s: %g (optimum %g)\n", benchmark.OutputKey, result.Best.Outputs[benchmark.OutputKey], f.Optimum())

			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write every experiment to this CSV file")

	return cmd
}

func (a *app) strategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the available strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			fmt.Fprintln(w, "NAME\tNEEDS DATA\tCONSTRAINTS")

			for _, name := range strategy.Names() {
				s, err := strategy.New(name, a.logger)
				if err != nil {
					return err
				}

				caps := s.Capabilities()

				types := make([]string, len(caps.Constraints))
				for i, t := range caps.Constraints {
					types[i] = string(t)
				}

				fmt.Fprintf(w, "%s\t%t\t%s\n", name, caps.RequiresData, strings.Join(types, ","))
			}

			return w.Flush()
		},
	}
}

func writeExperiments(path string, d *domain.Domain, experiments []domain.Experiment) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing experiments: %w", err)
	}

	if err := domain.WriteExperiments(f, d, experiments); err != nil {
		f.Close()

		return err
	}

	return f.Close()
}
