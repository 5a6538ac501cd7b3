package strategy

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/thalesfsp/doe/domain"
	"github.com/thalesfsp/doe/optimizer"
	"github.com/thalesfsp/doe/sampling"
)

// base carries the state machine, the history and the batch loop shared by
// every variant. It is not safe for concurrent use; two strategies never
// share one.
type base struct {
	name   string
	caps   Capabilities
	logger *zap.Logger

	state   State
	domain  *domain.Domain
	sampler *sampling.Sampler
	common  CommonOptions
	rng     *rand.Rand

	history []domain.Experiment
	seen    map[string]struct{}
}

func newBase(name string, caps Capabilities, logger *zap.Logger) base {
	if logger == nil {
		logger = zap.NewNop()
	}

	return base{name: name, caps: caps, logger: logger.With(zap.String("strategy", name))}
}

// Name implements Strategy.
func (b *base) Name() string { return b.name }

// Capabilities implements Strategy.
func (b *base) Capabilities() Capabilities { return b.caps }

// State implements Strategy.
func (b *base) State() State { return b.state }

// Experiments implements Strategy.
func (b *base) Experiments() []domain.Experiment {
	out := make([]domain.Experiment, len(b.history))
	for i, e := range b.history {
		out[i] = cloneExperiment(e)
	}

	return out
}

// configure checks capabilities, decodes the options into out (whose
// embedded CommonOptions is common) and resets the strategy.
func (b *base) configure(d *domain.Domain, options, defaults map[string]any, out any, common *CommonOptions) error {
	if d == nil {
		return &ConfigurationError{Strategy: b.name, Reason: "domain is nil"}
	}

	if err := b.caps.check(b.name, d); err != nil {
		return err
	}

	if err := decode(b.name, defaults, options, out); err != nil {
		return err
	}

	sampler, err := sampling.New(d,
		sampling.WithTolerance(common.Tolerance),
		sampling.WithMaxRetries(common.MaxRetries),
		sampling.WithLogger(b.logger),
	)
	if err != nil {
		return &ConfigurationError{Strategy: b.name, Reason: err.Error()}
	}

	b.domain = d
	b.sampler = sampler
	b.common = *common
	b.rng = rand.New(rand.NewSource(common.Seed))
	b.history = nil
	b.seen = map[string]struct{}{}
	b.state = Configured

	b.logger.Debug("strategy: configured",
		zap.Int("inputs", len(d.Inputs())),
		zap.Int("constraints", len(d.Constraints())),
		zap.Int64("seed", common.Seed),
	)

	return nil
}

// abandon drops a configuration whose variant-specific part failed.
func (b *base) abandon(err error) error {
	b.state = Uninitialized
	b.domain = nil
	b.sampler = nil

	return err
}

func (b *base) opError(op string, err error) error {
	return &OpError{Strategy: b.name, Op: op, Err: err}
}

func (b *base) notReady(reason string) error {
	return &NotReadyError{Strategy: b.name, State: b.state, Reason: reason}
}

// ingest validates every experiment first, then appends the ones not seen
// before. Nothing is stored when any experiment is invalid.
func (b *base) ingest(experiments []domain.Experiment) (added int, err error) {
	if b.state == Uninitialized {
		return 0, b.opError("tell", b.notReady("Configure must be called first"))
	}

	for i, e := range experiments {
		if err := b.domain.ValidateExperiment(e); err != nil {
			return 0, b.opError("tell", fmt.Errorf("experiment %d: %w", i, err))
		}
	}

	for _, e := range experiments {
		id := e.Identity()
		if _, dup := b.seen[id]; dup {
			continue
		}

		b.seen[id] = struct{}{}
		b.history = append(b.history, cloneExperiment(e))
		added++
	}

	b.logger.Debug("strategy: told",
		zap.Int("received", len(experiments)),
		zap.Int("added", added),
		zap.Int("history", len(b.history)),
	)

	return added, nil
}

// settle moves to Fitted when usable is true, back to Configured otherwise.
func (b *base) settle(usable bool) {
	if usable {
		b.state = Fitted
	} else {
		b.state = Configured
	}
}

func (b *base) historyInputs() []domain.Assignment {
	out := make([]domain.Assignment, len(b.history))
	for i, e := range b.history {
		out[i] = e.Inputs
	}

	return out
}

// repeats reports whether a would duplicate a point of batch when repeats
// are not allowed.
func (b *base) repeats(batch []domain.Assignment, a domain.Assignment) bool {
	if b.common.AllowRepeats {
		return false
	}

	for _, p := range batch {
		if p.Equal(a) {
			return true
		}
	}

	return false
}

//////
// Batch loop.
//////

// slotFunc proposes candidate i of a batch of n given the already chosen
// points and the restrictions interpoint constraints put on the slot.
type slotFunc func(ctx context.Context, batch []domain.Assignment, i, n int, o sampling.Overrides) (domain.Candidate, error)

// propose fills a batch slot by slot within the time budget and checks the
// whole batch before releasing it.
func (b *base) propose(ctx context.Context, n int, slot slotFunc) ([]domain.Candidate, error) {
	if n == 0 {
		n = b.common.BatchSize
	}

	if n < 0 {
		return nil, b.opError("ask", fmt.Errorf("candidate count must be positive, got %d", n))
	}

	if b.common.TimeBudget > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, b.common.TimeBudget)
		defer cancel()
	}

	start := time.Now()
	batch := make([]domain.Assignment, 0, n)
	candidates := make([]domain.Candidate, 0, n)

	var failure error

	for i := 0; i < n; i++ {
		c, err := slot(ctx, batch, i, n, b.sampler.SlotOverrides(batch, i, n))
		if err != nil {
			failure = shortfall(err, n, len(candidates))

			break
		}

		batch = append(batch, c.Inputs)
		candidates = append(candidates, c)
	}

	if failure != nil {
		if errors.Is(failure, context.Canceled) || !b.common.BestEffort || len(candidates) == 0 {
			return nil, b.opError("ask", failure)
		}

		b.logger.Warn("strategy: returning a short batch",
			zap.Int("requested", n),
			zap.Int("found", len(candidates)),
			zap.Error(failure),
		)
	}

	if vs := b.domain.Violations(batch, b.common.Tolerance); len(vs) > 0 {
		return nil, b.opError("ask", &sampling.InfeasibleRegionError{Requested: n, Found: 0, Constraint: vs[0].Key})
	}

	b.state = Proposing

	b.logger.Debug("strategy: proposed",
		zap.Int("candidates", len(candidates)),
		zap.Duration("took", time.Since(start)),
	)

	return candidates, nil
}

// shortfall turns the reason a slot could not be filled into the error
// reported for the whole batch.
func shortfall(err error, requested, found int) error {
	var infeasible *sampling.InfeasibleRegionError

	switch {
	case errors.As(err, &infeasible):
		return &sampling.InfeasibleRegionError{
			Requested:  requested,
			Found:      found,
			Attempts:   infeasible.Attempts,
			Constraint: infeasible.Constraint,
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &sampling.InfeasibleRegionError{Requested: requested, Found: found, Constraint: "time budget exceeded"}
	case errors.Is(err, optimizer.ErrNoCandidate):
		return &sampling.InfeasibleRegionError{Requested: requested, Found: found, Constraint: "no admissible candidate left"}
	default:
		return err
	}
}

func cloneExperiment(e domain.Experiment) domain.Experiment {
	e.Inputs = e.Inputs.Clone()
	e.Outputs = maps.Clone(e.Outputs)
	e.Labels = maps.Clone(e.Labels)

	return e
}
