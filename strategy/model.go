package strategy

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/thalesfsp/doe/acquisition"
	"github.com/thalesfsp/doe/domain"
	"github.com/thalesfsp/doe/encoding"
	"github.com/thalesfsp/doe/optimizer"
	"github.com/thalesfsp/doe/sampling"
	"github.com/thalesfsp/doe/surrogate"
)

//////
// Predictor.
//////

// predictor holds one surrogate per objective output and scalarizes their
// predictions the same way domain.Score scalarizes observations.
type predictor struct {
	outputs []*domain.Output
	models  []surrogate.Model
}

// predict returns the per-output means and standard deviations
// (indexed [output][row]) and the scalarized mean and variance per row.
func (p *predictor) predict(X [][]float64) (means, stds [][]float64, mean, variance []float64, err error) {
	means = make([][]float64, len(p.models))
	stds = make([][]float64, len(p.models))
	mean = make([]float64, len(X))
	variance = make([]float64, len(X))

	for k, m := range p.models {
		mu, sd, err := m.Predict(X)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("predict %q: %w", p.outputs[k].Key(), err)
		}

		means[k], stds[k] = mu, sd

		obj := p.outputs[k].Objective()
		w := obj.EffectiveWeight()

		for i := range X {
			mean[i] += w * obj.Transform(mu[i])
			variance[i] += w * w * sd[i] * sd[i]
		}
	}

	return means, stds, mean, variance, nil
}

// believe returns a predictor whose models that support it have absorbed
// the observation y[k] at x. Models that cannot condition are kept as is.
func (p *predictor) believe(x []float64, y []float64, logger *zap.Logger) *predictor {
	next := &predictor{outputs: p.outputs, models: append([]surrogate.Model(nil), p.models...)}

	for k, m := range p.models {
		c, ok := m.(surrogate.Conditioner)
		if !ok {
			continue
		}

		nm, err := c.Condition(x, y[k])
		if err != nil {
			logger.Debug("strategy: conditioning failed, keeping the model", zap.Error(err))

			continue
		}

		next.models[k] = nm
	}

	return next
}

//////
// Model-backed core.
//////

// modelCore is shared by the surrogate-backed strategies: it fits one model
// per objective output on Tell and maximizes an acquisition function over
// the feasible region on Ask. Batches are built greedily; after every pick
// the models "believe" their own prediction there.
type modelCore struct {
	base

	encoder   *encoding.Encoder
	fitter    func(output int) surrogate.Fitter
	maximizer optimizer.Maximizer
	acq       acquisition.Func
	params    acquisition.Params

	// stochastic acquisition functions draw from the slot's generator.
	stochastic bool

	// search maximizes one slot; it defaults to maximizer.Maximize.
	search func(ctx context.Context, p optimizer.Problem) (optimizer.Result, error)

	predictor *predictor
}

// setup finishes Configure once the options are decoded.
func (m *modelCore) setup(d *domain.Domain, mode encoding.Categorical, opts ModelOptions) error {
	if len(d.ObjectiveOutputs()) == 0 {
		return m.abandon(&ConfigurationError{Strategy: m.name, Option: "outputs", Reason: "at least one output needs an objective"})
	}

	enc, err := encoding.New(d, mode)
	if err != nil {
		return m.abandon(&ConfigurationError{Strategy: m.name, Option: "categorical_encoding", Reason: err.Error()})
	}

	acq, err := acquisition.Lookup(opts.Acquisition)
	if err != nil {
		return m.abandon(&ConfigurationError{Strategy: m.name, Option: "acquisition", Reason: err.Error()})
	}

	m.encoder = enc
	m.acq = acq
	m.stochastic = acquisition.NeedsRandomState(opts.Acquisition)
	m.params = acquisition.Params{Beta: opts.Beta, Xi: opts.Xi}
	m.maximizer = optimizer.PoolSearch{
		Candidates: opts.NumCandidates,
		Restarts:   opts.NumRestarts,
		LocalSteps: opts.LocalSteps,
		Logger:     m.logger,
	}
	m.predictor = nil

	if m.search == nil {
		m.search = func(ctx context.Context, p optimizer.Problem) (optimizer.Result, error) {
			return m.maximizer.Maximize(ctx, p, m.rng)
		}
	}

	return nil
}

// Tell implements Strategy. Models are refitted when new experiments
// arrive; excluded experiments stay in the history but are not fitted.
func (m *modelCore) Tell(ctx context.Context, experiments []domain.Experiment) error {
	added, err := m.ingest(experiments)
	if err != nil {
		return err
	}

	if added > 0 || (m.predictor == nil && len(m.history) > 0) {
		p, err := m.fit(ctx)
		if err != nil {
			return m.opError("tell", err)
		}

		m.predictor = p
	}

	m.settle(m.predictor != nil)

	return nil
}

// fit returns nil, nil when some objective output has no usable
// observation yet.
func (m *modelCore) fit(ctx context.Context) (*predictor, error) {
	outputs := m.domain.ObjectiveOutputs()
	p := &predictor{outputs: outputs, models: make([]surrogate.Model, len(outputs))}

	for k, out := range outputs {
		var (
			X [][]float64
			y []float64
		)

		for _, e := range m.history {
			if e.Excluded || !e.HasOutput(out.Key()) {
				continue
			}

			x, err := m.encoder.Encode(e.Inputs)
			if err != nil {
				return nil, err
			}

			X = append(X, x)
			y = append(y, e.Outputs[out.Key()])
		}

		if len(X) == 0 {
			return nil, nil
		}

		model, err := m.fitter(k).Fit(ctx, X, y)
		if err != nil {
			return nil, fmt.Errorf("fit %q: %w", out.Key(), err)
		}

		p.models[k] = model
	}

	m.logger.Debug("strategy: fitted", zap.Int("outputs", len(outputs)), zap.Int("history", len(m.history)))

	return p, nil
}

// incumbent is the best observed scalarized score; when no experiment has
// every objective observed it falls back to the best predicted score over
// the history.
func (m *modelCore) incumbent(p *predictor) (float64, error) {
	best := math.Inf(-1)

	for _, e := range m.history {
		if e.Excluded {
			continue
		}

		if s, ok := m.domain.Score(e.Outputs); ok && s > best {
			best = s
		}
	}

	if !math.IsInf(best, -1) {
		return best, nil
	}

	X, err := m.encoder.EncodeAll(m.historyInputs())
	if err != nil {
		return 0, err
	}

	_, _, mean, _, err := p.predict(X)
	if err != nil {
		return 0, err
	}

	for _, v := range mean {
		best = math.Max(best, v)
	}

	return best, nil
}

// Ask implements Strategy.
func (m *modelCore) Ask(ctx context.Context, n int) ([]domain.Candidate, error) {
	switch {
	case m.state == Uninitialized:
		return nil, m.opError("ask", m.notReady("Configure must be called first"))
	case m.predictor == nil:
		return nil, m.opError("ask", m.notReady("every objective output needs at least one valid observation"))
	}

	best, err := m.incumbent(m.predictor)
	if err != nil {
		return nil, m.opError("ask", err)
	}

	params := m.params
	params.BestSoFar = best

	var excluded []domain.Assignment
	if !m.common.AllowRepeats {
		excluded = m.historyInputs()
	}

	current := m.predictor

	candidates, err := m.propose(ctx, n, func(ctx context.Context, batch []domain.Assignment, _, _ int, o sampling.Overrides) (domain.Candidate, error) {
		problem := optimizer.Problem{
			Sampler:   m.sampler,
			Overrides: o,
			Objective: m.objective(current, params),
		}

		if !m.common.AllowRepeats {
			problem.Exclude = append(append([]domain.Assignment(nil), excluded...), batch...)
		}

		r, err := m.search(ctx, problem)
		if err != nil {
			return domain.Candidate{}, err
		}

		c, x, means, err := m.candidate(current, r)
		if err != nil {
			return domain.Candidate{}, err
		}

		current = current.believe(x, means, m.logger)

		return c, nil
	})
	if err != nil {
		return nil, err
	}

	// Interpoint equality blocks are positional; keep their order.
	if !m.domain.HasConstraint(domain.InterpointEqualityType) {
		sort.SliceStable(candidates, func(i, j int) bool { return *candidates[i].Score > *candidates[j].Score })
	}

	return candidates, nil
}

func (m *modelCore) objective(p *predictor, params acquisition.Params) optimizer.Objective {
	return func(rng *rand.Rand, points []domain.Assignment) ([]float64, error) {
		X, err := m.encoder.EncodeAll(points)
		if err != nil {
			return nil, err
		}

		_, _, mean, variance, err := p.predict(X)
		if err != nil {
			return nil, err
		}

		local := params
		if m.stochastic {
			local.RandomState = rng
		}

		out := make([]float64, len(points))
		for i := range points {
			out[i] = m.acq(mean[i], variance[i], local)
		}

		return out, nil
	}
}

// candidate attaches per-output predictions and the acquisition score to an
// optimizer result. It also returns the encoded point and the predicted
// means for the believer update.
func (m *modelCore) candidate(p *predictor, r optimizer.Result) (domain.Candidate, []float64, []float64, error) {
	x, err := m.encoder.Encode(r.Point)
	if err != nil {
		return domain.Candidate{}, nil, nil, err
	}

	means, stds, _, _, err := p.predict([][]float64{x})
	if err != nil {
		return domain.Candidate{}, nil, nil, err
	}

	preds := make(map[string]domain.Prediction, len(p.outputs))
	ys := make([]float64, len(p.outputs))

	for k, out := range p.outputs {
		preds[out.Key()] = domain.Prediction{Mean: means[k][0], Std: stds[k][0]}
		ys[k] = means[k][0]
	}

	score := r.Value

	return domain.Candidate{Inputs: r.Point, Predictions: preds, Score: &score}, x, ys, nil
}
