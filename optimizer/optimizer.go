// Package optimizer searches the feasible region of a domain for the point
// that maximizes an acquisition objective.
//
// The built-in PoolSearch scores a pool of feasible points drawn by the
// sampler, then improves the best few with parallel local searches. Moves are
// convex mixes towards other pool points and are kept only when they remain
// feasible, so every returned point satisfies the domain.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thalesfsp/doe/domain"
	"github.com/thalesfsp/doe/sampling"
)

// ErrNoCandidate is returned when no admissible point could be scored.
var ErrNoCandidate = errors.New("optimizer: no admissible candidate")

// Objective scores a batch of points; larger is better. rng is private to
// the caller's goroutine.
type Objective func(rng *rand.Rand, points []domain.Assignment) ([]float64, error)

// Problem is one maximization task.
type Problem struct {
	// Sampler draws feasible points.
	Sampler *sampling.Sampler

	// Overrides restrict the region, e.g. the slot of a batch.
	Overrides sampling.Overrides

	// Objective is maximized.
	Objective Objective

	// Exclude lists points that must not be returned.
	Exclude []domain.Assignment
}

// Result is the outcome of a maximization.
type Result struct {
	Point domain.Assignment
	Value float64
}

// Maximizer is the acquisition-optimization backend contract.
type Maximizer interface {
	Maximize(ctx context.Context, p Problem, rng *rand.Rand) (Result, error)
}

// Defaults of PoolSearch.
const (
	DefaultCandidates = 256
	DefaultRestarts   = 4
	DefaultLocalSteps = 20
)

// PoolSearch is the default Maximizer.
type PoolSearch struct {
	Candidates  int
	Restarts    int
	LocalSteps  int
	Parallelism int
	Logger      *zap.Logger
}

func (s PoolSearch) withDefaults() PoolSearch {
	if s.Candidates <= 0 {
		s.Candidates = DefaultCandidates
	}

	if s.Restarts <= 0 {
		s.Restarts = DefaultRestarts
	}

	if s.LocalSteps < 0 {
		s.LocalSteps = 0
	}

	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}

	return s
}

// Maximize implements Maximizer. When ctx expires the best point scored so
// far is returned; ErrNoCandidate (or the context error) is returned only
// when nothing could be scored.
func (s PoolSearch) Maximize(ctx context.Context, p Problem, rng *rand.Rand) (Result, error) {
	s = s.withDefaults()

	pool, err := p.Sampler.Pool(ctx, s.Candidates, rng, p.Overrides)
	if err != nil && len(pool) == 0 {
		return Result{}, err
	}

	pool = exclude(pool, p.Exclude)
	if len(pool) == 0 {
		return Result{}, ErrNoCandidate
	}

	scores, err := p.Objective(rng, pool)
	if err != nil {
		return Result{}, fmt.Errorf("optimizer: score pool: %w", err)
	}

	order := rankDescending(scores)

	restarts := s.Restarts
	if restarts > len(order) {
		restarts = len(order)
	}

	seeds := make([]int64, restarts)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	results := make([]Result, restarts)

	g, gctx := errgroup.WithContext(ctx)
	if s.Parallelism > 0 {
		g.SetLimit(s.Parallelism)
	}

	for i := 0; i < restarts; i++ {
		start := Result{Point: pool[order[i]], Value: scores[order[i]]}

		g.Go(func() error {
			r, err := s.local(gctx, p, pool, start, rand.New(rand.NewSource(seeds[i])))
			results[i] = r

			return err
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.Value > best.Value {
			best = r
		}
	}

	s.Logger.Debug("optimizer: maximized",
		zap.Int("pool", len(pool)),
		zap.Int("restarts", restarts),
		zap.Float64("value", best.Value),
	)

	return best, nil
}

// local hill-climbs from start by mixing towards random pool points with a
// shrinking step.
func (s PoolSearch) local(ctx context.Context, p Problem, pool []domain.Assignment, start Result, rng *rand.Rand) (Result, error) {
	best := start
	tol := p.Sampler.Tolerance()
	d := p.Sampler.Domain()

	for step := 0; step < s.LocalSteps; step++ {
		if ctx.Err() != nil {
			return best, nil
		}

		partner := pool[rng.Intn(len(pool))]
		t := rng.Float64() * 0.5 * (1 - float64(step)/float64(s.LocalSteps))

		cand := Mix(d, best.Point, partner, t, rng)
		if !p.Sampler.Feasible(cand, p.Overrides) || contains(p.Exclude, cand) {
			continue
		}

		v, err := p.Objective(rng, []domain.Assignment{cand})
		if err != nil {
			return best, err
		}

		if v[0] > best.Value+tol*math.Abs(best.Value) {
			best = Result{Point: cand, Value: v[0]}
		}
	}

	return best, nil
}

// Mix moves a towards b by t: numeric features are interpolated (discrete
// ones snapped to the nearest allowed value), categorical features take b's
// value with probability t.
func Mix(d *domain.Domain, a, b domain.Assignment, t float64, rng *rand.Rand) domain.Assignment {
	out := make(domain.Assignment, len(a))

	for _, f := range d.Inputs() {
		k := f.Key()

		switch ft := f.(type) {
		case *domain.ContinuousInput:
			out[k] = domain.Number((1-t)*a.Float(k) + t*b.Float(k))
		case *domain.DiscreteInput:
			out[k] = domain.Number(nearest(ft.Values(), (1-t)*a.Float(k)+t*b.Float(k)))
		default:
			if rng.Float64() < t {
				out[k] = b[k]
			} else {
				out[k] = a[k]
			}
		}
	}

	return out
}

//////
// Helpers.
//////

func nearest(values []float64, x float64) float64 {
	best := values[0]

	for _, v := range values[1:] {
		if math.Abs(v-x) < math.Abs(best-x) {
			best = v
		}
	}

	return best
}

func rankDescending(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(i, j int) bool {
		si, sj := scores[order[i]], scores[order[j]]
		if math.IsNaN(sj) {
			return !math.IsNaN(si)
		}

		return si > sj
	})

	return order
}

func contains(set []domain.Assignment, a domain.Assignment) bool {
	for _, s := range set {
		if s.Equal(a) {
			return true
		}
	}

	return false
}

func exclude(pool, excluded []domain.Assignment) []domain.Assignment {
	if len(excluded) == 0 {
		return pool
	}

	out := pool[:0:0]

	for _, a := range pool {
		if !contains(excluded, a) {
			out = append(out, a)
		}
	}

	return out
}
