// Package sampling draws feasible candidates from a domain.
//
// The sampler works in tiers. Without constraints every input is drawn
// independently and uniformly. Linear constraints are handled exactly: the
// sampler computes random vertices of the feasible polytope with the simplex
// method and returns random convex combinations of them. N-choose-k
// constraints are handled by choosing the active set explicitly before any
// value is drawn. Nonlinear equalities are approached by a Newton projection
// that moves within the null space of the linear equalities.
// Whatever remains (nonlinear inequalities, interactions the earlier tiers
// cannot see) is enforced by rejection with a bounded number of attempts.
//
// Every returned point passes domain.Domain.IsFeasible and every returned
// batch passes domain.Domain.IsBatchFeasible. When that cannot be achieved
// within the budget an *InfeasibleRegionError is returned.
package sampling

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/thalesfsp/doe/domain"
)

// DefaultMaxRetries is the default number of draws spent per point.
const DefaultMaxRetries = 1000

// Sampler draws feasible points of one domain. It holds no mutable state:
// randomness comes from the caller's generator, so a Sampler may be shared.
type Sampler struct {
	domain     *domain.Domain
	tolerance  float64
	maxRetries int
	logger     *zap.Logger

	linear      []*domain.LinearConstraint
	linearKeys  []string
	linearSet   map[string]struct{}
	nchoosek    []*domain.NChooseKConstraint
	nonlinearEq []*domain.NonlinearConstraint
	equalities  []*domain.InterpointEqualityConstraint
	sums        []*domain.InterpointSumConstraint
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithTolerance sets the feasibility tolerance.
func WithTolerance(tol float64) Option {
	return func(s *Sampler) {
		s.tolerance = tol
	}
}

// WithMaxRetries sets the number of draws spent per point.
func WithMaxRetries(n int) Option {
	return func(s *Sampler) {
		s.maxRetries = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sampler) {
		s.logger = l
	}
}

// New builds a sampler for d.
func New(d *domain.Domain, opts ...Option) (*Sampler, error) {
	s := &Sampler{
		domain:     d,
		tolerance:  d.Tolerance(),
		maxRetries: DefaultMaxRetries,
		logger:     zap.NewNop(),
		linearSet:  map[string]struct{}{},
	}

	for _, opt := range opts {
		opt(s)
	}

	if !(s.tolerance > 0) {
		return nil, fmt.Errorf("sampling: tolerance must be positive, got %g", s.tolerance)
	}

	if s.maxRetries < 1 {
		return nil, fmt.Errorf("sampling: max retries must be at least 1, got %d", s.maxRetries)
	}

	for _, c := range d.Constraints() {
		switch t := c.(type) {
		case *domain.LinearConstraint:
			s.linear = append(s.linear, t)

			for _, k := range t.Features() {
				if _, ok := s.linearSet[k]; !ok {
					s.linearSet[k] = struct{}{}
					s.linearKeys = append(s.linearKeys, k)
				}
			}
		case *domain.NChooseKConstraint:
			s.nchoosek = append(s.nchoosek, t)
		case *domain.NonlinearConstraint:
			if t.Type() == domain.NonlinearEqualityType {
				s.nonlinearEq = append(s.nonlinearEq, t)
			}
		case *domain.InterpointEqualityConstraint:
			s.equalities = append(s.equalities, t)
		case *domain.InterpointSumConstraint:
			s.sums = append(s.sums, t)
		}
	}

	if err := s.checkEqualityRank(); err != nil {
		return nil, err
	}

	return s, nil
}

// Domain returns the sampled domain.
func (s *Sampler) Domain() *domain.Domain { return s.domain }

// Tolerance returns the feasibility tolerance.
func (s *Sampler) Tolerance() float64 { return s.tolerance }

// checkEqualityRank rejects linearly dependent equality constraints, which
// either contradict each other or are redundant.
func (s *Sampler) checkEqualityRank() error {
	var rows []*domain.LinearConstraint

	for _, c := range s.linear {
		if c.Type() == domain.LinearEqualityType {
			rows = append(rows, c)
		}
	}

	if len(rows) < 2 {
		return nil
	}

	col := make(map[string]int, len(s.linearKeys))
	for i, k := range s.linearKeys {
		col[k] = i
	}

	m := mat.NewDense(len(rows), len(s.linearKeys), nil)

	for i, c := range rows {
		coef := c.Coefficients()
		for j, k := range c.Features() {
			m.Set(i, col[k], coef[j])
		}
	}

	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDNone) {
		return &domain.ValidationError{Reason: "cannot factorize linear equality constraints"}
	}

	values := svd.Values(nil)
	rank := 0

	for _, v := range values {
		if v > 1e-10*values[0] {
			rank++
		}
	}

	if rank < len(rows) {
		return &domain.ValidationError{
			Reason: fmt.Sprintf("linear equality constraints are linearly dependent (rank %d of %d)", rank, len(rows)),
		}
	}

	return nil
}

//////
// Public draws.
//////

// Point draws one point satisfying every bound and point constraint and the
// given overrides.
func (s *Sampler) Point(ctx context.Context, rng *rand.Rand, o Overrides) (domain.Assignment, error) {
	rej := newRejections()

	a, err := s.point(ctx, rng, o, polytopeCache{}, rej)
	if err != nil {
		return nil, err
	}

	if a == nil {
		return nil, rej.err(1, 0)
	}

	return a, nil
}

// Pool draws n independent points that each satisfy every bound and point
// constraint and the given overrides. Interpoint constraints are not
// considered; use Sample for batches.
func (s *Sampler) Pool(ctx context.Context, n int, rng *rand.Rand, o Overrides) ([]domain.Assignment, error) {
	cache := polytopeCache{}
	rej := newRejections()
	out := make([]domain.Assignment, 0, n)

	for len(out) < n {
		a, err := s.point(ctx, rng, o, cache, rej)
		if err != nil {
			return out, err
		}

		if a == nil {
			return out, rej.err(n, len(out))
		}

		out = append(out, a)
	}

	return out, nil
}

// Sample draws a batch of n points that is feasible as a whole, interpoint
// constraints included.
func (s *Sampler) Sample(ctx context.Context, n int, rng *rand.Rand) ([]domain.Assignment, error) {
	cache := polytopeCache{}
	rej := newRejections()
	batch := make([]domain.Assignment, 0, n)

	for i := 0; i < n; i++ {
		a, err := s.point(ctx, rng, s.SlotOverrides(batch, i, n), cache, rej)
		if err != nil {
			return batch, err
		}

		if a == nil {
			s.logger.Debug("sampling: slot exhausted its attempts",
				zap.Int("slot", i),
				zap.Int("attempts", rej.attempts),
				zap.String("culprit", rej.worst()),
			)

			return batch, rej.err(n, len(batch))
		}

		batch = append(batch, a)
	}

	if vs := s.domain.Violations(batch, s.tolerance); len(vs) > 0 {
		rej.add(vs[0].Key)

		return nil, rej.err(n, 0)
	}

	return batch, nil
}

// Feasible reports whether a passes every bound, point constraint and the
// overrides within the sampler tolerance.
func (s *Sampler) Feasible(a domain.Assignment, o Overrides) bool {
	if len(s.domain.PointViolations(a, s.tolerance)) > 0 {
		return false
	}

	return o.IsZero() || o.Admits(a, s.tolerance)
}

//////
// Drawing one point.
//////

// point runs the rejection loop. A nil assignment with a nil error means the
// attempt budget was spent; rej tells why.
func (s *Sampler) point(
	ctx context.Context,
	rng *rand.Rand,
	o Overrides,
	cache polytopeCache,
	rej *rejections,
) (domain.Assignment, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rej.attempts++

		a, culprit := s.draw(rng, o, cache)
		if a == nil {
			rej.add(culprit)

			continue
		}

		if vs := s.domain.PointViolations(a, s.tolerance); len(vs) > 0 {
			rej.add(vs[0].Key)

			continue
		}

		if !o.IsZero() && !o.Admits(a, s.tolerance) {
			rej.add("overrides")

			continue
		}

		return a, nil
	}

	return nil, nil
}

// draw produces one candidate that satisfies the bounds, the linear and
// n-choose-k constraints by construction. culprit names the blocking
// constraint when no candidate could be built.
func (s *Sampler) draw(rng *rand.Rand, o Overrides, cache polytopeCache) (a domain.Assignment, culprit string) {
	p, culprit := s.plan(rng, o)
	if p == nil {
		return nil, culprit
	}

	a = make(domain.Assignment, len(s.domain.InputKeys()))
	for k, v := range p.fixed {
		a[k] = v
	}

	if len(s.linear) > 0 {
		if culprit := s.samplePolytope(rng, p, a, cache); culprit != "" {
			return nil, culprit
		}
	}

	for _, f := range s.domain.Inputs() {
		k := f.Key()
		if _, done := a[k]; done {
			continue
		}

		switch f.(type) {
		case *domain.ContinuousInput:
			lo, hi := p.lower[k], p.upper[k]
			a[k] = domain.Number(lo + rng.Float64()*(hi-lo))
		case *domain.DiscreteInput:
			vs := p.values[k]
			a[k] = domain.Number(vs[rng.Intn(len(vs))])
		default:
			cs := p.categories[k]
			a[k] = domain.Label(cs[rng.Intn(len(cs))])
		}
	}

	s.project(a, p)

	return a, ""
}
