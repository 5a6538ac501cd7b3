package sampling

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/thalesfsp/doe/domain"
)

// project moves the free continuous features of nonlinear equality
// constraints onto the constraint surface with Newton steps.
//
// Features that also appear in linear constraints may move too: the step is
// projected onto the null space of the linear equality rows, so the linear
// equalities keep holding, and shortened so no bound or linear inequality is
// crossed. Features resting on a bound the step would cross are pinned and the
// step is recomputed without them.
func (s *Sampler) project(a domain.Assignment, p *plan) {
	const maxSweeps = 50

	target := s.tolerance / 10

	for sweep := 0; sweep < maxSweeps; sweep++ {
		worst := 0.0

		for _, c := range s.nonlinearEq {
			r, err := c.Residual(a)
			if err != nil {
				return
			}

			worst = math.Max(worst, math.Abs(r))
			if math.Abs(r) <= target {
				continue
			}

			vars := s.movable(c, p)
			if len(vars) == 0 {
				continue
			}

			grad, err := gradient(c, a, vars, r)
			if err != nil {
				return
			}

			step := s.newtonStep(a, p, vars, grad, r)
			if step == nil {
				continue
			}

			alpha := s.stepLength(a, p, vars, step)

			for i, k := range vars {
				x := a.Float(k) + alpha*step[i]
				a[k] = domain.Number(math.Min(p.upper[k], math.Max(p.lower[k], x)))
			}
		}

		if worst <= target {
			return
		}
	}
}

// movable lists the features a step on c may change: c's free continuous
// features, followed by every free linearly constrained feature when c shares
// one with a linear constraint.
func (s *Sampler) movable(c *domain.NonlinearConstraint, p *plan) []string {
	var (
		vars    []string
		coupled bool
	)

	for _, k := range c.Features() {
		if _, ok := p.lower[k]; !ok {
			continue
		}

		if _, linear := s.linearSet[k]; linear {
			coupled = true
		}

		vars = append(vars, k)
	}

	if !coupled {
		return vars
	}

	for _, k := range s.linearKeys {
		if _, ok := p.lower[k]; ok && !slices.Contains(vars, k) {
			vars = append(vars, k)
		}
	}

	return vars
}

// gradient estimates ∂r/∂x for every var by forward differences. Vars c does
// not read get zero.
func gradient(c *domain.NonlinearConstraint, a domain.Assignment, vars []string, r float64) ([]float64, error) {
	reads := c.Features()
	grad := make([]float64, len(vars))

	for i, k := range vars {
		if !slices.Contains(reads, k) {
			continue
		}

		x := a.Float(k)
		h := 1e-7 * math.Max(1, math.Abs(x))

		a[k] = domain.Number(x + h)
		r2, err := c.Residual(a)
		a[k] = domain.Number(x)

		if err != nil {
			return nil, err
		}

		grad[i] = (r2 - r) / h
	}

	return grad, nil
}

// newtonStep returns the full Newton step for residual r, restricted to the
// null space of the linear equalities, or nil when no such step reduces r.
func (s *Sampler) newtonStep(a domain.Assignment, p *plan, vars []string, grad []float64, r float64) []float64 {
	pinned := make([]bool, len(vars))

	for range vars {
		d := s.nullSpace(vars, pinned, grad)
		if d == nil {
			return nil
		}

		gd := 0.0
		for i := range d {
			gd += grad[i] * d[i]
		}

		if gd <= 1e-14 {
			return nil
		}

		scale := -r / gd
		blocked := false

		for i, k := range vars {
			if pinned[i] || d[i] == 0 {
				continue
			}

			x, move := a.Float(k), scale*d[i]
			eps := 1e-12 * (p.upper[k] - p.lower[k])

			if (move < 0 && x <= p.lower[k]+eps) || (move > 0 && x >= p.upper[k]-eps) {
				pinned[i] = true
				blocked = true
			}
		}

		if !blocked {
			for i := range d {
				d[i] *= scale
			}

			return d
		}
	}

	return nil
}

// nullSpace projects grad onto the null space of the linear equality rows,
// over the unpinned vars. Pinned vars get zero.
func (s *Sampler) nullSpace(vars []string, pinned []bool, grad []float64) []float64 {
	col := make(map[string]int, len(vars))

	for i, k := range vars {
		if !pinned[i] {
			col[k] = len(col)
		}
	}

	if len(col) == 0 {
		return nil
	}

	var rows [][]float64

	for _, c := range s.linear {
		if c.Type() != domain.LinearEqualityType {
			continue
		}

		row := make([]float64, len(col))
		touches := false
		coef := c.Coefficients()

		for j, k := range c.Features() {
			if i, ok := col[k]; ok && coef[j] != 0 {
				row[i] = coef[j]
				touches = true
			}
		}

		if touches {
			rows = append(rows, row)
		}
	}

	g := mat.NewVecDense(len(col), nil)

	for i, k := range vars {
		if j, ok := col[k]; ok {
			g.SetVec(j, grad[i])
		}
	}

	if len(rows) > 0 {
		if len(rows) >= len(col) {
			return nil
		}

		A := mat.NewDense(len(rows), len(col), nil)
		for i, row := range rows {
			A.SetRow(i, row)
		}

		// g - Aᵀ(AAᵀ)⁻¹Ag
		var gram mat.Dense
		gram.Mul(A, A.T())

		var ag, lambda, correction mat.VecDense
		ag.MulVec(A, g)

		if err := lambda.SolveVec(&gram, &ag); err != nil {
			return nil
		}

		correction.MulVec(A.T(), &lambda)
		g.SubVec(g, &correction)
	}

	d := make([]float64, len(vars))

	for i, k := range vars {
		if j, ok := col[k]; ok {
			d[i] = g.AtVec(j)
		}
	}

	return d
}

// stepLength returns the largest fraction of step, at most 1, that keeps every
// var within its bounds and every linear inequality satisfied.
func (s *Sampler) stepLength(a domain.Assignment, p *plan, vars []string, step []float64) float64 {
	alpha := 1.0
	index := make(map[string]int, len(vars))

	for i, k := range vars {
		index[k] = i

		x := a.Float(k)

		switch {
		case step[i] > 0:
			alpha = math.Min(alpha, math.Max(0, p.upper[k]-x)/step[i])
		case step[i] < 0:
			alpha = math.Min(alpha, math.Max(0, x-p.lower[k])/-step[i])
		}
	}

	for _, c := range s.linear {
		if c.Type() != domain.LinearInequalityType {
			continue
		}

		coef := c.Coefficients()
		delta := 0.0

		for j, k := range c.Features() {
			if i, ok := index[k]; ok {
				delta += coef[j] * step[i]
			}
		}

		if delta <= 0 {
			continue
		}

		r, err := c.Residual(a)
		if err != nil {
			return 0
		}

		alpha = math.Min(alpha, math.Max(0, -r)/delta)
	}

	return alpha
}
