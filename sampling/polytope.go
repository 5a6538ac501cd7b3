package sampling

import (
	"math"
	"math/rand"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/thalesfsp/doe/domain"
)

// polytopeCache holds vertices per distinct polytope. It lives for a single
// Sample or Pool call.
type polytopeCache map[string][][]float64

// lpTolerance is the simplex pivot tolerance.
const lpTolerance = 1e-10

// samplePolytope assigns the free continuous features of the linear
// constraints to a uniform-ish random point of their feasible polytope: a
// Dirichlet weighted combination of random vertices.
func (s *Sampler) samplePolytope(rng *rand.Rand, p *plan, a domain.Assignment, cache polytopeCache) (culprit string) {
	var vars []string

	for _, k := range s.linearKeys {
		if _, free := p.lower[k]; free {
			vars = append(vars, k)
		}
	}

	key := s.polytopeKey(vars, p)

	verts, ok := cache[key]
	if !ok {
		var culprit string

		verts, culprit = s.vertices(rng, vars, p)
		if verts == nil {
			return culprit
		}

		cache[key] = verts
	}

	if len(vars) == 0 {
		return ""
	}

	k := len(vars) + 1
	if k > len(verts) {
		k = len(verts)
	}

	pick := rng.Perm(len(verts))[:k]
	weights := make([]float64, k)
	total := 0.0

	for i := range weights {
		weights[i] = -math.Log(1 - rng.Float64())
		total += weights[i]
	}

	for j, name := range vars {
		x := 0.0
		for i, idx := range pick {
			x += weights[i] / total * verts[idx][j]
		}

		lo, hi := p.lower[name], p.upper[name]
		a[name] = domain.Number(math.Min(hi, math.Max(lo, lo+x)))
	}

	return ""
}

// vertices solves the polytope LP for random objectives. The result holds
// offsets from the lower bounds, one row per vertex. With no free variable a
// single empty vertex is returned once the fixed values are checked.
func (s *Sampler) vertices(rng *rand.Rand, vars []string, p *plan) ([][]float64, string) {
	col := make(map[string]int, len(vars))
	for j, k := range vars {
		col[k] = j
	}

	type row struct {
		coef  []float64
		rhs   float64
		slack bool
	}

	var rows []row

	for _, c := range s.linear {
		r := row{coef: make([]float64, len(vars)), rhs: c.RHS(), slack: c.Type() == domain.LinearInequalityType}
		coef := c.Coefficients()
		nonzero := false

		for i, k := range c.Features() {
			if j, free := col[k]; free {
				r.coef[j] = coef[i]
				r.rhs -= coef[i] * p.lower[k]
				nonzero = nonzero || coef[i] != 0

				continue
			}

			x, _ := p.fixed[k].Float()
			r.rhs -= coef[i] * x
		}

		if !nonzero {
			if (r.slack && r.rhs < -s.tolerance) || (!r.slack && math.Abs(r.rhs) > s.tolerance) {
				return nil, c.String()
			}

			continue
		}

		rows = append(rows, r)
	}

	m := len(vars)
	if m == 0 {
		return [][]float64{{}}, ""
	}

	slacks := m
	for _, r := range rows {
		if r.slack {
			slacks++
		}
	}

	nRows, nCols := len(rows)+m, m+slacks
	if nRows > nCols {
		return nil, "linear constraints"
	}

	A := mat.NewDense(nRows, nCols, nil)
	b := make([]float64, nRows)
	next := m

	for i, r := range rows {
		for j, v := range r.coef {
			A.Set(i, j, v)
		}

		if r.slack {
			A.Set(i, next, 1)
			next++
		}

		b[i] = r.rhs
	}

	for j, k := range vars {
		i := len(rows) + j
		A.Set(i, j, 1)
		A.Set(i, next, 1)
		next++
		b[i] = p.upper[k] - p.lower[k]
	}

	for i := range b {
		if b[i] < 0 {
			b[i] = -b[i]

			for j := 0; j < nCols; j++ {
				A.Set(i, j, -A.At(i, j))
			}
		}
	}

	count := 2 * (m + 1)
	if count > 64 {
		count = 64
	}

	verts := make([][]float64, 0, count)
	c := make([]float64, nCols)

	for v := 0; v < count; v++ {
		for j := 0; j < m; j++ {
			c[j] = rng.NormFloat64()
		}

		_, x, err := lp.Simplex(c, mat.DenseCopyOf(A), append([]float64(nil), b...), lpTolerance, nil)
		if err != nil {
			s.logger.Sugar().Debugw("sampling: linear program failed", "error", err)

			return nil, "linear constraints"
		}

		verts = append(verts, append([]float64(nil), x[:m]...))
	}

	return verts, ""
}

func (s *Sampler) polytopeKey(vars []string, p *plan) string {
	var b strings.Builder

	for _, k := range vars {
		b.WriteString(k)
		b.WriteByte('[')
		b.WriteString(strconv.FormatFloat(p.lower[k], 'g', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.upper[k], 'g', -1, 64))
		b.WriteString("];")
	}

	b.WriteByte('|')

	for _, k := range s.linearKeys {
		if _, ok := p.fixed[k]; !ok {
			continue
		}

		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(p.fixed[k].String())
		b.WriteByte(';')
	}

	return b.String()
}
