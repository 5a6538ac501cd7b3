package sampling

import (
	"math"

	"github.com/thalesfsp/doe/domain"
)

// Overrides restricts the sampled region for one draw: Fixed pins features
// to a value, Bounds tightens the interval of numeric features.
type Overrides struct {
	Fixed  map[string]domain.Value
	Bounds map[string][2]float64
}

// IsZero reports whether o restricts nothing.
func (o Overrides) IsZero() bool {
	return len(o.Fixed) == 0 && len(o.Bounds) == 0
}

// Admits reports whether a honors the overrides within tol.
func (o Overrides) Admits(a domain.Assignment, tol float64) bool {
	for k, v := range o.Fixed {
		got, ok := a[k]
		if !ok {
			return false
		}

		x, xok := got.Float()
		y, yok := v.Float()

		if xok && yok {
			if math.Abs(x-y) > tol {
				return false
			}

			continue
		}

		if !got.Equal(v) {
			return false
		}
	}

	for k, b := range o.Bounds {
		x := a.Float(k)
		if math.IsNaN(x) || x < b[0]-tol || x > b[1]+tol {
			return false
		}
	}

	return true
}

func (o Overrides) fix(key string, v domain.Value) Overrides {
	if o.Fixed == nil {
		o.Fixed = map[string]domain.Value{}
	}

	o.Fixed[key] = v

	return o
}

func (o Overrides) bound(key string, lo, hi float64) Overrides {
	if o.Bounds == nil {
		o.Bounds = map[string][2]float64{}
	}

	if b, ok := o.Bounds[key]; ok {
		lo, hi = math.Max(lo, b[0]), math.Min(hi, b[1])
	}

	o.Bounds[key] = [2]float64{lo, hi}

	return o
}

// SlotOverrides returns the restrictions the interpoint constraints impose on
// candidate i of a batch of n, given the already chosen candidates
// batch[:i]:
//
//   - interpoint equality: followers of a block copy the block leader
//   - interpoint sum: the remaining candidates of the batch must still be
//     able to take their lower bound, so x_i <= rhs - Σ x_prev - (n-i-1)*lb
func (s *Sampler) SlotOverrides(batch []domain.Assignment, i, n int) Overrides {
	var o Overrides

	for _, c := range s.equalities {
		start, _ := c.Block(i, n)
		if i > start && start < len(batch) {
			o = o.fix(c.Feature(), batch[start][c.Feature()])
		}
	}

	for _, c := range s.sums {
		if _, fixed := o.Fixed[c.Feature()]; fixed {
			continue
		}

		f, _ := s.domain.Input(c.Feature())
		lo, hi, _ := domain.NumericBounds(f)

		var prev float64
		for j := 0; j < i && j < len(batch); j++ {
			prev += batch[j].Float(c.Feature())
		}

		// A block leader carries its followers along.
		copies, rest := 1, n-i-1

		for _, eq := range s.equalities {
			if eq.Feature() == c.Feature() {
				_, end := eq.Block(i, n)
				copies, rest = end-i, n-end
			}
		}

		ub := (c.RHS() - prev - float64(rest)*lo) / float64(copies)
		o = o.bound(c.Feature(), lo, math.Min(hi, ub))
	}

	return o
}
