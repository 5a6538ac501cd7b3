package sampling

import (
	"math"
	"math/rand"

	"github.com/thalesfsp/doe/domain"
)

// plan is the region one draw samples from: pinned values, effective bounds
// of free continuous features and allowed values of the others.
type plan struct {
	fixed      map[string]domain.Value
	lower      map[string]float64
	upper      map[string]float64
	values     map[string][]float64
	categories map[string][]string
}

type activity int

const (
	undecided activity = iota
	active
	inactive
)

// activeFloor is the smallest magnitude given to a feature chosen active.
const activeFloor = 10 * domain.ActivationThreshold

// plan resolves overrides and n-choose-k active sets. A nil plan means the
// region is empty for this draw; culprit names why.
func (s *Sampler) plan(rng *rand.Rand, o Overrides) (p *plan, culprit string) {
	p = &plan{
		fixed:      map[string]domain.Value{},
		lower:      map[string]float64{},
		upper:      map[string]float64{},
		values:     map[string][]float64{},
		categories: map[string][]string{},
	}

	for _, f := range s.domain.Inputs() {
		k := f.Key()

		if v, ok := o.Fixed[k]; ok {
			p.fixed[k] = v

			continue
		}

		b, bounded := o.Bounds[k]

		switch t := f.(type) {
		case *domain.ContinuousInput:
			lo, hi := t.Bounds()
			if bounded {
				lo, hi = math.Max(lo, b[0]), math.Min(hi, b[1])
			}

			switch {
			case lo > hi:
				return nil, k
			case lo == hi:
				p.fixed[k] = domain.Number(lo)
			default:
				p.lower[k], p.upper[k] = lo, hi
			}
		case *domain.DiscreteInput:
			var vs []float64

			for _, v := range t.Values() {
				if !bounded || (v >= b[0] && v <= b[1]) {
					vs = append(vs, v)
				}
			}

			if len(vs) == 0 {
				return nil, k
			}

			p.values[k] = vs
		default:
			p.categories[k] = domain.Categories(f)
		}
	}

	for _, c := range s.nchoosek {
		if !p.chooseActive(rng, c) {
			return nil, c.String()
		}
	}

	return p, ""
}

// activity classifies feature k of c given what the plan already allows.
func (p *plan) activity(k string, c *domain.NChooseKConstraint) activity {
	if v, ok := p.fixed[k]; ok {
		if c.IsActive(k, domain.Assignment{k: v}) {
			return active
		}

		return inactive
	}

	if lo, ok := p.lower[k]; ok {
		switch {
		case lo > domain.ActivationThreshold:
			return active
		case p.upper[k] <= domain.ActivationThreshold:
			return inactive
		default:
			return undecided
		}
	}

	if vs, ok := p.values[k]; ok {
		zero, nonzero := false, false

		for _, v := range vs {
			if math.Abs(v) > domain.ActivationThreshold {
				nonzero = true
			} else {
				zero = true
			}
		}

		return classify(zero, nonzero)
	}

	cats := p.categories[k]
	baseline, other := false, false

	for i := range cats {
		if c.IsActive(k, domain.Assignment{k: domain.Label(cats[i])}) {
			other = true
		} else {
			baseline = true
		}
	}

	return classify(baseline, other)
}

func classify(canBeInactive, canBeActive bool) activity {
	switch {
	case canBeInactive && canBeActive:
		return undecided
	case canBeActive:
		return active
	default:
		return inactive
	}
}

// chooseActive draws an allowed active count consistent with the features
// already decided and restricts the undecided ones accordingly.
func (p *plan) chooseActive(rng *rand.Rand, c *domain.NChooseKConstraint) bool {
	var free []string

	decided := 0

	for _, k := range c.Features() {
		switch p.activity(k, c) {
		case active:
			decided++
		case undecided:
			free = append(free, k)
		}
	}

	var counts []int

	for _, n := range c.AllowedCounts() {
		if n >= decided && n <= decided+len(free) {
			counts = append(counts, n)
		}
	}

	if len(counts) == 0 {
		return false
	}

	n := counts[rng.Intn(len(counts))] - decided
	order := rng.Perm(len(free))

	for i, idx := range order {
		k := free[idx]

		var ok bool
		if i < n {
			ok = p.activate(k, c)
		} else {
			ok = p.deactivate(k, c)
		}

		if !ok {
			return false
		}
	}

	return true
}

func (p *plan) activate(k string, c *domain.NChooseKConstraint) bool {
	if lo, ok := p.lower[k]; ok {
		hi := p.upper[k]

		floor := activeFloor
		if floor >= hi {
			floor = (domain.ActivationThreshold + hi) / 2
		}

		p.lower[k] = math.Max(lo, floor)

		return p.lower[k] < hi
	}

	if vs, ok := p.values[k]; ok {
		var kept []float64

		for _, v := range vs {
			if math.Abs(v) > domain.ActivationThreshold {
				kept = append(kept, v)
			}
		}

		p.values[k] = kept

		return len(kept) > 0
	}

	var kept []string

	for _, cat := range p.categories[k] {
		if c.IsActive(k, domain.Assignment{k: domain.Label(cat)}) {
			kept = append(kept, cat)
		}
	}

	p.categories[k] = kept

	return len(kept) > 0
}

func (p *plan) deactivate(k string, c *domain.NChooseKConstraint) bool {
	if lo, ok := p.lower[k]; ok {
		delete(p.lower, k)
		delete(p.upper, k)
		p.fixed[k] = domain.Number(math.Max(lo, 0))

		return true
	}

	if vs, ok := p.values[k]; ok {
		delete(p.values, k)

		for _, v := range vs {
			if math.Abs(v) <= domain.ActivationThreshold {
				p.fixed[k] = domain.Number(v)

				return true
			}
		}

		return false
	}

	cats := p.categories[k]
	delete(p.categories, k)

	for _, cat := range cats {
		if !c.IsActive(k, domain.Assignment{k: domain.Label(cat)}) {
			p.fixed[k] = domain.Label(cat)

			return true
		}
	}

	return false
}
