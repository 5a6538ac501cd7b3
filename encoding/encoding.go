// Package encoding turns domain assignments into numeric vectors that
// surrogate models can consume, and back.
//
// Continuous and discrete inputs are min-max scaled to [0, 1]. Categorical
// inputs are one-hot encoded; categorical inputs with descriptors can
// alternatively be represented by their (scaled) descriptor row.
package encoding

import (
	"fmt"
	"math"

	"github.com/thalesfsp/doe/domain"
)

// Categorical selects how categorical-descriptor inputs are encoded.
type Categorical string

// Categorical encodings.
const (
	OneHot      Categorical = "one_hot"
	Descriptors Categorical = "descriptor"
)

type kind int

const (
	numeric kind = iota
	oneHot
	descriptor
)

type column struct {
	key    string
	kind   kind
	offset int
	width  int

	// numeric
	lower, upper float64

	// categorical
	categories []string

	// descriptor, per descriptor column
	rows        [][]float64
	dlow, dhigh []float64
}

// Encoder maps assignments of a domain to fixed-width vectors.
type Encoder struct {
	columns []column
	names   []string
	width   int
}

// New builds an Encoder for every input of d.
func New(d *domain.Domain, mode Categorical) (*Encoder, error) {
	switch mode {
	case OneHot, Descriptors, "":
	default:
		return nil, fmt.Errorf("unknown categorical encoding %q", mode)
	}

	e := &Encoder{}

	for _, f := range d.Inputs() {
		c := column{key: f.Key(), offset: e.width}

		switch t := f.(type) {
		case *domain.CategoricalDescriptorInput:
			if mode == Descriptors {
				c.kind = descriptor
				c.categories = t.Categories()
				c.rows = t.DescriptorValues()
				c.width = len(t.Descriptors())
				c.dlow, c.dhigh = columnRange(c.rows, c.width)

				for _, name := range t.Descriptors() {
					e.names = append(e.names, f.Key()+"."+name)
				}

				break
			}

			c.kind = oneHot
			c.categories = t.Categories()
			c.width = len(c.categories)

			for _, cat := range c.categories {
				e.names = append(e.names, f.Key()+"="+cat)
			}
		case *domain.CategoricalInput:
			c.kind = oneHot
			c.categories = t.Categories()
			c.width = len(c.categories)

			for _, cat := range c.categories {
				e.names = append(e.names, f.Key()+"="+cat)
			}
		default:
			lo, hi, _ := domain.NumericBounds(f)
			c.kind = numeric
			c.lower, c.upper = lo, hi
			c.width = 1
			e.names = append(e.names, f.Key())
		}

		e.width += c.width
		e.columns = append(e.columns, c)
	}

	return e, nil
}

// Width returns the length of encoded vectors.
func (e *Encoder) Width() int { return e.width }

// Names returns one name per encoded column.
func (e *Encoder) Names() []string { return append([]string(nil), e.names...) }

// Encode maps one assignment to a vector.
func (e *Encoder) Encode(a domain.Assignment) ([]float64, error) {
	out := make([]float64, e.width)

	for _, c := range e.columns {
		v, ok := a[c.key]
		if !ok {
			return nil, fmt.Errorf("encode: missing value for %q", c.key)
		}

		switch c.kind {
		case numeric:
			x, ok := v.Float()
			if !ok {
				return nil, fmt.Errorf("encode: %q expects a number", c.key)
			}

			out[c.offset] = scale(x, c.lower, c.upper)
		case oneHot, descriptor:
			label, _ := v.Category()

			idx := indexOf(c.categories, label)
			if idx < 0 {
				return nil, fmt.Errorf("encode: %q has unknown category %q", c.key, label)
			}

			if c.kind == oneHot {
				out[c.offset+idx] = 1

				continue
			}

			for j := 0; j < c.width; j++ {
				out[c.offset+j] = scale(c.rows[idx][j], c.dlow[j], c.dhigh[j])
			}
		}
	}

	return out, nil
}

// EncodeAll encodes a batch.
func (e *Encoder) EncodeAll(batch []domain.Assignment) ([][]float64, error) {
	out := make([][]float64, len(batch))

	for i, a := range batch {
		x, err := e.Encode(a)
		if err != nil {
			return nil, err
		}

		out[i] = x
	}

	return out, nil
}

// Decode maps a vector back to the nearest assignment: numeric values are
// unscaled and clipped, categorical values take the arg-max (one-hot) or the
// nearest descriptor row. Discrete inputs are not snapped.
func (e *Encoder) Decode(x []float64) (domain.Assignment, error) {
	if len(x) != e.width {
		return nil, fmt.Errorf("decode: expected %d columns, got %d", e.width, len(x))
	}

	a := make(domain.Assignment, len(e.columns))

	for _, c := range e.columns {
		switch c.kind {
		case numeric:
			u := math.Min(1, math.Max(0, x[c.offset]))
			a[c.key] = domain.Number(c.lower + u*(c.upper-c.lower))
		case oneHot:
			best := 0
			for j := 1; j < c.width; j++ {
				if x[c.offset+j] > x[c.offset+best] {
					best = j
				}
			}

			a[c.key] = domain.Label(c.categories[best])
		case descriptor:
			best, bestDist := 0, math.Inf(1)

			for i, row := range c.rows {
				var dist float64

				for j := 0; j < c.width; j++ {
					diff := scale(row[j], c.dlow[j], c.dhigh[j]) - x[c.offset+j]
					dist += diff * diff
				}

				if dist < bestDist {
					best, bestDist = i, dist
				}
			}

			a[c.key] = domain.Label(c.categories[best])
		}
	}

	return a, nil
}

func scale(x, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}

	return (x - lo) / (hi - lo)
}

func indexOf(items []string, s string) int {
	for i, it := range items {
		if it == s {
			return i
		}
	}

	return -1
}

func columnRange(rows [][]float64, width int) (lo, hi []float64) {
	lo = make([]float64, width)
	hi = make([]float64, width)

	for j := 0; j < width; j++ {
		lo[j], hi[j] = math.Inf(1), math.Inf(-1)

		for _, row := range rows {
			lo[j] = math.Min(lo[j], row[j])
			hi[j] = math.Max(hi[j], row[j])
		}
	}

	return lo, hi
}
