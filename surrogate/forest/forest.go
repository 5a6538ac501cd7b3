// Package forest implements a random forest regression surrogate: bagged
// CART trees whose spread across the ensemble serves as uncertainty.
package forest

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/thalesfsp/doe/surrogate"
)

// Defaults.
const (
	DefaultTrees    = 50
	DefaultMaxDepth = 8
	DefaultMinLeaf  = 1
)

// Fitter fits random forests. Zero fields take the package defaults.
type Fitter struct {
	Trees    int
	MaxDepth int
	MinLeaf  int

	// MaxFeatures is the fraction of columns tried per split, in (0, 1].
	MaxFeatures float64

	// Seed makes the bootstrap deterministic.
	Seed int64

	// Parallelism bounds the number of trees fitted concurrently; zero
	// means unbounded.
	Parallelism int
}

// Model is a fitted forest. It is immutable and safe for concurrent use.
type Model struct {
	trees []*node
	floor float64
}

type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node
	value     float64
}

func (n *node) leaf() bool { return n.left == nil }

func (n *node) predict(x []float64) float64 {
	for !n.leaf() {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}

	return n.value
}

// Fit implements surrogate.Fitter. Trees are grown concurrently; every tree
// gets its own generator seeded from Seed in order, so the result does not
// depend on scheduling.
func (f Fitter) Fit(ctx context.Context, X [][]float64, y []float64) (surrogate.Model, error) {
	if err := surrogate.CheckTrainingData(X, y); err != nil {
		return nil, err
	}

	f = f.withDefaults()

	seeds := rand.New(rand.NewSource(f.Seed))
	treeSeeds := make([]int64, f.Trees)

	for i := range treeSeeds {
		treeSeeds[i] = seeds.Int63()
	}

	trees := make([]*node, f.Trees)

	g, gctx := errgroup.WithContext(ctx)
	if f.Parallelism > 0 {
		g.SetLimit(f.Parallelism)
	}

	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(treeSeeds[i]))

			idx := make([]int, len(X))
			for j := range idx {
				idx[j] = rng.Intn(len(X))
			}

			b := builder{X: X, y: y, fitter: f, rng: rng}
			trees[i] = b.grow(idx, 0)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	_, _, scale := surrogate.Standardize(y)

	return &Model{trees: trees, floor: 1e-6 * scale}, nil
}

func (f Fitter) withDefaults() Fitter {
	if f.Trees <= 0 {
		f.Trees = DefaultTrees
	}

	if f.MaxDepth <= 0 {
		f.MaxDepth = DefaultMaxDepth
	}

	if f.MinLeaf <= 0 {
		f.MinLeaf = DefaultMinLeaf
	}

	if f.MaxFeatures <= 0 || f.MaxFeatures > 1 {
		f.MaxFeatures = 1
	}

	return f
}

// Predict implements surrogate.Model: the mean and standard deviation of the
// tree predictions.
func (m *Model) Predict(X [][]float64) (mean, std []float64, err error) {
	mean = make([]float64, len(X))
	std = make([]float64, len(X))

	for q, x := range X {
		var sum, sq float64

		for _, t := range m.trees {
			v := t.predict(x)
			sum += v
			sq += v * v
		}

		n := float64(len(m.trees))
		mu := sum / n
		mean[q] = mu
		std[q] = math.Max(m.floor, math.Sqrt(math.Max(0, sq/n-mu*mu)))
	}

	return mean, std, nil
}

// Trees returns the ensemble size.
func (m *Model) Trees() int { return len(m.trees) }

//////
// Tree growing.
//////

type builder struct {
	X      [][]float64
	y      []float64
	fitter Fitter
	rng    *rand.Rand
}

func (b *builder) grow(idx []int, depth int) *node {
	mean := 0.0
	for _, i := range idx {
		mean += b.y[i]
	}

	mean /= float64(len(idx))

	if depth >= b.fitter.MaxDepth || len(idx) < 2*b.fitter.MinLeaf {
		return &node{value: mean}
	}

	feature, threshold, ok := b.split(idx)
	if !ok {
		return &node{value: mean}
	}

	var left, right []int

	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &node{
		feature:   feature,
		threshold: threshold,
		left:      b.grow(left, depth+1),
		right:     b.grow(right, depth+1),
	}
}

// split finds the variance-minimizing threshold over a random subset of
// columns.
func (b *builder) split(idx []int) (feature int, threshold float64, ok bool) {
	width := len(b.X[0])

	tries := int(math.Ceil(b.fitter.MaxFeatures * float64(width)))
	if tries < 1 {
		tries = 1
	}

	columns := b.rng.Perm(width)[:tries]
	best := math.Inf(1)
	sorted := append([]int(nil), idx...)

	for _, col := range columns {
		sort.SliceStable(sorted, func(i, j int) bool { return b.X[sorted[i]][col] < b.X[sorted[j]][col] })

		var totalSum, totalSq float64

		for _, i := range sorted {
			totalSum += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}

		var leftSum, leftSq float64

		n := len(sorted)

		for k := 0; k < n-1; k++ {
			v := b.y[sorted[k]]
			leftSum += v
			leftSq += v * v

			nl, nr := k+1, n-k-1
			if nl < b.fitter.MinLeaf || nr < b.fitter.MinLeaf {
				continue
			}

			lo, hi := b.X[sorted[k]][col], b.X[sorted[k+1]][col]
			if lo == hi {
				continue
			}

			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))

			if sse < best-1e-12 {
				best, feature, threshold, ok = sse, col, (lo+hi)/2, true
			}
		}
	}

	return feature, threshold, ok
}
