package acquisition

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUCB(t *testing.T) {
	assert.Equal(t, 1.0+2*0.5, UCB(1, 0.25, Params{Beta: 2}))
	assert.Equal(t, 1.0, UCB(1, -1e-18, Params{Beta: 2}))
}

func TestProbabilityOfImprovement(t *testing.T) {
	assert.InDelta(t, 0.5, ProbabilityOfImprovement(1, 1, Params{BestSoFar: 1}), 1e-12)
	assert.Greater(t, ProbabilityOfImprovement(2, 1, Params{BestSoFar: 1}), 0.5)
	assert.Less(t, ProbabilityOfImprovement(0, 1, Params{BestSoFar: 1}), 0.5)

	// Degenerate variance.
	assert.Equal(t, 1.0, ProbabilityOfImprovement(2, 0, Params{BestSoFar: 1}))
	assert.Equal(t, 0.0, ProbabilityOfImprovement(0, 0, Params{BestSoFar: 1}))
}

func TestExpectedImprovement(t *testing.T) {
	// At the incumbent with unit variance EI = φ(0).
	assert.InDelta(t, 1/math.Sqrt(2*math.Pi), ExpectedImprovement(1, 1, Params{BestSoFar: 1}), 1e-12)

	assert.Equal(t, 0.5, ExpectedImprovement(1.5, 0, Params{BestSoFar: 1}))
	assert.Equal(t, 0.0, ExpectedImprovement(0.5, 0, Params{BestSoFar: 1}))

	// More uncertainty, more expected improvement.
	assert.Greater(t,
		ExpectedImprovement(0.5, 4, Params{BestSoFar: 1}),
		ExpectedImprovement(0.5, 1, Params{BestSoFar: 1}))
}

func TestThompsonSamplingDeterministicWithSeed(t *testing.T) {
	a := ThompsonSampling(1, 2, Params{RandomState: rand.New(rand.NewSource(3))})
	b := ThompsonSampling(1, 2, Params{RandomState: rand.New(rand.NewSource(3))})

	assert.Equal(t, a, b)
	assert.Equal(t, 1.0, ThompsonSampling(1, 0, Params{RandomState: rand.New(rand.NewSource(3))}))
}

func TestLookup(t *testing.T) {
	assert.Equal(t, []string{"ei", "pi", "ts", "ucb"}, Names())

	for _, name := range Names() {
		f, err := Lookup(name)
		require.NoError(t, err)
		assert.NotNil(t, f)
	}

	_, err := Lookup("knowledge_gradient")
	assert.Error(t, err)

	assert.True(t, NeedsRandomState(ThompsonName))
	assert.False(t, NeedsRandomState(EIName))
}
