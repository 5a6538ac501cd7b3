package expression

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileCollectsIdentifiers(t *testing.T) {
	p, err := Compile("sqrt(x1 * x2) + x3 ** 2 - abs(x1)")
	require.NoError(t, err)

	assert.Equal(t, []string{"x1", "x2", "x3"}, p.Identifiers())
	assert.Equal(t, "sqrt(x1 * x2) + x3 ** 2 - abs(x1)", p.Source())
}

func TestEval(t *testing.T) {
	tests := []struct {
		name   string
		source string
		env    map[string]float64
		want   float64
	}{
		{"polynomial", "x**2 + y**2 - 1", map[string]float64{"x": 0.6, "y": 0.8}, 0},
		{"integer literal result", "2", nil, 2},
		{"math function", "exp(a) - 1", map[string]float64{"a": 0}, 0},
		{"builtin", "max(a, b)", map[string]float64{"a": 1, "b": 3}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.source)
			require.NoError(t, err)

			got, err := p.Eval(tt.env)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestEvalMissingIdentifier(t *testing.T) {
	p, err := Compile("x + y")
	require.NoError(t, err)

	got, err := p.Eval(map[string]float64{"x": 1})
	require.Error(t, err)
	assert.True(t, math.IsNaN(got))
	assert.Contains(t, err.Error(), `"y"`)
}

func TestCompileRejectsGarbage(t *testing.T) {
	_, err := Compile("x1 +* )")
	require.Error(t, err)
}

func TestEngineConcurrentCache(t *testing.T) {
	e := NewEngine()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			got, err := e.Evaluate("a * 2", map[string]float64{"a": float64(i)})
			assert.NoError(t, err)
			assert.Equal(t, float64(2*i), got)
		}(i)
	}

	wg.Wait()

	assert.Len(t, e.cache, 1)
}
