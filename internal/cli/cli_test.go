package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/doe/strategy"
)

const domainJSON = `{
  "inputs": [
    {"type": "ContinuousInput", "key": "x1", "bounds": [0, 1]},
    {"type": "ContinuousInput", "key": "x2", "bounds": [0, 1]}
  ],
  "outputs": [
    {"type": "ContinuousOutput", "key": "y", "objective": {"kind": "maximize"}}
  ],
  "constraints": [
    {"type": "LinearInequalityConstraint", "features": ["x1", "x2"], "coefficients": [1, 1], "rhs": 1}
  ]
}`

const experimentsCSV = `x1,x2,y
0.1,0.2,0.5
0.4,0.3,0.9
0.2,0.7,0.4
0.6,0.1,0.7
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// run executes the command line and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), err
}

func csvRows(out string) []string {
	return strings.Split(strings.TrimSpace(out), "\n")
}

func TestValidate(t *testing.T) {
	d := writeTemp(t, "domain.json", domainJSON)
	e := writeTemp(t, "runs.csv", experimentsCSV)

	out, err := run(t, "validate", d, "--experiments", e)
	require.NoError(t, err)

	assert.Contains(t, out, "domain ok: 2 inputs, 1 outputs, 1 constraints")
	assert.Contains(t, out, "experiments ok: 4 rows, 0 excluded")

	bad := writeTemp(t, "runs.csv", "x1,y\n0.1,0.5\n")

	_, err = run(t, "validate", d, "--experiments", bad)
	assert.Error(t, err)
}

func TestValidateYAML(t *testing.T) {
	d := writeTemp(t, "domain.yaml", `
inputs:
  - {type: ContinuousInput, key: x, bounds: [0, 10]}
  - {type: CategoricalInput, key: solvent, categories: [water, ethanol]}
outputs:
  - {type: ContinuousOutput, key: yield, objective: {kind: maximize}}
constraints: []
`)

	out, err := run(t, "validate", d)
	require.NoError(t, err)
	assert.Contains(t, out, "2 inputs")
}

func TestSample(t *testing.T) {
	d := writeTemp(t, "domain.json", domainJSON)

	out, err := run(t, "sample", d, "-n", "5", "--seed", "3")
	require.NoError(t, err)

	rows := csvRows(out)
	require.Len(t, rows, 6)
	assert.Equal(t, "x1,x2", rows[0])

	again, err := run(t, "sample", d, "-n", "5", "--seed", "3")
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestAsk(t *testing.T) {
	d := writeTemp(t, "domain.json", domainJSON)
	e := writeTemp(t, "runs.csv", experimentsCSV)

	t.Setenv("DOE_OPTIONS_NUM_CANDIDATES", "64")

	out, err := run(t, "ask", d, "--experiments", e, "--strategy", "bayesian", "-n", "2")
	require.NoError(t, err)

	rows := csvRows(out)
	require.Len(t, rows, 3)
	assert.Equal(t, "x1,x2,y_pred,y_sd,score", rows[0])
}

func TestAskNeedsData(t *testing.T) {
	d := writeTemp(t, "domain.json", domainJSON)

	_, err := run(t, "ask", d, "--strategy", "tree")
	assert.ErrorIs(t, err, strategy.ErrNotReady)

	out, err := run(t, "ask", d, "--strategy", "space_filling", "-n", "3")
	require.NoError(t, err)
	assert.Len(t, csvRows(out), 4)
}

func TestBenchmark(t *testing.T) {
	t.Setenv("DOE_LOOP_INITIAL_SAMPLES", "4")
	t.Setenv("DOE_LOOP_ITERATIONS", "3")

	results := filepath.Join(t.TempDir(), "runs.csv")

	out, err := run(t, "benchmark", "branin", "--strategy", "random", "--out", results)
	require.NoError(t, err)

	assert.Contains(t, out, "benchmark: branin")
	assert.Contains(t, out, "experiments: 7")
	assert.Contains(t, out, "best: x1=")

	data, err := os.ReadFile(results)
	require.NoError(t, err)
	assert.Len(t, csvRows(string(data)), 8)

	_, err = run(t, "benchmark", "rosenbrock")
	assert.Error(t, err)
}

func TestStrategies(t *testing.T) {
	out, err := run(t, "strategies")
	require.NoError(t, err)

	for _, name := range strategy.Names() {
		assert.Contains(t, out, name)
	}
}

func TestBadConfig(t *testing.T) {
	cfg := writeTemp(t, "doe.yaml", "log:\n  format: xml\n")

	_, err := run(t, "strategies", "--config", cfg)
	assert.Error(t, err)
}
