package domain

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// experimentNamespace scopes content-derived experiment identities.
var experimentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/thalesfsp/doe/experiment"))

// Experiment is one observed record: inputs, possibly partial outputs and
// metadata.
type Experiment struct {
	// ID identifies the record. When empty the identity is derived from the
	// content, see Identity.
	ID string `json:"id,omitempty"`

	// Inputs holds a value for every domain input.
	Inputs Assignment `json:"inputs"`

	// Outputs may be partial; missing outputs are simply unknown.
	Outputs map[string]float64 `json:"outputs,omitempty"`

	// Excluded marks a record kept in history but ignored for model fitting.
	Excluded bool `json:"excluded,omitempty"`

	// Labels is free-form metadata.
	Labels map[string]string `json:"labels,omitempty"`
}

// Identity returns ID when set, otherwise a name-based UUID computed from
// the inputs and outputs, so re-telling the same record is a no-op.
func (e Experiment) Identity() string {
	if e.ID != "" {
		return e.ID
	}

	var b strings.Builder

	for _, k := range e.Inputs.Keys() {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(e.Inputs[k].String())
		b.WriteByte(';')
	}

	b.WriteByte('|')

	keys := make([]string, 0, len(e.Outputs))
	for k := range e.Outputs {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(e.Outputs[k], 'g', -1, 64))
		b.WriteByte(';')
	}

	return uuid.NewSHA1(experimentNamespace, []byte(b.String())).String()
}

// HasOutput reports whether output key was observed.
func (e Experiment) HasOutput(key string) bool {
	y, ok := e.Outputs[key]

	return ok && !math.IsNaN(y)
}

// Prediction is a model's estimate for one output.
type Prediction struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Candidate is a proposed experiment.
type Candidate struct {
	// Inputs is a feasible assignment of every domain input.
	Inputs Assignment `json:"inputs"`

	// Predictions per output, set by model-backed strategies.
	Predictions map[string]Prediction `json:"predictions,omitempty"`

	// Score is the acquisition value, set by model-backed strategies.
	Score *float64 `json:"score,omitempty"`
}

// Assignments extracts the inputs of a batch of candidates.
func Assignments(cs []Candidate) []Assignment {
	out := make([]Assignment, len(cs))
	for i, c := range cs {
		out[i] = c.Inputs
	}

	return out
}
