package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Value is a single feature value: either a number (continuous and discrete
// features, outputs) or a category label (categorical features).
//
// The zero Value is the number 0.
type Value struct {
	num         float64
	cat         string
	categorical bool
}

// Number returns a numeric Value.
func Number(v float64) Value {
	return Value{num: v}
}

// Label returns a categorical Value.
func Label(c string) Value {
	return Value{cat: c, categorical: true}
}

// IsCategorical reports whether v holds a category label.
func (v Value) IsCategorical() bool {
	return v.categorical
}

// Float returns the numeric payload. ok is false for categorical values.
func (v Value) Float() (f float64, ok bool) {
	return v.num, !v.categorical
}

// Category returns the label payload. ok is false for numeric values.
func (v Value) Category() (c string, ok bool) {
	return v.cat, v.categorical
}

// Equal reports whether both values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.categorical != o.categorical {
		return false
	}

	if v.categorical {
		return v.cat == o.cat
	}

	return v.num == o.num || (math.IsNaN(v.num) && math.IsNaN(o.num))
}

// String renders the value the way it appears in a CSV cell.
func (v Value) String() string {
	if v.categorical {
		return v.cat
	}

	return strconv.FormatFloat(v.num, 'g', -1, 64)
}

// MarshalJSON encodes numbers as JSON numbers and labels as JSON strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.categorical {
		return json.Marshal(v.cat)
	}

	return json.Marshal(v.num)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch t := raw.(type) {
	case float64:
		*v = Number(t)
	case string:
		*v = Label(t)
	default:
		return fmt.Errorf("value must be a number or a string, got %s", string(data))
	}

	return nil
}

// Assignment maps feature keys to values. It is the representation of both
// observed experiment inputs and proposed candidates.
type Assignment map[string]Value

// Clone returns a shallow copy (values are immutable).
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}

	return out
}

// Float returns the numeric value stored under key, or NaN when the key is
// absent or categorical.
func (a Assignment) Float(key string) float64 {
	v, ok := a[key]
	if !ok {
		return math.NaN()
	}

	f, ok := v.Float()
	if !ok {
		return math.NaN()
	}

	return f
}

// Equal reports whether both assignments hold the same keys and values.
func (a Assignment) Equal(o Assignment) bool {
	if len(a) != len(o) {
		return false
	}

	for k, v := range a {
		w, ok := o[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}

	return true
}

// Keys returns the assignment keys in lexical order.
func (a Assignment) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
