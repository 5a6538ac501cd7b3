package sampling

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInfeasible is the sentinel wrapped by InfeasibleRegionError.
var ErrInfeasible = errors.New("infeasible region")

// InfeasibleRegionError reports that the sampler could not produce the
// requested number of feasible points within its attempt budget.
type InfeasibleRegionError struct {
	// Requested is the number of points asked for.
	Requested int

	// Found is the number of feasible points produced before giving up.
	Found int

	// Attempts is the number of draws spent.
	Attempts int

	// Constraint describes the constraint (or feature) rejected most often.
	Constraint string
}

// Error implements the error interface.
func (e *InfeasibleRegionError) Error() string {
	msg := fmt.Sprintf("%s: found %d of %d points after %d attempts", ErrInfeasible, e.Found, e.Requested, e.Attempts)
	if e.Constraint != "" {
		msg += ", most violated: " + e.Constraint
	}

	return msg
}

// Unwrap allows errors.Is(err, ErrInfeasible).
func (e *InfeasibleRegionError) Unwrap() error {
	return ErrInfeasible
}

// rejections counts why draws were rejected.
type rejections struct {
	attempts int
	culprits map[string]int
}

func newRejections() *rejections {
	return &rejections{culprits: map[string]int{}}
}

func (r *rejections) add(key string) {
	r.culprits[key]++
}

func (r *rejections) worst() string {
	keys := make([]string, 0, len(r.culprits))
	for k := range r.culprits {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	best, count := "", 0

	for _, k := range keys {
		if r.culprits[k] > count {
			best, count = k, r.culprits[k]
		}
	}

	return best
}

func (r *rejections) err(requested, found int) *InfeasibleRegionError {
	return &InfeasibleRegionError{
		Requested:  requested,
		Found:      found,
		Attempts:   r.attempts,
		Constraint: r.worst(),
	}
}
