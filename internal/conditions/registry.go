package conditions

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

// ErrUnknownCondition is returned when a condition type is not registered.
// Unlike data gaps, an unresolvable type is a configuration error and must
// surface to the caller.
var ErrUnknownCondition = errors.New("unknown condition type")

// EvalFunc evaluates a predicate against an enriched series. A returned
// error means the predicate could not be evaluated (missing column, warm-up
// NaN); the registry boundary decides what that means.
type EvalFunc func(s *series.Series, p Params) (bool, error)

// Definition describes one registered condition type.
type Definition struct {
	Type             string `json:"type"`
	Category         string `json:"category"`
	Description      string `json:"description"`
	Parameters       Params `json:"parameters"`
	DefaultTimeframe string `json:"default_timeframe"`

	eval EvalFunc
}

var registry = map[string]Definition{}

func register(d Definition) {
	if _, dup := registry[d.Type]; dup {
		panic("conditions: duplicate registration of " + d.Type)
	}
	registry[d.Type] = d
}

// IsRegistered reports whether a condition type exists in the catalog.
func IsRegistered(condType string) bool {
	_, ok := registry[condType]
	return ok
}

// Catalog returns metadata for every registered condition, sorted by type.
func Catalog() []Definition {
	out := make([]Definition, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Evaluate runs a single condition against an enriched series.
//
// An unregistered type is an error. A nil or near-empty series evaluates to
// false. Predicate evaluation errors are collapsed to false: insufficient
// data is never treated as evidence for a condition.
func Evaluate(condType string, s *series.Series, p Params) (bool, error) {
	def, ok := registry[condType]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownCondition, condType)
	}
	if s == nil || s.Len() < 2 {
		return false, nil
	}
	return collapse(def.eval(s, p)), nil
}

// collapse applies the evaluation-error policy: an error becomes false.
func collapse(met bool, err error) bool {
	if err != nil {
		return false
	}
	return met
}
