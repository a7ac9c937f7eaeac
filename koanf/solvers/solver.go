package solvers

import (
	"fmt"
	"sort"

	"github.com/knadh/koanf/v2"
)

// ConfigSolver rewrites values held by a koanf instance in place, e.g. resolving
// references between keys, and returns the same instance.
type ConfigSolver interface {
	Solve(config *koanf.Koanf) *koanf.Koanf
}

// SolverFunc adapts a plain function to ConfigSolver.
type SolverFunc func(config *koanf.Koanf) *koanf.Koanf

func (f SolverFunc) Solve(config *koanf.Koanf) *koanf.Koanf {
	if f == nil {
		return config
	}
	return f(config)
}

func ToString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}

type delimiters struct {
	Start string
	End   string
}

type entry struct {
	key   string
	value string
}

// stringEntries returns the string leaves of config sorted by key so that solvers
// rewrite values in a stable order.
func stringEntries(config *koanf.Koanf) []entry {
	if config == nil {
		return nil
	}
	all := config.All()
	out := make([]entry, 0, len(all))
	for key, val := range all {
		s, ok := val.(string)
		if !ok {
			continue
		}
		out = append(out, entry{key: key, value: s})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].key < out[j].key
	})
	return out
}
