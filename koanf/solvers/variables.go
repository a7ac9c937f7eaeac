package solvers

import (
	"strings"

	"github.com/knadh/koanf/v2"
)

type variables struct {
	delimiters *delimiters
}

// NewVariablesSolver replaces references such as ${binary_path} with the value held by the
// referenced key. A value made of a single reference takes the referenced value as is, so
// "${defaults.install}" can resolve to a bool. Embedded references are rendered as text.
// Unknown keys are left untouched.
func NewVariablesSolver(s, e string) ConfigSolver {
	return &variables{
		delimiters: &delimiters{
			Start: s,
			End:   e,
		},
	}
}

func (s variables) Solve(config *koanf.Koanf) *koanf.Koanf {
	for _, e := range stringEntries(config) {
		s.keypath(e.key, e.value, config)
	}
	return config
}

func (s variables) keypath(key, val string, config *koanf.Koanf) {
	if path, ok := s.whole(val); ok {
		if path == key || !config.Exists(path) {
			return
		}
		config.Set(key, config.Get(path))
		return
	}

	out, changed := s.replaceAll(key, val, config)
	if changed {
		config.Set(key, out)
	}
}

// whole reports whether val is exactly one reference.
func (s variables) whole(val string) (string, bool) {
	start, end := s.delimiters.Start, s.delimiters.End
	if !strings.HasPrefix(val, start) || !strings.HasSuffix(val, end) {
		return "", false
	}
	path := val[len(start) : len(val)-len(end)]
	if path == "" || strings.Contains(path, start) || strings.Contains(path, end) {
		return "", false
	}
	return path, true
}

func (s variables) replaceAll(key, input string, config *koanf.Koanf) (string, bool) {
	start, end := s.delimiters.Start, s.delimiters.End

	var (
		b       strings.Builder
		changed bool
		rest    = input
	)
	for {
		i := strings.Index(rest, start)
		if i == -1 {
			break
		}
		j := strings.Index(rest[i+len(start):], end)
		if j == -1 {
			break
		}
		path := rest[i+len(start) : i+len(start)+j]
		token := rest[i : i+len(start)+j+len(end)]

		b.WriteString(rest[:i])
		if path != "" && path != key && config.Exists(path) {
			b.WriteString(ToString(config.Get(path)))
			changed = true
		} else {
			b.WriteString(token)
		}
		rest = rest[i+len(token):]
	}
	b.WriteString(rest)
	return b.String(), changed
}
