package solvers

import (
	"encoding/base64"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/v2"
)

// ProtocolFunc resolves the part of a reference that follows the protocol separator.
type ProtocolFunc func(fsys fs.FS, uri string) (string, error)

type uris struct {
	fs         fs.FS
	delimiters *delimiters
	protocols  map[string]ProtocolFunc
}

// URISolverOption customises a URI solver.
type URISolverOption func(*uris)

// WithProtocol registers (or replaces) the handler for a protocol name.
func WithProtocol(name string, fn ProtocolFunc) URISolverOption {
	return func(u *uris) {
		if fn == nil {
			delete(u.protocols, name)
			return
		}
		u.protocols[name] = fn
	}
}

// NewURISolver resolves values of the form @file://path, @base64://data and @env://NAME
// against the working directory.
func NewURISolver(s, e string, opts ...URISolverOption) ConfigSolver {
	return NewURISolverWithFS(s, e, os.DirFS("."), opts...)
}

func NewURISolverWithFS(s, e string, f fs.FS, opts ...URISolverOption) ConfigSolver {
	u := &uris{
		fs: f,
		delimiters: &delimiters{
			Start: s,
			End:   e,
		},
		protocols: map[string]ProtocolFunc{
			"file":   SolveFileProtocol,
			"base64": SolveBase64DecodeProtocol,
			"env":    SolveEnvProtocol,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	return u
}

func (s uris) Solve(config *koanf.Koanf) *koanf.Koanf {
	for _, e := range stringEntries(config) {
		s.keypath(e.key, e.value, config)
	}
	return config
}

// keypath only rewrites values that start with the reference; embedded references stay text.
func (s uris) keypath(key, val string, config *koanf.Koanf) {
	if !strings.HasPrefix(val, s.delimiters.Start) {
		return
	}
	rest := val[len(s.delimiters.Start):]
	protocol, uri, ok := strings.Cut(rest, s.delimiters.End)
	if !ok || protocol == "" {
		return
	}

	fn, ok := s.protocols[protocol]
	if !ok {
		return
	}
	if content, err := fn(s.fs, uri); err == nil {
		config.Set(key, content)
	}
}

// SolveFileProtocol reads uri from f and trims trailing newlines.
func SolveFileProtocol(f fs.FS, uri string) (string, error) {
	b, err := fs.ReadFile(f, uri)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\n"), nil
}

func SolveBase64DecodeProtocol(_ fs.FS, uri string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(uri)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SolveEnvProtocol reads an environment variable. Unset variables are an error so the
// reference is kept as written.
func SolveEnvProtocol(_ fs.FS, name string) (string, error) {
	val, ok := os.LookupEnv(name)
	if !ok {
		return "", fs.ErrNotExist
	}
	return val, nil
}
