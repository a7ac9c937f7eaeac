package env

import (
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/goliatone/go-provision/logger"
	"github.com/tidwall/sjson"
)

// Env is an environment variables provider that builds a JSON document, so nested keys
// and array indexes both work:
//
//	PROVISION_MACHINES__0__NAME=web
//	PROVISION_MACHINES__1__NAME=db
type Env struct {
	prefix string
	delim  string
	cb     func(key string, value string) (string, any)
	logger logger.Logger
}

// Provider returns an environment variables provider. Nesting is defined by delim, so
// with "__" the variable PARENT__CHILD=1 becomes {"PARENT":{"CHILD":"1"}}.
//
// If prefix is specified (case-sensitive), only the variables with the prefix are
// captured. cb optionally transforms the variable name, e.g. to strip the prefix and
// lowercase it; returning an empty string skips the variable.
func Provider(prefix, delim string, cb func(s string) string) *Env {
	e := &Env{
		prefix: prefix,
		delim:  delim,
	}
	if cb != nil {
		e.cb = func(key string, value string) (string, any) {
			return cb(key), value
		}
	}
	return e
}

// ProviderWithValue works like Provider but the callback sees and may replace the value,
// e.g. to turn "false" into a bool.
func ProviderWithValue(prefix, delim string, cb func(key string, value string) (string, any)) *Env {
	return &Env{
		prefix: prefix,
		delim:  delim,
		cb:     cb,
	}
}

// SetLogger sets the logger used to report skipped variables.
func (e *Env) SetLogger(l logger.Logger) {
	e.logger = l
}

// ReadBytes collects the matching variables into a JSON document.
func (e *Env) ReadBytes() ([]byte, error) {
	var keys []string
	for _, kv := range os.Environ() {
		if e.prefix != "" && !strings.HasPrefix(kv, e.prefix) {
			continue
		}
		keys = append(keys, kv)
	}
	sort.Strings(keys)

	out := "{}"
	for _, kv := range keys {
		name, raw, _ := strings.Cut(kv, "=")

		var (
			key   = name
			value any = raw
		)
		if e.cb != nil {
			key, value = e.cb(name, raw)
			if key == "" {
				e.log().Debug("env provider skipped %s", name)
				continue
			}
		}

		next, err := sjson.Set(out, strings.ReplaceAll(key, e.delim, "."), value)
		if err != nil {
			return []byte{}, err
		}
		out = next
	}

	return []byte(out), nil
}

// Read is not supported by the env provider.
func (e *Env) Read() (map[string]any, error) {
	return nil, errors.New("envextended provider does not support this method")
}

// TypedValue turns the literals true and false into booleans and keeps everything else
// as text.
func TypedValue(value string) any {
	switch value {
	case "true":
		return true
	case "false":
		return false
	default:
		return value
	}
}

func (e *Env) log() logger.Logger {
	if e.logger == nil {
		return logger.Nop()
	}
	return e.logger
}
