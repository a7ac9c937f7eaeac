package provisioner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-provision/logger"
	"github.com/mitchellh/copystructure"
)

func init() {
	// a plain struct copy keeps the set flags and the collaborators.
	copystructure.Copiers[reflect.TypeOf(Base{})] = func(v any) (any, error) {
		return v.(Base), nil
	}
}

// Base holds the settings shared by every Chef flavoured provisioner. All settings
// start unset; Finalize resolves the ones the user never touched.
type Base struct {
	// BinaryPath is the directory holding the tool's executables.
	BinaryPath Setting `koanf:"binary_path"`
	// BinaryEnv is prepended to the tool's command line, e.g. "HTTP_PROXY=..".
	BinaryEnv Setting `koanf:"binary_env"`
	// Install is true, false or the symbol force (reinstall even when present).
	Install Setting `koanf:"install"`
	// LogLevel is passed through to the tool.
	LogLevel Setting `koanf:"log_level"`
	// Prerelease allows installing prerelease builds.
	Prerelease Setting `koanf:"prerelease"`
	// Version selects the release to install; latest keeps whatever is installed.
	Version Setting `koanf:"version"`

	messages Catalog
	detect   Detector
	logger   logger.Logger
}

// New returns a Base with every setting unset.
func New(opts ...Option) *Base {
	b := &Base{}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

var (
	defaultInstall  = Bool(true)
	defaultLogLevel = Sym("info")
	defaultVersion  = Sym("latest")
)

// Finalize fills in defaults for unset settings, then symbolizes install, version and
// log_level. Calling it again changes nothing.
func (b *Base) Finalize() {
	b.BinaryPath.Default(Nil())
	b.BinaryEnv.Default(Nil())
	b.Install.Default(defaultInstall)
	b.LogLevel.Default(defaultLogLevel)
	b.Prerelease.Default(Bool(false))
	b.Version.Default(defaultVersion)

	b.Install.Set(b.Install.Value().Symbolize())
	b.Version.Set(b.Version.Value().Symbolize())
	b.LogLevel.Set(b.LogLevel.Value().Symbolize())

	b.log().Debug("finalized provisioner settings install=%s version=%s log_level=%s",
		b.Install.String(), b.Version.String(), b.LogLevel.String())
}

// Validate returns every problem found, the detector's first. It must run after
// Finalize: an unfinalized Base reports a blank log level.
func (b *Base) Validate(machine Machine) []string {
	errs := b.detector()(machine, b.Declared())
	if errs == nil {
		errs = make([]string, 0)
	}

	// Finalize always sets log_level; this guards wrappers that replace Finalize.
	if Missing(b.LogLevel.Value()) {
		errs = append(errs, b.catalog().T(MsgLogLevelEmpty))
	}

	if len(errs) > 0 {
		name := "<none>"
		if machine != nil {
			name = machine.Name()
		}
		b.log().Warn("provisioner config for machine %s has %d error(s)", name, len(errs))
	}
	return errs
}

// Missing reports whether the string form of v is blank.
func Missing(v any) bool {
	var s string
	switch t := v.(type) {
	case nil:
	case Value:
		s = t.String()
	case Setting:
		s = t.value.String()
	case *Setting:
		s = t.Value().String()
	case string:
		s = t
	case fmt.Stringer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return true
		}
		s = t.String()
	default:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return true
		}
		s = fmt.Sprint(v)
	}
	return strings.TrimSpace(s) == ""
}

// Declared lists the settings with the kinds they may hold.
func (b *Base) Declared() []Declared {
	return []Declared{
		{Name: "binary_path", Setting: &b.BinaryPath, Kinds: []Kind{KindNil, KindString}},
		{Name: "binary_env", Setting: &b.BinaryEnv, Kinds: []Kind{KindNil, KindString}},
		{Name: "install", Setting: &b.Install, Kinds: []Kind{KindBool, KindString, KindSymbol}},
		// nil is left to the blank log level check.
		{Name: "log_level", Setting: &b.LogLevel, Kinds: []Kind{KindNil, KindString, KindSymbol}},
		{Name: "prerelease", Setting: &b.Prerelease, Kinds: []Kind{KindBool}},
		{Name: "version", Setting: &b.Version, Kinds: []Kind{KindString, KindSymbol}},
	}
}

// Finalized reports whether no setting is left unset.
func (b *Base) Finalized() bool {
	for _, f := range b.Declared() {
		if !f.Setting.IsSet() {
			return false
		}
	}
	return true
}

// Set assigns a setting by key.
func (b *Base) Set(name string, v any) error {
	s, ok := b.lookup(name)
	if !ok {
		return b.unknown(name)
	}
	return s.SetAny(v)
}

// Get returns a setting's value and whether it has been set.
func (b *Base) Get(name string) (Value, bool) {
	s, ok := b.lookup(name)
	if !ok {
		return Nil(), false
	}
	return s.ValueOK()
}

func (b *Base) lookup(name string) (*Setting, bool) {
	for _, f := range b.Declared() {
		if f.Name == name {
			return f.Setting, true
		}
	}
	return nil, false
}

func (b *Base) unknown(name string) error {
	return errors.New(b.catalog().T(MsgUnknownSetting, map[string]any{"field": name}), errors.CategoryBadInput).
		WithTextCode("UNKNOWN_SETTING").
		WithMetadata(map[string]any{"setting": name})
}

// MarshalJSON writes only the settings that are set.
func (b *Base) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, f := range b.Declared() {
		v, ok := f.Setting.ValueOK()
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(f.Name)
		val, err := v.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON sets the keys present in data and leaves the others untouched.
func (b *Base) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for name, msg := range raw {
		s, ok := b.lookup(name)
		if !ok {
			return b.unknown(name)
		}
		if err := s.UnmarshalJSON(msg); err != nil {
			return errors.Wrap(err, errors.CategoryBadInput, "invalid provisioner setting").
				WithTextCode("INVALID_SETTING").
				WithMetadata(map[string]any{"setting": name})
		}
	}
	return nil
}

func (b *Base) catalog() Catalog {
	if b.messages == nil {
		return DefaultCatalog()
	}
	return b.messages
}

func (b *Base) detector() Detector {
	if b.detect == nil {
		return KindDetector(b.catalog())
	}
	return b.detect
}

func (b *Base) log() logger.Logger {
	if b.logger == nil {
		return logger.Nop()
	}
	return b.logger
}
