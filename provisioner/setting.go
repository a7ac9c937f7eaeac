package provisioner

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/goliatone/go-provision/cfgx"
	"github.com/mitchellh/copystructure"
)

func init() {
	copystructure.Copiers[reflect.TypeOf(Setting{})] = func(v any) (any, error) {
		return v.(Setting), nil
	}
	copystructure.Copiers[reflect.TypeOf(&Setting{})] = func(v any) (any, error) {
		s, _ := v.(*Setting)
		if s == nil {
			return (*Setting)(nil), nil
		}
		clone := *s
		return &clone, nil
	}
	cfgx.RegisterOptionalType(&Setting{})
}

// Setting is a single user-settable option. Its zero value is unset, which is a
// different state from being set to nil, false or "".
type Setting struct {
	set   bool
	value Value
}

// NewSetting returns a Setting that is already set to v.
func NewSetting(v Value) Setting {
	return Setting{set: true, value: v}
}

func (s *Setting) Set(v Value) {
	if s == nil {
		return
	}
	s.value = v
	s.set = true
}

// SetAny converts in with ValueOf and stores it. Unsupported types leave s untouched.
func (s *Setting) SetAny(in any) error {
	v, err := ValueOf(in)
	if err != nil {
		return err
	}
	s.Set(v)
	return nil
}

func (s *Setting) Unset() {
	if s == nil {
		return
	}
	*s = Setting{}
}

func (s *Setting) IsSet() bool {
	return s != nil && s.set
}

// Value returns the stored value, nil when unset.
func (s *Setting) Value() Value {
	if s == nil {
		return Nil()
	}
	return s.value
}

func (s *Setting) ValueOK() (Value, bool) {
	if s == nil {
		return Nil(), false
	}
	return s.value, s.set
}

// Or returns the stored value when set, otherwise def.
func (s *Setting) Or(def Value) Value {
	if s.IsSet() {
		return s.value
	}
	return def
}

// Default assigns def only while the setting is unset and reports whether it did.
func (s *Setting) Default(def Value) bool {
	if s == nil || s.set {
		return false
	}
	s.Set(def)
	return true
}

func (s *Setting) String() string {
	if s == nil {
		return "<nil>"
	}
	if !s.set {
		return "<unset>"
	}
	return s.value.Inspect()
}

// MarshalJSON writes null for unset settings; Base.MarshalJSON omits them instead.
func (s *Setting) MarshalJSON() ([]byte, error) {
	if s == nil || !s.set {
		return []byte("null"), nil
	}
	return s.value.MarshalJSON()
}

// UnmarshalJSON always marks the setting as set: a JSON null is an explicit nil.
func (s *Setting) UnmarshalJSON(data []byte) error {
	if s == nil {
		return fmt.Errorf("provisioner setting: nil receiver")
	}
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	s.Set(v)
	return nil
}
