package provisioner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-errors"
)

// Kind tags the dynamic type held by a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindString
	KindSymbol
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Symbol is the normalized identifier form of a textual setting, e.g. force or latest.
type Symbol string

func (s Symbol) String() string { return string(s) }

// Value is what a builder may store in a Setting: nil, a bool, free text or a Symbol.
// The zero Value is nil.
type Value struct {
	kind Kind
	b    bool
	s    string
}

func Nil() Value             { return Value{} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func String(s string) Value  { return Value{kind: KindString, s: s} }
func Sym(name string) Value  { return Value{kind: KindSymbol, s: name} }
func SymOf(s Symbol) Value   { return Sym(string(s)) }
func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNil() bool  { return v.kind == KindNil }
func (v Value) IsBool() bool { return v.kind == KindBool }

// ValueOf converts builder input into a Value. Anything other than nil, bool, string,
// Symbol or Value (or pointers to them) is rejected.
func ValueOf(in any) (Value, error) {
	switch v := in.(type) {
	case nil:
		return Nil(), nil
	case Value:
		return v, nil
	case *Value:
		if v == nil {
			return Nil(), nil
		}
		return *v, nil
	case bool:
		return Bool(v), nil
	case *bool:
		if v == nil {
			return Nil(), nil
		}
		return Bool(*v), nil
	case string:
		return String(v), nil
	case *string:
		if v == nil {
			return Nil(), nil
		}
		return String(*v), nil
	case Symbol:
		return SymOf(v), nil
	default:
		return Nil(), errors.New("unsupported setting value type", errors.CategoryBadInput).
			WithTextCode("UNSUPPORTED_VALUE_TYPE").
			WithMetadata(map[string]any{
				"type":        fmt.Sprintf("%T", in),
				"valid_types": []string{"nil", "bool", "string", "provisioner.Symbol"},
			})
	}
}

// BoolValue returns the boolean and true when v holds a bool.
func (v Value) BoolValue() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Text returns the text of a string or symbol value.
func (v Value) Text() (string, bool) {
	if v.kind == KindString || v.kind == KindSymbol {
		return v.s, true
	}
	return "", false
}

// Symbol returns the identifier when v is already a symbol.
func (v Value) Symbol() (Symbol, bool) {
	if v.kind != KindSymbol {
		return "", false
	}
	return Symbol(v.s), true
}

// CanSymbolize reports whether the value has an identifier form.
func (v Value) CanSymbolize() bool {
	return v.kind == KindString || v.kind == KindSymbol
}

// Symbolize converts a string into its Symbol. Every other kind comes back unchanged.
func (v Value) Symbolize() Value {
	if v.kind == KindString {
		return Sym(v.s)
	}
	return v
}

// String is the plain string form: empty for nil.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString, KindSymbol:
		return v.s
	default:
		return ""
	}
}

// Inspect renders the value with its kind visible: nil, true, "text", :symbol.
func (v Value) Inspect() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindString:
		return strconv.Quote(v.s)
	case KindSymbol:
		if v.s == "" || strings.ContainsAny(v.s, " \t\n\"") {
			return ":" + strconv.Quote(v.s)
		}
		return ":" + v.s
	default:
		return v.String()
	}
}

// MarshalJSON encodes symbols as plain JSON strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNil:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.s)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if v == nil {
		return fmt.Errorf("provisioner value: nil receiver")
	}
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*v = Nil()
		return nil
	}
	var raw any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
