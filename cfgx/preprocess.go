package cfgx

import (
	"fmt"
	"reflect"
	"strings"
)

// Preprocessor functions transform raw input before decoding begins.
type Preprocessor func(any) (any, error)

type null struct{}

// Null stands in for an explicit nil in the raw input. mapstructure skips nil values, so
// PreprocessNulls swaps them for Null and OptionalHook/NullHook translate it back.
var Null = null{}

// IsNull reports whether v is the Null marker.
func IsNull(v any) bool {
	_, ok := v.(null)
	return ok
}

// PreprocessNulls replaces every nil map value and slice element with Null so that
// "set to nil" survives decoding while absent keys remain absent.
func PreprocessNulls() Preprocessor {
	return func(input any) (any, error) {
		return markNulls(input), nil
	}
}

func markNulls(input any) any {
	switch v := input.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			if val == nil {
				out[key] = Null
				continue
			}
			out[key] = markNulls(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			if val == nil {
				out[i] = Null
				continue
			}
			out[i] = markNulls(val)
		}
		return out
	default:
		return input
	}
}

// PreprocessEvalFuncs walks maps, structs, slices, and zero-argument function values, replacing
// function fields with their return values. Structs with exported fields become map[string]any;
// opaque structs (no exported fields, e.g. value types) pass through untouched.
func PreprocessEvalFuncs() Preprocessor {
	return func(input any) (any, error) {
		return evalFuncFields(input)
	}
}

func evalFuncFields(input any) (any, error) {
	if input == nil {
		return nil, nil
	}
	val := reflect.ValueOf(input)
	switch val.Kind() {
	case reflect.Map:
		return evalMap(val)
	case reflect.Struct:
		if !hasExportedFields(val.Type()) {
			return input, nil
		}
		return evalStruct(val)
	case reflect.Slice, reflect.Array:
		if val.Kind() == reflect.Slice && val.IsNil() {
			return input, nil
		}
		return evalSlice(val)
	case reflect.Pointer, reflect.Interface:
		if val.IsNil() {
			return nil, nil
		}
		if elem := val.Elem(); elem.Kind() == reflect.Struct && !hasExportedFields(elem.Type()) {
			return input, nil
		}
		return evalFuncFields(val.Elem().Interface())
	case reflect.Func:
		return callFunc(val)
	default:
		return input, nil
	}
}

func hasExportedFields(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}

func evalMap(val reflect.Value) (any, error) {
	result := make(map[string]any, val.Len())
	iter := val.MapRange()
	for iter.Next() {
		strKey, ok := iter.Key().Interface().(string)
		if !ok {
			return nil, fmt.Errorf("cfgx: expected string map key, got %T", iter.Key().Interface())
		}
		evaluated, err := evalFuncFields(iter.Value().Interface())
		if err != nil {
			return nil, err
		}
		result[strKey] = evaluated
	}
	return result, nil
}

func evalStruct(val reflect.Value) (any, error) {
	result := make(map[string]any, val.NumField())
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		key := structKey(field)
		if key == "-" {
			continue
		}
		evaluated, err := evalFuncFields(val.Field(i).Interface())
		if err != nil {
			return nil, err
		}
		result[key] = evaluated
	}
	return result, nil
}

func structKey(field reflect.StructField) string {
	for _, tag := range []string{"koanf", "mapstructure", "json"} {
		if key, _, _ := strings.Cut(field.Tag.Get(tag), ","); key != "" {
			return key
		}
	}
	return strings.TrimSpace(field.Name)
}

func evalSlice(val reflect.Value) (any, error) {
	result := make([]any, val.Len())
	for i := range result {
		evaluated, err := evalFuncFields(val.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		result[i] = evaluated
	}
	return result, nil
}

func callFunc(val reflect.Value) (result any, err error) {
	if val.IsNil() {
		return nil, nil
	}
	if val.Type().NumIn() != 0 || val.Type().NumOut() == 0 {
		return val.Interface(), nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cfgx: eval func panic: %v", r)
		}
	}()
	outputs := val.Call(nil)
	switch len(outputs) {
	case 1:
		return outputs[0].Interface(), nil
	case 2:
		if e, ok := outputs[1].Interface().(error); ok && e != nil {
			return nil, e
		}
		return outputs[0].Interface(), nil
	default:
		return val.Interface(), nil
	}
}
