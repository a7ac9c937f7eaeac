package config

import (
	"reflect"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-provision/cfgx"
)

// TextCodeMergeMismatch marks a strict merge rejecting a type change.
const TextCodeMergeMismatch = "MERGE_TYPE_MISMATCH"

// mergeConflict reports err when it is a strict merge mismatch, so callers can return it
// as is instead of hiding its code behind a load failure.
func mergeConflict(err error) (*errors.Error, bool) {
	var e *errors.Error
	if errors.As(err, &e) && e.TextCode == TextCodeMergeMismatch {
		return e, true
	}
	return nil, false
}

// MergeTouched merges src into dst. A key present in src always wins, including nil,
// false and "" values, so a higher priority source can switch a default off. Unset
// optional values (cfgx.Optional) are skipped and nested maps merge key by key.
func MergeTouched(src, dst map[string]any) error {
	return mergeTouched(src, dst, false, "")
}

// MergeTouchedStrict is MergeTouched but rejects a non-nil value whose type differs
// from the non-nil value it would replace.
func MergeTouchedStrict(src, dst map[string]any) error {
	return mergeTouched(src, dst, true, "")
}

func mergeTouched(src, dst map[string]any, strict bool, prefix string) error {
	for key, srcVal := range src {
		path := key
		if prefix != "" {
			path = prefix + DefaultDelimiter + key
		}

		if unsetOptional(srcVal) {
			continue
		}

		dstVal, exists := dst[key]
		if srcMap, ok := srcVal.(map[string]any); ok {
			if dstMap, ok := dstVal.(map[string]any); ok {
				if err := mergeTouched(srcMap, dstMap, strict, path); err != nil {
					return err
				}
				continue
			}
		}

		if strict && exists && srcVal != nil && dstVal != nil &&
			reflect.TypeOf(srcVal) != reflect.TypeOf(dstVal) {
			return errors.New("incompatible types when merging configuration", errors.CategoryBadInput).
				WithTextCode(TextCodeMergeMismatch).
				WithMetadata(map[string]any{
					"key":      path,
					"existing": reflect.TypeOf(dstVal).String(),
					"incoming": reflect.TypeOf(srcVal).String(),
				})
		}

		dst[key] = srcVal
	}
	return nil
}

func unsetOptional(v any) bool {
	if v == nil {
		return false
	}
	if o, ok := v.(cfgx.Optional); ok {
		return !o.IsSet()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return false
	}
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	if o, ok := ptr.Interface().(cfgx.Optional); ok {
		return !o.IsSet()
	}
	return false
}
