package cfgx

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

// Optional is the behavior cfgx needs from a type that remembers whether it was ever
// assigned. Types implementing it (e.g., provisioner.Setting) are registered through
// RegisterOptionalType so OptionalHook can decode into them without importing the concrete type.
type Optional interface {
	SetAny(any) error
	Unset()
	IsSet() bool
}

type optionalRegistration struct {
	mu          sync.RWMutex
	valueType   reflect.Type
	pointerType reflect.Type
}

var optional optionalRegistration

// RegisterOptionalType informs cfgx about an Optional implementation. The sample must be a
// pointer to the concrete type so cfgx can allocate fresh instances.
func RegisterOptionalType(sample Optional) {
	if sample == nil {
		panic("cfgx: nil sample provided to RegisterOptionalType")
	}
	ptrType := reflect.TypeOf(sample)
	if ptrType.Kind() != reflect.Ptr {
		panic(fmt.Sprintf("cfgx: RegisterOptionalType expects pointer type, got %s", ptrType))
	}
	optional.mu.Lock()
	defer optional.mu.Unlock()
	optional.pointerType = ptrType
	optional.valueType = ptrType.Elem()
}

func (r *optionalRegistration) types() (value, pointer reflect.Type) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.valueType, r.pointerType
}

func (r *optionalRegistration) newPointer() Optional {
	valueType, _ := r.types()
	if valueType == nil {
		return nil
	}
	ob, _ := reflect.New(valueType).Interface().(Optional)
	return ob
}

// DefaultDecodeHooks returns the optional and null hooks.
func DefaultDecodeHooks() []mapstructure.DecodeHookFunc {
	return []mapstructure.DecodeHookFunc{
		OptionalHook(),
		NullHook(),
	}
}

// OptionalHook decodes raw input into the registered Optional type. Any value present in the
// input marks the target as set, Null included; absent keys never reach the hook and stay unset.
func OptionalHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		valueType, pointerType := optional.types()
		if valueType == nil || (to != valueType && to != pointerType) {
			return data, nil
		}

		if data != nil {
			switch reflect.TypeOf(data) {
			case valueType:
				if to == pointerType {
					ptr := reflect.New(valueType)
					ptr.Elem().Set(reflect.ValueOf(data))
					return ptr.Interface(), nil
				}
				return data, nil
			case pointerType:
				val := reflect.ValueOf(data)
				if val.IsNil() {
					return reflect.Zero(to).Interface(), nil
				}
				if to == pointerType {
					ptr := reflect.New(valueType)
					ptr.Elem().Set(val.Elem())
					return ptr.Interface(), nil
				}
				return val.Elem().Interface(), nil
			}
		}

		ptr := optional.newPointer()
		if ptr == nil {
			return data, nil
		}
		raw := data
		if IsNull(raw) {
			raw = nil
		}
		if err := ptr.SetAny(raw); err != nil {
			return nil, err
		}
		if to == pointerType {
			return ptr, nil
		}
		return reflect.ValueOf(ptr).Elem().Interface(), nil
	}
}

// NullHook turns the Null marker into the zero value of any target that is not an Optional.
func NullHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if !IsNull(data) {
			return data, nil
		}
		return reflect.Zero(to).Interface(), nil
	}
}
