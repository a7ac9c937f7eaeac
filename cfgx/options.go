package cfgx

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Option allows callers to tweak builder behavior before decoding a config struct.
type Option[T any] func(*builder[T])

// Validator represents the validation hook invoked after decoding completes.
type Validator[T any] func(*T) error

// WithDefaults seeds the builder with a value that is cloned before decoding, so
// fields absent from the input keep whatever the seed carried.
func WithDefaults[T any](value T) Option[T] {
	return func(b *builder[T]) {
		b.defaults = func() (T, error) {
			return value, nil
		}
	}
}

// WithDefaultFunc generates the seed lazily.
func WithDefaultFunc[T any](fn func() (T, error)) Option[T] {
	return func(b *builder[T]) {
		b.defaults = fn
	}
}

// WithPreprocess registers one or more preprocessors to run sequentially before decode.
func WithPreprocess[T any](pre ...Preprocessor) Option[T] {
	return func(b *builder[T]) {
		b.preprocessors = append(b.preprocessors, pre...)
	}
}

// WithPreprocessFunc is a convenience for registering inline preprocessors.
func WithPreprocessFunc[T any](fn func(any) (any, error)) Option[T] {
	if fn == nil {
		return func(*builder[T]) {}
	}
	return WithPreprocess[T](Preprocessor(fn))
}

// WithPreprocessEvalFuncs appends the EvalFunc preprocessor.
func WithPreprocessEvalFuncs[T any]() Option[T] {
	return WithPreprocess[T](PreprocessEvalFuncs())
}

// WithDecoder lets callers mutate the underlying mapstructure DecoderConfig.
func WithDecoder[T any](fn func(*mapstructure.DecoderConfig)) Option[T] {
	return func(b *builder[T]) {
		if fn != nil {
			fn(&b.decoderConfig)
		}
	}
}

// WithDecodeHooks appends custom decode hooks after the default set.
func WithDecodeHooks[T any](hooks ...mapstructure.DecodeHookFunc) Option[T] {
	return func(b *builder[T]) {
		for _, hook := range hooks {
			if hook != nil {
				b.decodeHooks = append(b.decodeHooks, hook)
			}
		}
	}
}

// WithStrictKeys rejects input keys that do not map onto a field.
func WithStrictKeys[T any]() Option[T] {
	return func(b *builder[T]) {
		b.decoderConfig.ErrorUnused = true
	}
}

// WithTagName overrides the struct tag key mapstructure uses while decoding.
func WithTagName[T any](tag string) Option[T] {
	return func(b *builder[T]) {
		if tag != "" {
			b.decoderConfig.TagName = tag
		}
	}
}

// WithValidator registers the post-decode validator. Only one validator is allowed.
func WithValidator[T any](validator Validator[T]) Option[T] {
	return func(b *builder[T]) {
		if validator == nil {
			return
		}
		if b.validator != nil {
			b.setOptionError("validator already registered")
			return
		}
		b.validator = validator
	}
}

// WithoutDefaultHooks disables the DefaultDecodeHooks set.
func WithoutDefaultHooks[T any]() Option[T] {
	return func(b *builder[T]) {
		b.useHookSet = false
	}
}

// WithOptionError allows external helpers to surface option misconfiguration errors.
func WithOptionError[T any](err error) Option[T] {
	return func(b *builder[T]) {
		if err != nil && b.optionErr == nil {
			b.optionErr = fmt.Errorf("%w: %w", ErrOption, err)
		}
	}
}
