package config

import (
	"context"
	goerrors "errors"
	"os"
	"strings"
	"syscall"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-provision/koanf/providers/env"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

type ProviderBuilder[C Lifecycle] func(*Container[C]) (Provider, error)

type ProviderType string

type Provider interface {
	Type() ProviderType
	Priority() int
	Validate() error
	Load(context.Context, *koanf.Koanf) error
}

type Loader struct {
	order        int
	providerType ProviderType
	load         func(context.Context, *koanf.Koanf) error
}

func (l *Loader) Priority() int {
	return l.order
}

func (l *Loader) Type() ProviderType {
	return l.providerType
}

func (l *Loader) Load(ctx context.Context, k *koanf.Koanf) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.load(ctx, k)
}

func (l *Loader) Validate() error {
	return l.providerType.validate()
}

const (
	ProviderTypeDefault   ProviderType = "default"
	ProviderTypeLocalFile ProviderType = "file"
	ProviderTypeEnv       ProviderType = "env"
	ProviderTypeFlag      ProviderType = "pflag"
	ProviderTypeStruct    ProviderType = "struct"
)

type Priority int

// container.WithProvider(FileProvider[*provisioner.Base]("base.hcl", PriorityConfig.WithOffset(-5).Int()))
func (p Priority) WithOffset(offset int) Priority {
	return Priority(int(p) + offset)
}

func (p Priority) Int() int {
	return int(p)
}

var (
	PriorityDefaults Priority = 0
	PriorityStruct   Priority = 10
	PriorityConfig   Priority = 20
	PriorityEnv      Priority = 30
	PriorityFlags    Priority = 40
)

var (
	DefaultEnvPrefix    = "PROVISION_"
	DefaultEnvDelimiter = "__" // so keys like log_level keep their underscore
)

func (s ProviderType) String() string {
	return string(s)
}

func (p ProviderType) validate() error {
	switch p {
	case ProviderTypeDefault, ProviderTypeLocalFile, ProviderTypeEnv, ProviderTypeFlag, ProviderTypeStruct:
		return nil
	default:
		return errors.New("invalid loader type", errors.CategoryValidation).
			WithTextCode("INVALID_LOADER_TYPE").
			WithMetadata(map[string]any{
				"loader_type": string(p),
				"valid_types": []string{
					string(ProviderTypeDefault),
					string(ProviderTypeLocalFile),
					string(ProviderTypeEnv),
					string(ProviderTypeFlag),
					string(ProviderTypeStruct),
				},
			})
	}
}

// DefaultValuesProvider loads a map of values. Dotted keys are expanded and unset
// settings in the map are ignored.
func DefaultValuesProvider[C Lifecycle](def map[string]any, order ...int) ProviderBuilder[C] {
	return func(c *Container[C]) (Provider, error) {
		kprovider := confmap.Provider(def, DefaultDelimiter)

		prv := &Loader{
			providerType: ProviderTypeDefault,
			order:        getOrder(PriorityDefaults, order...),
			load: func(ctx context.Context, k *koanf.Koanf) error {
				c.logger.Debug("default values provider: %d key(s)", len(def))
				if err := k.Load(kprovider, nil, c.merger()); err != nil {
					if conflict, ok := mergeConflict(err); ok {
						return conflict
					}
					return errors.Wrap(err, errors.CategoryOperation, "failed to load default values").
						WithTextCode("DEFAULT_VALUES_LOAD_FAILED").
						WithMetadata(map[string]any{
							"values_count": len(def),
						})
				}
				return nil
			},
		}

		return prv, nil
	}
}

// FileProvider loads a JSON, YAML, TOML or HCL file; the format follows the extension.
func FileProvider[C Lifecycle](filepath string, orders ...int) ProviderBuilder[C] {
	filetype := inferConfigFiletype(filepath)

	return func(c *Container[C]) (Provider, error) {
		if err := filetype.Valid(); err != nil {
			return &Loader{}, err
		}
		parser := filetype.Parser()
		kprovider := file.Provider(filepath)

		p := &Loader{
			providerType: ProviderTypeLocalFile,
			order:        getOrder(PriorityConfig, orders...),
			load: func(ctx context.Context, k *koanf.Koanf) error {
				c.logger.Debug("file provider: %s (%s)", filepath, filetype)
				if err := k.Load(kprovider, parser, c.merger()); err != nil {
					if conflict, ok := mergeConflict(err); ok {
						return conflict
					}
					return errors.Wrap(err, errors.CategoryOperation, "failed to load configuration from file").
						WithTextCode("FILE_LOAD_FAILED").
						WithMetadata(map[string]any{
							"filepath":  filepath,
							"file_type": string(filetype),
						})
				}
				return nil
			},
		}
		return p, nil
	}
}

// EnvProvider loads variables starting with prefix, e.g. with "PROVISION_" and "__"
// PROVISION_LOG_LEVEL=debug sets log_level. The values true and false become booleans.
func EnvProvider[C Lifecycle](prefix, delim string, order ...int) ProviderBuilder[C] {
	return func(c *Container[C]) (Provider, error) {
		prv := &Loader{
			providerType: ProviderTypeEnv,
			order:        getOrder(PriorityEnv, order...),
			load: func(ctx context.Context, k *koanf.Koanf) error {
				kprov := env.ProviderWithValue(prefix, delim, func(key, value string) (string, any) {
					key = strings.ToLower(strings.TrimPrefix(key, prefix))
					return key, env.TypedValue(value)
				})
				kprov.SetLogger(c.logger)

				c.logger.Debug("env provider: prefix %s", prefix)
				if err := k.Load(kprov, json.Parser(), c.merger()); err != nil {
					if conflict, ok := mergeConflict(err); ok {
						return conflict
					}
					return errors.Wrap(err, errors.CategoryOperation, "failed to load environment variables").
						WithTextCode("ENV_LOAD_FAILED").
						WithMetadata(map[string]any{
							"prefix":    prefix,
							"delimiter": delim,
						})
				}
				return nil
			},
		}

		return prv, nil
	}
}

// FlagsProvider loads the flags the user changed; flag defaults never override other
// sources. Dashes in flag names map to underscores, so --log-level sets log_level, and
// string flags follow the env rule for true and false.
func FlagsProvider[C Lifecycle](flagset *pflag.FlagSet, order ...int) ProviderBuilder[C] {
	return func(c *Container[C]) (Provider, error) {
		if flagset == nil {
			return &Loader{}, errors.New("flagset cannot be nil", errors.CategoryBadInput).
				WithTextCode("NIL_FLAGSET")
		}

		prv := &Loader{
			providerType: ProviderTypeFlag,
			order:        getOrder(PriorityFlags, order...),
			load: func(ctx context.Context, k *koanf.Koanf) error {
				c.logger.Debug("flags provider")
				prv := posflag.ProviderWithFlag(flagset, DefaultDelimiter, nil, func(f *pflag.Flag) (string, any) {
					if !f.Changed {
						return "", nil
					}
					key := strings.ReplaceAll(f.Name, "-", "_")
					if f.Value.Type() == "string" {
						return key, env.TypedValue(f.Value.String())
					}
					return key, posflag.FlagVal(flagset, f)
				})
				if err := k.Load(prv, nil, c.merger()); err != nil {
					if conflict, ok := mergeConflict(err); ok {
						return conflict
					}
					return errors.Wrap(err, errors.CategoryOperation, "failed to load configuration from posix flags").
						WithTextCode("FLAGS_LOAD_FAILED").
						WithMetadata(map[string]any{
							"delimiter": DefaultDelimiter,
						})
				}
				return nil
			},
		}

		return prv, nil
	}
}

// StructProvider loads a plain struct through its koanf tags. Tag fields with omitempty
// when their zero value should not count as a value:
//
//	type overrides struct {
//		Version string `koanf:"version,omitempty"`
//	}
func StructProvider[C Lifecycle](v any, order ...int) ProviderBuilder[C] {
	if v == nil {
		return func(c *Container[C]) (Provider, error) {
			return &Loader{}, errors.New("struct cannot be nil", errors.CategoryBadInput).
				WithTextCode("NIL_STRUCT")
		}
	}

	return func(c *Container[C]) (Provider, error) {
		kprv := structs.Provider(v, "koanf")

		prv := &Loader{
			providerType: ProviderTypeStruct,
			order:        getOrder(PriorityStruct, order...),
			load: func(ctx context.Context, k *koanf.Koanf) error {
				c.logger.Debug("struct provider")
				if err := k.Load(kprv, nil, c.merger()); err != nil {
					if conflict, ok := mergeConflict(err); ok {
						return conflict
					}
					return errors.Wrap(err,
						errors.CategoryOperation,
						"failed to load configuration from struct",
					).
						WithTextCode("STRUCT_LOAD_FAILED")
				}
				return nil
			},
		}
		return prv, nil
	}
}

type ErrorFilter func(err error) bool

func DefaultErrorFilter(allowedErrors ...error) ErrorFilter {
	return func(err error) bool {
		if err == nil {
			return false
		}

		if len(allowedErrors) == 0 {
			// ignore absent files but surface other errors i.e. a broken HCL file
			return os.IsNotExist(err) || goerrors.Is(err, syscall.ENOENT)
		}

		for _, allowed := range allowedErrors {
			if goerrors.Is(err, allowed) {
				return true
			}
		}

		return false
	}
}

// OptionalProvider wraps a provider so that errors accepted by the filter (missing
// files by default) are ignored.
func OptionalProvider[C Lifecycle](f ProviderBuilder[C], errIgnoreFuncs ...ErrorFilter) ProviderBuilder[C] {
	errIgnore := DefaultErrorFilter()
	if len(errIgnoreFuncs) > 0 && errIgnoreFuncs[0] != nil {
		errIgnore = errIgnoreFuncs[0]
	}

	return func(c *Container[C]) (Provider, error) {
		baseProvider, err := f(c)
		if err != nil {
			return &Loader{}, err
		}

		p := &Loader{
			providerType: baseProvider.Type(),
			order:        baseProvider.Priority(),
			load: func(ctx context.Context, k *koanf.Koanf) error {
				err := baseProvider.Load(ctx, k)
				if err == nil {
					return nil
				}
				if errIgnore(err) {
					c.logger.Debug("optional %s provider skipped: %v", baseProvider.Type(), err)
					return nil
				}
				return err
			},
		}
		return p, nil
	}
}

func getOrder(defaultOrder Priority, orders ...int) int {
	if len(orders) > 0 {
		return orders[0]
	}
	return int(defaultOrder)
}
