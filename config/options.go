package config

import (
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-provision/koanf/solvers"
	"github.com/goliatone/go-provision/logger"
	"github.com/goliatone/go-provision/provisioner"
)

type Option[C Lifecycle] func(c *Container[C]) error

// NewWithOptions is New followed by opts, stopping at the first failing option.
func NewWithOptions[C Lifecycle](base C, opts ...Option[C]) (*Container[C], error) {
	c := New(base)
	for i, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to apply container option").
				WithTextCode("CONTAINER_OPTION_FAILED").
				WithMetadata(map[string]any{"option_index": i})
		}
	}
	return c, nil
}

func WithValidation[C Lifecycle](v bool) Option[C] {
	return func(c *Container[C]) error {
		c.WithValidation(v)
		return nil
	}
}

func WithFinalize[C Lifecycle](v bool) Option[C] {
	return func(c *Container[C]) error {
		c.WithFinalize(v)
		return nil
	}
}

func WithMachine[C Lifecycle](m provisioner.Machine) Option[C] {
	return func(c *Container[C]) error {
		c.WithMachine(m)
		return nil
	}
}

func WithConfigPath[C Lifecycle](p string) Option[C] {
	return func(c *Container[C]) error {
		c.WithConfigPath(p)
		return nil
	}
}

func WithoutDefaultConfigPath[C Lifecycle]() Option[C] {
	return WithConfigPath[C]("")
}

func WithTimeout[C Lifecycle](d time.Duration) Option[C] {
	return func(c *Container[C]) error {
		if d <= 0 {
			return errors.New("load timeout must be positive", errors.CategoryBadInput).
				WithTextCode("INVALID_TIMEOUT").
				WithMetadata(map[string]any{"timeout": d.String()})
		}
		c.WithTimeout(d)
		return nil
	}
}

func WithSolver[C Lifecycle](srcs ...solvers.ConfigSolver) Option[C] {
	return func(c *Container[C]) error {
		c.WithSolver(srcs...)
		return nil
	}
}

func WithSolverPasses[C Lifecycle](passes int) Option[C] {
	return func(c *Container[C]) error {
		c.WithSolverPasses(passes)
		return nil
	}
}

func WithStrictMerge[C Lifecycle]() Option[C] {
	return func(c *Container[C]) error {
		c.WithStrictMerge()
		return nil
	}
}

func WithStrictDecode[C Lifecycle](enabled bool) Option[C] {
	return func(c *Container[C]) error {
		c.WithStrictDecode(enabled)
		return nil
	}
}

// WithLoader builds the providers right away, so a failing builder surfaces from
// NewWithOptions instead of Load.
func WithLoader[C Lifecycle](factories ...ProviderBuilder[C]) Option[C] {
	return func(c *Container[C]) error {
		for i, factory := range factories {
			if factory == nil {
				continue
			}
			provider, err := factory(c)
			if err != nil {
				return errors.Wrap(err, errors.CategoryOperation, "failed to create loader provider").
					WithTextCode("PROVIDER_CREATION_FAILED").
					WithMetadata(map[string]any{
						"factory_index":   i,
						"total_factories": len(factories),
					})
			}
			c.providers = append(c.providers, provider)
		}
		return nil
	}
}

// WithProvider registers builders that run on every Load.
func WithProvider[C Lifecycle](factories ...ProviderBuilder[C]) Option[C] {
	return func(c *Container[C]) error {
		c.WithProvider(factories...)
		return nil
	}
}

func WithLogger[C Lifecycle](logger logger.Logger) Option[C] {
	return func(c *Container[C]) error {
		c.WithLogger(logger)
		return nil
	}
}
