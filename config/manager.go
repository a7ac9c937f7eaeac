package config

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-provision/cfgx"
	"github.com/goliatone/go-provision/koanf/solvers"
	"github.com/goliatone/go-provision/logger"
	"github.com/goliatone/go-provision/provisioner"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/copystructure"
)

var (
	DefaultDelimiter      = "."
	DefaultConfigFilepath = "config/provision.json"
	DefaultLoadTimeout    = 30 * time.Second
)

// Lifecycle is a config object with deferred defaults: values are collected first,
// Finalize resolves what was never set, and Validate reports what is wrong.
type Lifecycle interface {
	Finalize()
	Validate(machine provisioner.Machine) []string
}

type Container[C Lifecycle] struct {
	K            *koanf.Koanf
	base         C
	seed         C
	seeded       bool
	providers    []Provider
	mustValidate bool
	finalize     bool
	strictMerge  bool
	strictDecode bool
	machine      provisioner.Machine
	loadTimeout  time.Duration
	delimiter    string
	configPath   string
	solvers      []solvers.ConfigSolver
	solverPasses int
	logger       logger.Logger
	errs         []string

	loaders []ProviderBuilder[C]
}

// WithValidation controls whether Load fails when Validate reports problems. The
// problems are always available from Errors.
func (c *Container[C]) WithValidation(v bool) *Container[C] {
	c.mustValidate = v
	return c
}

// WithFinalize controls whether Load calls Finalize after decoding.
func (c *Container[C]) WithFinalize(v bool) *Container[C] {
	c.finalize = v
	return c
}

// WithMachine sets the machine handed to Validate.
func (c *Container[C]) WithMachine(m provisioner.Machine) *Container[C] {
	c.machine = m
	return c
}

// WithStrictMerge rejects sources that change the type of an existing value.
func (c *Container[C]) WithStrictMerge() *Container[C] {
	c.strictMerge = true
	return c
}

// WithStrictDecode rejects keys that C does not declare.
func (c *Container[C]) WithStrictDecode(enabled bool) *Container[C] {
	c.strictDecode = enabled
	return c
}

func (c *Container[C]) WithTimeout(timeout time.Duration) *Container[C] {
	c.loadTimeout = timeout
	return c
}

func (c *Container[C]) WithConfigPath(p string) *Container[C] {
	c.configPath = p
	return c
}

func (c *Container[C]) WithSolver(slvrs ...solvers.ConfigSolver) *Container[C] {
	c.solvers = append(c.solvers, slvrs...)
	return c
}

// WithSolvers replaces the solver list, allowing explicit ordering.
func (c *Container[C]) WithSolvers(slvrs ...solvers.ConfigSolver) *Container[C] {
	c.solvers = append([]solvers.ConfigSolver{}, slvrs...)
	return c
}

// WithSolverPasses sets the maximum number of solver passes (minimum 1).
func (c *Container[C]) WithSolverPasses(passes int) *Container[C] {
	if passes < 1 {
		passes = 1
	}
	c.solverPasses = passes
	return c
}

func (c *Container[C]) WithLogger(l logger.Logger) *Container[C] {
	if l == nil {
		l = logger.Nop()
	}
	c.logger = l
	return c
}

func (c *Container[C]) WithProvider(factories ...ProviderBuilder[C]) *Container[C] {
	for _, factory := range factories {
		if factory != nil {
			c.loaders = append(c.loaders, factory)
		}
	}
	return c
}

// New wraps base, usually a freshly constructed *provisioner.Base. Values set on base
// before the first Load act as the lowest priority source on every load.
func New[C Lifecycle](c C) *Container[C] {
	mgr := &Container[C]{
		mustValidate: true,
		finalize:     true,
		strictMerge:  false,
		base:         c,
		delimiter:    DefaultDelimiter,
		loadTimeout:  DefaultLoadTimeout,
		configPath:   DefaultConfigFilepath,
		logger:       logger.NewDefaultLogger("config"),
		solverPasses: 1,
		solvers: []solvers.ConfigSolver{
			solvers.NewVariablesSolver("${", "}"),
			solvers.NewURISolver("@", "://"),
			solvers.NewExpressionSolver("{{", "}}"),
		},
	}

	mgr.newConfig()

	return mgr
}

func (c *Container[C]) newConfig() {
	c.K = koanf.NewWithConf(koanf.Conf{
		Delim:       c.delimiter,
		StrictMerge: c.strictMerge,
	})
}

func (c *Container[C]) merger() koanf.Option {
	if c.strictMerge {
		return koanf.WithMergeFunc(MergeTouchedStrict)
	}
	return koanf.WithMergeFunc(MergeTouched)
}

// Validate runs the config object's Validate and turns reported problems into a
// validation error.
func (c *Container[C]) Validate() error {
	c.errs = c.base.Validate(c.machine)
	if len(c.errs) == 0 {
		return nil
	}

	fields := make([]errors.FieldError, 0, len(c.errs))
	for _, msg := range c.errs {
		fields = append(fields, errors.FieldError{
			Field:   fieldFromMessage(msg),
			Message: msg,
		})
	}

	meta := map[string]any{"error_count": len(c.errs)}
	if c.machine != nil {
		meta["machine"] = c.machine.Name()
	}
	return errors.NewValidation("configuration validation failed", fields...).
		WithTextCode("CONFIG_VALIDATION_FAILED").
		WithMetadata(meta)
}

func (c *Container[C]) MustValidate() *Container[C] {
	if err := c.Validate(); err != nil {
		panic(err)
	}
	return c
}

// Errors returns the problems reported by the last validation.
func (c *Container[C]) Errors() []string {
	return append([]string(nil), c.errs...)
}

func (c *Container[C]) MustLoadWithDefaults() {
	c.MustLoad(context.Background())
}

func (c *Container[C]) LoadWithDefaults() error {
	return c.Load(context.Background())
}

func (c *Container[C]) MustLoad(ctx context.Context) {
	if err := c.Load(ctx); err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
}

func (c *Container[C]) Load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.loadTimeout)
	defer cancel()

	// reset config state so keys removed from a source are gone
	c.newConfig()
	c.errs = nil

	// decode onto base as it was before the first load, removed keys fall back to defaults
	if !c.seeded {
		seed, err := copystructure.Copy(c.base)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to snapshot base configuration").
				WithTextCode("CONFIG_SNAPSHOT_FAILED")
		}
		c.seed, _ = seed.(C)
		c.seeded = true
	}

	if len(c.loaders) > 0 {
		c.providers = nil
		for i, factory := range c.loaders {
			provider, err := factory(c)
			if err != nil {
				return errors.Wrap(err, errors.CategoryOperation, "failed to create provider").
					WithTextCode("PROVIDER_CREATION_FAILED").
					WithMetadata(map[string]any{
						"factory_index":   i,
						"total_factories": len(c.loaders),
					})
			}
			c.providers = append(c.providers, provider)
		}
	}

	// providers could have been set via options
	if len(c.providers) == 0 && len(c.loaders) == 0 && c.configPath != "" {
		c.logger.Debug("no providers specified, loading default file provider: %s", c.configPath)
		f := OptionalProvider(FileProvider[C](c.configPath))
		p, err := f(c)
		if err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "failed to create default file provider").
				WithTextCode("DEFAULT_PROVIDER_FAILED").
				WithMetadata(map[string]any{
					"config_path": c.configPath,
				})
		}
		c.providers = append(c.providers, p)
	}

	for i, src := range c.providers {
		if err := src.Validate(); err != nil {
			return errors.Wrap(err, errors.CategoryValidation, "invalid provider source type").
				WithTextCode("INVALID_PROVIDER_TYPE").
				WithMetadata(map[string]any{
					"source_type":    string(src.Type()),
					"provider_index": i,
				})
		}
	}

	sort.SliceStable(c.providers, func(i, j int) bool {
		return c.providers[i].Priority() < c.providers[j].Priority()
	})

	for i, source := range c.providers {
		c.logger.Debug("loading source %s (priority %d)", source.Type(), source.Priority())
		if err := source.Load(ctx, c.K); err != nil {
			if conflict, ok := mergeConflict(err); ok {
				return conflict
			}
			return errors.Wrap(err, errors.CategoryOperation, "failed to load configuration from source").
				WithTextCode("CONFIG_LOAD_FAILED").
				WithMetadata(map[string]any{
					"source_type":   string(source.Type()),
					"source_index":  i,
					"total_sources": len(c.providers),
				})
		}
	}

	c.solve()

	decoded, err := cfgx.Build[C](c.K.Raw(), c.decodeOptions()...)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to unmarshal configuration data").
			WithTextCode("CONFIG_UNMARSHAL_FAILED").
			WithMetadata(map[string]any{
				"delimiter":     c.delimiter,
				"strict_merge":  c.strictMerge,
				"strict_decode": c.strictDecode,
			})
	}
	c.assignBase(decoded)

	if c.finalize {
		c.base.Finalize()
	}

	err = c.Validate()
	if err != nil && c.mustValidate {
		return err
	}
	if err != nil {
		c.logger.Warn("configuration has %d problem(s): %v", len(c.errs), c.errs)
	}

	return nil
}

func (c *Container[C]) decodeOptions() []cfgx.Option[C] {
	opts := []cfgx.Option[C]{
		cfgx.WithDefaults(c.seed),
		cfgx.WithTagName[C]("koanf"),
		cfgx.WithPreprocess[C](cfgx.PreprocessNulls()),
	}
	if c.strictDecode {
		opts = append(opts, cfgx.WithStrictKeys[C]())
	}
	return opts
}

// solve runs every solver until a pass leaves the values unchanged or the pass limit
// is reached, so references to resolved references settle.
func (c *Container[C]) solve() {
	if len(c.solvers) == 0 {
		return
	}
	maxPasses := c.solverPasses
	if maxPasses < 1 {
		maxPasses = 1
	}
	for pass := 0; pass < maxPasses; pass++ {
		before, ok := snapshotConfig(c.K)
		for _, solver := range c.solvers {
			solver.Solve(c.K)
		}
		if !ok {
			continue
		}
		if reflect.DeepEqual(before, c.K.Raw()) {
			c.logger.Debug("solvers settled after %d pass(es)", pass+1)
			break
		}
	}
}

func (c *Container[C]) Raw() C {
	return c.base
}

func (c *Container[C]) assignBase(value C) {
	baseVal := reflect.ValueOf(&c.base).Elem()
	newVal := reflect.ValueOf(value)

	if baseVal.Kind() == reflect.Pointer && newVal.Kind() == reflect.Pointer && baseVal.Type() == newVal.Type() {
		if baseVal.IsNil() || newVal.IsNil() {
			baseVal.Set(newVal)
			return
		}
		baseVal.Elem().Set(newVal.Elem())
		return
	}
	baseVal.Set(newVal)
}

func snapshotConfig(k *koanf.Koanf) (any, bool) {
	if k == nil {
		return nil, false
	}
	raw := k.Raw()
	cloned, err := copystructure.Copy(raw)
	if err != nil {
		return raw, false
	}
	return cloned, true
}

var quotedField = regexp.MustCompile("`([^`]+)`")

// fieldFromMessage picks the first back-quoted name out of a validation message.
func fieldFromMessage(msg string) string {
	if m := quotedField.FindStringSubmatch(msg); len(m) == 2 {
		return m[1]
	}
	return "config"
}
