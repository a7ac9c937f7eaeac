package config

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-provision/logger"
	"github.com/goliatone/go-provision/provisioner"
)

type testMachine string

func (m testMachine) Name() string { return string(m) }

func newContainer(b *provisioner.Base, builders ...ProviderBuilder[*provisioner.Base]) *Container[*provisioner.Base] {
	return New(b).
		WithConfigPath(""). // we need to disable default config
		WithLogger(logger.Nop()).
		WithProvider(builders...)
}

func assertValue(t *testing.T, name string, want provisioner.Value, s provisioner.Setting) {
	t.Helper()
	if !s.IsSet() {
		t.Errorf("%s: expected setting to be set", name)
		return
	}
	if got := s.Value(); got != want {
		t.Errorf("%s: expected %s, got %s", name, want.Inspect(), got.Inspect())
	}
}

func TestContainerLoadFromFile(t *testing.T) {
	b := provisioner.New()

	if err := New(b).WithLogger(logger.Nop()).WithConfigPath("testdata/provision.json").Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertValue(t, "install", provisioner.Bool(false), b.Install)
	assertValue(t, "version", provisioner.Sym("12.19.36"), b.Version)
	assertValue(t, "binary_path", provisioner.Nil(), b.BinaryPath)
	assertValue(t, "log_level", provisioner.Sym("info"), b.LogLevel)
	assertValue(t, "prerelease", provisioner.Bool(false), b.Prerelease)
	assertValue(t, "binary_env", provisioner.Nil(), b.BinaryEnv)
}

func TestContainerMissingDefaultFileIsIgnored(t *testing.T) {
	b := provisioner.New()

	container := New(b).WithLogger(logger.Nop()).WithConfigPath("testdata/does-not-exist.json")
	if err := container.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertValue(t, "install", provisioner.Bool(true), b.Install)
	assertValue(t, "version", provisioner.Sym("latest"), b.Version)
	if len(container.Errors()) != 0 {
		t.Errorf("expected no problems, got %v", container.Errors())
	}
}

func TestContainerKeepsValuesSetBeforeLoad(t *testing.T) {
	b := provisioner.New()
	if err := b.Set("version", "9.9.9"); err != nil {
		t.Fatal(err)
	}

	if err := newContainer(b).Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertValue(t, "version", provisioner.Sym("9.9.9"), b.Version)
}

func TestContainerLoadFromHCL(t *testing.T) {
	b := provisioner.New()

	if err := newContainer(b, FileProvider[*provisioner.Base]("testdata/provision.hcl")).Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertValue(t, "install", provisioner.Sym("force"), b.Install)
	assertValue(t, "version", provisioner.Sym("17.10.0"), b.Version)
	assertValue(t, "binary_env", provisioner.String("HTTP_PROXY=http://proxy.local:3128"), b.BinaryEnv)
	assertValue(t, "binary_path", provisioner.Nil(), b.BinaryPath)
}

func TestContainerResolvesReferences(t *testing.T) {
	b := provisioner.New()

	if err := newContainer(b, FileProvider[*provisioner.Base]("testdata/resolvers.json")).Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertValue(t, "version", provisioner.Sym("12.19.36"), b.Version)
	assertValue(t, "install", provisioner.Bool(false), b.Install)
	assertValue(t, "binary_env", provisioner.String("HTTP_PROXY=http://proxy.local:3128"), b.BinaryEnv)
	assertValue(t, "prerelease", provisioner.Bool(true), b.Prerelease)
	assertValue(t, "log_level", provisioner.Sym("debug"), b.LogLevel)
}

func TestContainerSolverPasses(t *testing.T) {
	values := map[string]any{
		"channel": "stable",
		"version": `{{ "$" + "{channel}" }}`,
	}

	t.Run("single pass leaves nested reference", func(t *testing.T) {
		b := provisioner.New()
		c := newContainer(b, DefaultValuesProvider[*provisioner.Base](values)).WithSolverPasses(1)
		if err := c.Load(context.Background()); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		assertValue(t, "version", provisioner.Sym("${channel}"), b.Version)
	})

	t.Run("second pass resolves it", func(t *testing.T) {
		b := provisioner.New()
		c := newContainer(b, DefaultValuesProvider[*provisioner.Base](values)).WithSolverPasses(2)
		if err := c.Load(context.Background()); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		assertValue(t, "version", provisioner.Sym("stable"), b.Version)
	})

	t.Run("no solvers", func(t *testing.T) {
		b := provisioner.New()
		c := newContainer(b, DefaultValuesProvider[*provisioner.Base](map[string]any{"version": "${channel}", "channel": "x"})).WithSolvers()
		if err := c.Load(context.Background()); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		assertValue(t, "version", provisioner.Sym("${channel}"), b.Version)
	})
}

func TestContainerDefaultValuesWithSettings(t *testing.T) {
	b := provisioner.New()
	values := map[string]any{
		"install": provisioner.NewSetting(provisioner.Bool(false)),
		"version": provisioner.Setting{},
	}

	if err := newContainer(b, DefaultValuesProvider[*provisioner.Base](values)).Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertValue(t, "install", provisioner.Bool(false), b.Install)
	assertValue(t, "version", provisioner.Sym("latest"), b.Version)
}

func TestContainerStructProvider(t *testing.T) {
	type overrides struct {
		Version  string `koanf:"version,omitempty"`
		LogLevel string `koanf:"log_level,omitempty"`
	}

	b := provisioner.New()
	c := newContainer(b,
		StructProvider[*provisioner.Base](overrides{Version: "2.0"}),
		FileProvider[*provisioner.Base]("testdata/provision.yaml"),
	)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertValue(t, "version", provisioner.Sym("2.0"), b.Version)
	assertValue(t, "log_level", provisioner.Sym("warn"), b.LogLevel)
	assertValue(t, "install", provisioner.Sym("force"), b.Install)
	assertValue(t, "prerelease", provisioner.Bool(true), b.Prerelease)
}

func TestContainerValidationError(t *testing.T) {
	b := provisioner.New()
	c := newContainer(b, FileProvider[*provisioner.Base]("testdata/blank_log_level.json")).
		WithMachine(testMachine("web"))

	err := c.Load(context.Background())
	if err == nil {
		t.Fatalf("expected validation error")
	}

	if !errors.IsValidation(err) {
		t.Fatalf("expected validation category, got %v", err)
	}

	var e *errors.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected go-errors error, got %T", err)
	}
	if e.TextCode != "CONFIG_VALIDATION_FAILED" {
		t.Errorf("expected CONFIG_VALIDATION_FAILED, got %s", e.TextCode)
	}
	if e.Metadata["machine"] != "web" {
		t.Errorf("expected machine metadata, got %v", e.Metadata)
	}

	fields, ok := errors.GetValidationErrors(err)
	if !ok || len(fields) != 1 {
		t.Fatalf("expected one field error, got %v", fields)
	}
	if fields[0].Field != "log_level" {
		t.Errorf("expected log_level field, got %q", fields[0].Field)
	}
	if fields[0].Message != provisioner.DefaultCatalog().T(provisioner.MsgLogLevelEmpty) {
		t.Errorf("unexpected message %q", fields[0].Message)
	}

	if got := c.Errors(); len(got) != 1 {
		t.Errorf("expected Errors to keep the problem, got %v", got)
	}
}

func TestContainerWithoutValidation(t *testing.T) {
	b := provisioner.New()
	c := newContainer(b, FileProvider[*provisioner.Base]("testdata/blank_log_level.json")).
		WithValidation(false)

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(c.Errors()) != 1 {
		t.Errorf("expected one recorded problem, got %v", c.Errors())
	}
}

func TestContainerWithoutFinalize(t *testing.T) {
	b := provisioner.New()
	c := newContainer(b, FileProvider[*provisioner.Base]("testdata/provision.json")).
		WithFinalize(false).
		WithValidation(false)

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertValue(t, "version", provisioner.String("12.19.36"), b.Version)
	if b.LogLevel.IsSet() {
		t.Errorf("log_level should stay unset without Finalize")
	}
	if b.Finalized() {
		t.Errorf("base should not be finalized")
	}
}

func TestContainerUsesMachine(t *testing.T) {
	var seen provisioner.Machine
	detector := func(m provisioner.Machine, _ []provisioner.Declared) []string {
		seen = m
		return nil
	}

	b := provisioner.New(provisioner.WithDetector(detector))
	if err := newContainer(b).WithMachine(testMachine("db")).Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if seen != testMachine("db") {
		t.Errorf("expected machine db, got %v", seen)
	}
}

func TestContainerDecodeErrors(t *testing.T) {
	t.Run("numbers are rejected", func(t *testing.T) {
		err := newContainer(provisioner.New(), FileProvider[*provisioner.Base]("testdata/numeric_version.json")).
			Load(context.Background())

		var e *errors.Error
		if !errors.As(err, &e) || e.TextCode != "CONFIG_UNMARSHAL_FAILED" {
			t.Fatalf("expected CONFIG_UNMARSHAL_FAILED, got %v", err)
		}
	})

	t.Run("unknown keys pass unless strict", func(t *testing.T) {
		b := provisioner.New()
		if err := newContainer(b, FileProvider[*provisioner.Base]("testdata/unknown_key.json")).Load(context.Background()); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		err := newContainer(provisioner.New(), FileProvider[*provisioner.Base]("testdata/unknown_key.json")).
			WithStrictDecode(true).
			Load(context.Background())
		if err == nil {
			t.Fatalf("expected strict decode to reject channel")
		}
	})

	t.Run("required file must exist", func(t *testing.T) {
		err := newContainer(provisioner.New(), FileProvider[*provisioner.Base]("testdata/missing.json")).
			Load(context.Background())

		var e *errors.Error
		if !errors.As(err, &e) || e.TextCode != "CONFIG_LOAD_FAILED" {
			t.Fatalf("expected CONFIG_LOAD_FAILED, got %v", err)
		}
	})
}

func TestContainerStrictMerge(t *testing.T) {
	b := provisioner.New()
	c := newContainer(b,
		FileProvider[*provisioner.Base]("testdata/provision.json"),
		FileProvider[*provisioner.Base]("testdata/provision.yaml", PriorityConfig.WithOffset(1).Int()),
	).WithStrictMerge()

	err := c.Load(context.Background())
	var e *errors.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected go-errors error, got %v", err)
	}
	if e.TextCode != TextCodeMergeMismatch {
		t.Fatalf("expected %s for install bool -> string, got %s: %v", TextCodeMergeMismatch, e.TextCode, err)
	}
	if e.Category != errors.CategoryBadInput {
		t.Errorf("expected bad_input category, got %s", e.Category)
	}
	if e.Metadata["key"] != "install" {
		t.Errorf("expected conflicting key install, got %v", e.Metadata["key"])
	}
}

func TestContainerReloadDropsRemovedKeys(t *testing.T) {
	values := map[string]any{"version": "1.0", "install": false}
	b := provisioner.New()
	if err := b.Set("log_level", "warn"); err != nil {
		t.Fatal(err)
	}
	c := newContainer(b, DefaultValuesProvider[*provisioner.Base](values))

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !c.K.Exists("version") {
		t.Fatalf("expected version in koanf state")
	}
	assertValue(t, "version", provisioner.Sym("1.0"), c.Raw().Version)
	assertValue(t, "install", provisioner.Bool(false), c.Raw().Install)

	delete(values, "version")
	delete(values, "install")
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.K.Exists("version") {
		t.Errorf("expected version to be gone after reload")
	}

	assertValue(t, "version", provisioner.Sym("latest"), c.Raw().Version)
	assertValue(t, "install", provisioner.Bool(true), c.Raw().Install)
	// values set before the first load are kept on every load
	assertValue(t, "log_level", provisioner.Sym("warn"), c.Raw().LogLevel)
}

func TestNewWithOptions(t *testing.T) {
	b := provisioner.New()
	c, err := NewWithOptions(b,
		WithoutDefaultConfigPath[*provisioner.Base](),
		WithLogger[*provisioner.Base](logger.Nop()),
		WithTimeout[*provisioner.Base](time.Second),
		WithMachine[*provisioner.Base](testMachine("web")),
		WithLoader(DefaultValuesProvider[*provisioner.Base](map[string]any{"install": "force"})),
	)
	if err != nil {
		t.Fatalf("NewWithOptions failed: %v", err)
	}
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertValue(t, "install", provisioner.Sym("force"), c.Raw().Install)

	if _, err := NewWithOptions(b, WithTimeout[*provisioner.Base](0)); err == nil {
		t.Fatalf("expected zero timeout to be rejected")
	}
}

func TestMustLoadPanicsOnValidationError(t *testing.T) {
	c := newContainer(provisioner.New(), FileProvider[*provisioner.Base]("testdata/blank_log_level.json"))

	defer func() {
		if recover() == nil {
			t.Fatalf("expected MustLoad to panic")
		}
	}()
	c.MustLoad(context.Background())
}

func TestFieldFromMessage(t *testing.T) {
	if got := fieldFromMessage("Chef's `log_level` cannot be blank."); got != "log_level" {
		t.Errorf("expected log_level, got %q", got)
	}
	if got := fieldFromMessage("something odd"); got != "config" {
		t.Errorf("expected config, got %q", got)
	}
}
