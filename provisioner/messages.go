package provisioner

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

// Message identifiers looked up in the catalog.
const (
	MsgLogLevelEmpty  = "provisioners.chef.log_level_empty"
	MsgInvalidKind    = "provisioners.invalid_kind"
	MsgUnknownSetting = "provisioners.unknown_setting"
)

const DefaultLocale = "en"

//go:embed locales/*.yaml
var locales embed.FS

// Catalog renders messages by identifier. Placeholders use the %{name} form.
type Catalog interface {
	T(key string, vars ...map[string]any) string
}

type catalog struct {
	locale string
	k      *koanf.Koanf
}

// NewCatalog loads the embedded translations for locale.
func NewCatalog(locale string) (Catalog, error) {
	path := "locales/" + locale + ".yaml"
	data, err := locales.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryNotFound, "unknown message catalog locale").
			WithTextCode("CATALOG_LOCALE_NOT_FOUND").
			WithMetadata(map[string]any{
				"locale":    locale,
				"available": Locales(),
			})
	}

	mp, err := yaml.Parser().Unmarshal(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to parse message catalog").
			WithTextCode("CATALOG_PARSE_FAILED").
			WithMetadata(map[string]any{"locale": locale})
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(mp, "."), nil); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load message catalog").
			WithTextCode("CATALOG_LOAD_FAILED").
			WithMetadata(map[string]any{"locale": locale})
	}

	return &catalog{locale: locale, k: k}, nil
}

// Locales lists the embedded locales.
func Locales() []string {
	entries, _ := locales.ReadDir("locales")
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(out)
	return out
}

var (
	defaultCatalogOnce sync.Once
	defaultCatalog     Catalog
)

// DefaultCatalog is the English catalog.
func DefaultCatalog() Catalog {
	defaultCatalogOnce.Do(func() {
		c, err := NewCatalog(DefaultLocale)
		if err != nil {
			panic(fmt.Sprintf("provisioner: embedded %s catalog is broken: %v", DefaultLocale, err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

func (c *catalog) T(key string, vars ...map[string]any) string {
	msg := c.k.String(key)
	if msg == "" {
		return "translation missing: " + c.locale + "." + key
	}
	for _, set := range vars {
		for name, val := range set {
			msg = strings.ReplaceAll(msg, "%{"+name+"}", fmt.Sprint(val))
		}
	}
	return msg
}
