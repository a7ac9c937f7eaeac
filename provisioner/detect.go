package provisioner

import (
	"slices"
	"strings"
)

// Machine is the guest a provisioner runs against. Validate hands it to the Detector
// untouched; it may be nil.
type Machine interface {
	Name() string
}

// Declared describes one setting of a config object and the value kinds it may hold.
type Declared struct {
	Name    string
	Setting *Setting
	Kinds   []Kind
}

// Accepts reports whether kind is allowed for the declared setting.
func (d Declared) Accepts(kind Kind) bool {
	return slices.Contains(d.Kinds, kind)
}

// Detector performs the generic per-field checks that every config object gets for free.
// It returns one message per problem, in field order, and never nil.
type Detector func(machine Machine, fields []Declared) []string

// KindDetector reports set fields whose value kind is not declared for them. Unset
// fields are skipped; Finalize is what resolves them.
func KindDetector(messages Catalog) Detector {
	if messages == nil {
		messages = DefaultCatalog()
	}
	return func(_ Machine, fields []Declared) []string {
		errs := make([]string, 0)
		for _, f := range fields {
			v, ok := f.Setting.ValueOK()
			if !ok || f.Accepts(v.Kind()) {
				continue
			}
			errs = append(errs, messages.T(MsgInvalidKind, map[string]any{
				"field":    f.Name,
				"expected": describeKinds(f.Kinds),
				"actual":   v.Kind(),
				"value":    v.Inspect(),
			}))
		}
		return errs
	}
}

func describeKinds(kinds []Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	switch len(names) {
	case 0:
		return "unset"
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
	}
}
