package config

import (
	"sort"

	"github.com/goliatone/go-errors"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// HCL reads native HCL syntax into a koanf map. Attributes become keys and blocks nest
// under their type followed by their labels:
//
//	version = "12.19.36"
//	machine "web" {
//	  install = false
//	}
//
// yields {"version": "12.19.36", "machine": {"web": {"install": false}}}. Expressions are
// evaluated without variables or functions; null becomes nil.
type HCL struct {
	filename string
}

// HCLParser returns a koanf.Parser for HCL documents.
func HCLParser() *HCL {
	return &HCL{filename: "config.hcl"}
}

func (p *HCL) Unmarshal(b []byte) (map[string]any, error) {
	file, diags := hclparse.NewParser().ParseHCL(b, p.filename)
	if diags.HasErrors() {
		return nil, errors.Wrap(diags, errors.CategoryBadInput, "failed to parse HCL configuration").
			WithTextCode("HCL_PARSE_FAILED")
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, errors.New("unexpected HCL body type", errors.CategoryInternal).
			WithTextCode("HCL_PARSE_FAILED")
	}
	return hclBodyToMap(body)
}

// Marshal is not supported.
func (p *HCL) Marshal(map[string]any) ([]byte, error) {
	return nil, errors.New("HCL parser does not support marshalling", errors.CategoryOperation).
		WithTextCode("HCL_MARSHAL_UNSUPPORTED")
}

func hclBodyToMap(body *hclsyntax.Body) (map[string]any, error) {
	out := make(map[string]any, len(body.Attributes)+len(body.Blocks))

	names := make([]string, 0, len(body.Attributes))
	for name := range body.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		attr := body.Attributes[name]
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, hclError(diags, attr.SrcRange, name)
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, hclError(err, attr.SrcRange, name)
		}
		out[name] = native
	}

	for _, block := range body.Blocks {
		inner, err := hclBodyToMap(block.Body)
		if err != nil {
			return nil, err
		}

		path := append([]string{block.Type}, block.Labels...)
		target := out
		for _, seg := range path[:len(path)-1] {
			next, ok := target[seg].(map[string]any)
			if !ok {
				next = make(map[string]any)
				target[seg] = next
			}
			target = next
		}

		last := path[len(path)-1]
		if existing, ok := target[last].(map[string]any); ok {
			if err := MergeTouched(inner, existing); err != nil {
				return nil, err
			}
			continue
		}
		target[last] = inner
	}

	return out, nil
}

func hclError(err error, rng hcl.Range, attr string) error {
	return errors.Wrap(err, errors.CategoryBadInput, "invalid HCL attribute").
		WithTextCode("HCL_ATTRIBUTE_INVALID").
		WithMetadata(map[string]any{
			"attribute": attr,
			"range":     rng.String(),
		})
}

func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty == cty.Number:
		var i int64
		if err := gocty.FromCtyValue(v, &i); err == nil {
			return i, nil
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, err
		}
		return f, nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			native, err := ctyToNative(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			key, ev := it.Element()
			native, err := ctyToNative(ev)
			if err != nil {
				return nil, err
			}
			out[key.AsString()] = native
		}
		return out, nil

	default:
		return nil, errors.New("unsupported HCL value type "+ty.FriendlyName(), errors.CategoryBadInput).
			WithTextCode("HCL_VALUE_UNSUPPORTED")
	}
}
