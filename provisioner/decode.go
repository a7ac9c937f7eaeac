package provisioner

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-provision/cfgx"
)

// Decode builds a Base from raw builder input: a map keyed like the koanf tags, a struct,
// or either of them holding zero-argument funcs that are evaluated first. Keys absent from
// input stay unset; explicit nils become set-to-nil. Unknown keys are rejected.
func Decode(input any, opts ...Option) (*Base, error) {
	b, err := cfgx.Build[*Base](input,
		cfgx.WithDefaults(New(opts...)),
		cfgx.WithTagName[*Base]("koanf"),
		cfgx.WithPreprocessEvalFuncs[*Base](),
		cfgx.WithPreprocess[*Base](cfgx.PreprocessNulls()),
		cfgx.WithStrictKeys[*Base](),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to decode provisioner settings").
			WithTextCode("DECODE_FAILED")
	}
	return b, nil
}
