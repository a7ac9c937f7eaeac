// Package cfgx decodes raw configuration input (maps, structs, lazily evaluated funcs) into
// typed config structs.
//
// It is independent of config.Container so packages such as provisioner can decode their own
// values without application wiring.
//
// Option catalog:
//   - Defaults: WithDefaults, WithDefaultFunc.
//   - Preprocessing: WithPreprocess, WithPreprocessFunc, WithPreprocessEvalFuncs, and the
//     PreprocessNulls preprocessor that keeps explicit nils through decoding.
//   - Decoder behavior: WithDecoder, WithDecodeHooks, WithStrictKeys, WithTagName,
//     WithoutDefaultHooks.
//   - Validation: WithValidator.
//   - Diagnostics: WithOptionError lets wrappers surface invalid option state.
//
// Hook helpers:
//   - OptionalHook decodes into the type registered with RegisterOptionalType
//     (provisioner.Setting registers itself during init).
//   - NullHook zeroes non-optional targets that received the Null marker.
package cfgx
