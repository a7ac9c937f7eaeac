// Package provisioner models the settings of a Chef style provisioner with deferred
// defaults.
//
// A Base goes through three phases. Builders populate it: each Setting remembers whether
// it was ever assigned, so an explicit false, "" or nil is kept apart from a field the user
// never touched. Finalize then assigns defaults to the untouched settings and turns textual
// install, version and log_level values into Symbols. Validate finally returns every problem
// as a human readable message instead of failing on the first one.
//
//	b := provisioner.New()
//	_ = b.Set("version", "1.2.3")
//	b.Finalize()
//	errs := b.Validate(nil) // []
//
// Validate composes a Detector (generic per-field kind checks, KindDetector by default)
// with the provisioner's own blank log level check. Messages come from a Catalog keyed by
// fixed identifiers; DefaultCatalog is the embedded English one.
package provisioner
