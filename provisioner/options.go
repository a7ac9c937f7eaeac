package provisioner

import "github.com/goliatone/go-provision/logger"

type Option func(*Base)

// WithCatalog sets the catalog used for validation messages.
func WithCatalog(c Catalog) Option {
	return func(b *Base) {
		b.messages = c
	}
}

// WithDetector replaces the generic per-field checks run first by Validate.
func WithDetector(d Detector) Option {
	return func(b *Base) {
		b.detect = d
	}
}

func WithLogger(l logger.Logger) Option {
	return func(b *Base) {
		b.logger = l
	}
}
