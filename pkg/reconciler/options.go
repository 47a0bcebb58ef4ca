package reconciler

import (
	"github.com/google/uuid"

	"github.com/mapaction/mapimport/pkg/errors"
)

// Options configures a reconciler.
type options struct {
	suffix     func() string
	versioning bool
}

func defaultOptions() *options {
	return &options{
		suffix:     uuid.NewString,
		versioning: true,
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (options *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithSuffixGenerator replaces the random suffix of temporary record names.
func WithSuffixGenerator(fn func() string) Option {
	return func(o *options) error {
		if fn == nil {
			return &errors.ValidationError{
				Field:   "suffix",
				Message: "cannot be nil",
			}
		}
		o.suffix = fn
		return nil
	}
}

// WithVersioning enables or disables version registration after a create.
func WithVersioning(enabled bool) Option {
	return func(o *options) error {
		o.versioning = enabled
		return nil
	}
}
