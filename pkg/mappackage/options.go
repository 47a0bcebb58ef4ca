package mappackage

import (
	"github.com/spf13/afero"

	"github.com/mapaction/mapimport/pkg/constants"
	"github.com/mapaction/mapimport/pkg/errors"
)

// options configures an Extractor.
type options struct {
	fs             afero.Fs
	tempDir        string // parent of scratch directories, "" for the OS default
	maxArchiveSize int64
	maxEntrySize   int64
	maxEntries     int
}

func defaultOptions() *options {
	return &options{
		fs:             afero.NewOsFs(),
		maxArchiveSize: constants.MaxArchiveSize,
		maxEntrySize:   constants.MaxEntrySize,
		maxEntries:     constants.MaxEntries,
	}
}

// Option is a function that configures an Extractor.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithFs stages archives on the given filesystem.
func WithFs(fs afero.Fs) Option {
	return func(o *options) error {
		if fs == nil {
			return &errors.ValidationError{Field: "fs", Message: "cannot be nil"}
		}
		o.fs = fs
		return nil
	}
}

// WithTempDir sets the directory scratch directories are created in.
func WithTempDir(dir string) Option {
	return func(o *options) error {
		o.tempDir = dir
		return nil
	}
}

// WithMaxArchiveSize limits the size of an uploaded archive in bytes.
func WithMaxArchiveSize(n int64) Option {
	return func(o *options) error {
		if n <= 0 {
			return &errors.ValidationError{Field: "max_archive_size", Value: n, Message: "must be positive"}
		}
		o.maxArchiveSize = n
		return nil
	}
}

// WithMaxEntrySize limits the uncompressed size of a single archive entry.
func WithMaxEntrySize(n int64) Option {
	return func(o *options) error {
		if n <= 0 {
			return &errors.ValidationError{Field: "max_entry_size", Value: n, Message: "must be positive"}
		}
		o.maxEntrySize = n
		return nil
	}
}

// WithMaxEntries limits the number of entries in an archive.
func WithMaxEntries(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return &errors.ValidationError{Field: "max_entries", Value: n, Message: "must be positive"}
		}
		o.maxEntries = n
		return nil
	}
}
