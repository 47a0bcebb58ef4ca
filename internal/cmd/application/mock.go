package application

import (
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/mapaction/mapimport"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
type Mock struct {
	ImporterFunc      func(opts ...mapimport.Option) (mapimport.Importer, error)
	ImportOptionsFunc func() []mapimport.ImportOption
	FsFunc            func() afero.Fs
	LoggerFunc        func() *zerolog.Logger
	OutputFormatFunc  func() string
	VersionFunc       func() string
	CommitFunc        func() string
	DateFunc          func() string
	BuiltByFunc       func() string
}

// Importer returns an importer using the mock function or one without a catalog.
func (m *Mock) Importer(opts ...mapimport.Option) (mapimport.Importer, error) {
	if m.ImporterFunc != nil {
		return m.ImporterFunc(opts...)
	}
	return mapimport.New(opts...)
}

// ImportOptions returns import defaults using the mock function or none.
func (m *Mock) ImportOptions() []mapimport.ImportOption {
	if m.ImportOptionsFunc != nil {
		return m.ImportOptionsFunc()
	}
	return nil
}

// Fs returns a filesystem using the mock function or an in-memory one.
func (m *Mock) Fs() afero.Fs {
	if m.FsFunc != nil {
		return m.FsFunc()
	}
	return afero.NewMemMapFs()
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns output format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns builtBy using the mock function or "test".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "test"
}

// Ensure Mock implements Application at compile time.
var _ Application = (*Mock)(nil)
