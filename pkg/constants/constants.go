// Package constants provides shared constants used throughout the mapimport
// codebase: timeouts, size limits, file permissions and catalog defaults.
package constants

import "time"

// Timeout constants
const (
	// DefaultHTTPTimeout is the standard timeout for a single catalog API call.
	// Resource uploads can be large, so it is generous.
	DefaultHTTPTimeout = 2 * time.Minute

	// BreakerTimeout is how long the catalog circuit breaker stays open.
	BreakerTimeout = 30 * time.Second

	// BreakerInterval is the window over which catalog failures are counted.
	BreakerInterval = 60 * time.Second

	// ShutdownTimeout bounds cleanup after a failed command.
	ShutdownTimeout = 5 * time.Second
)

// File permission constants
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants
const (
	// MaxArchiveSize is the largest map package accepted, in bytes.
	MaxArchiveSize int64 = 2 << 30

	// MaxEntrySize is the largest single archive entry extracted, in bytes.
	MaxEntrySize int64 = 1 << 30

	// MaxEntries is the largest number of entries accepted in one archive.
	MaxEntries = 10000

	// BreakerFailures is the number of consecutive catalog failures that open the breaker.
	BreakerFailures = 5
)

// Catalog defaults
const (
	// DefaultDatasetType is used when neither the metadata nor the schema registry names a type.
	DefaultDatasetType = "dataset"

	// DefaultLicenseID is assigned to every imported dataset; map packages carry no licence.
	DefaultLicenseID = "notspecified"

	// ThemeVocabulary is the catalog vocabulary holding the controlled product themes.
	ThemeVocabulary = "product_themes"

	// MemberCapacity is the capacity datasets are added to operation groups with.
	MemberCapacity = "member"

	// ScratchDirPrefix names the per-invocation extraction directory.
	ScratchDirPrefix = "mapactionzip-"
)
