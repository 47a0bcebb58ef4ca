package reconciler

import (
	"fmt"
	"time"

	"github.com/mapaction/mapimport/pkg/catalog"
)

// Action is what a reconciliation did to the catalog.
type Action string

const (
	// ActionCreated means a new record was created.
	ActionCreated Action = "created"
	// ActionUpdated means an existing record was corrected in place.
	ActionUpdated Action = "updated"
)

// Result represents the outcome of a successful reconciliation.
type Result struct {
	Action Action          `json:"action" yaml:"action"`
	Record *catalog.Record `json:"record" yaml:"record"`

	// Name is the canonical record name; TempName is the name the record
	// was created under before the rename, empty for updates.
	Name     string `json:"name" yaml:"name"`
	TempName string `json:"temp_name,omitempty" yaml:"temp_name,omitempty"`

	CreatedResources []string `json:"created_resources" yaml:"created_resources"`
	DeletedResources []string `json:"deleted_resources,omitempty" yaml:"deleted_resources,omitempty"`

	// Metadata
	Metadata ResultMetadata `json:"metadata" yaml:"metadata"`

	// Issues that did not fail the reconciliation
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// ResultMetadata contains metadata about the reconciliation process.
type ResultMetadata struct {
	// StartTime when reconciliation started
	StartTime time.Time `json:"start_time" yaml:"start_time"`

	// EndTime when reconciliation completed
	EndTime time.Time `json:"end_time" yaml:"end_time"`

	// Duration of the reconciliation
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Summary returns a one-line description of the result.
func (r *Result) Summary() string {
	return fmt.Sprintf("%s %s: %d resources attached, %d replaced, %d warnings",
		r.Action, r.Name, len(r.CreatedResources), len(r.DeletedResources), len(r.Warnings))
}

// HasWarnings reports whether anything went wrong without failing the run.
func (r *Result) HasWarnings() bool {
	return len(r.Warnings) > 0
}

func (r *Result) finish() {
	r.Metadata.EndTime = time.Now()
	r.Metadata.Duration = r.Metadata.EndTime.Sub(r.Metadata.StartTime)
}
