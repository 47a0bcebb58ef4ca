// Package schema promotes map package extras into catalog schema fields and
// validates drafts against a dataset schema registry.
package schema

import (
	"sort"

	"github.com/mapaction/mapimport/pkg/errors"
)

// Registry is the view of the catalog's dataset schemas the importer needs.
type Registry interface {
	// DefaultTypes lists the registered dataset types, preferred first.
	DefaultTypes() []string
	// FieldsForType returns the field names declared for a dataset type.
	FieldsForType(datasetType string) (FieldSet, bool)
	// Validate checks fields against the schema of a dataset type and
	// returns the fields together with any field-level errors.
	Validate(datasetType string, fields map[string]any) (map[string]any, errors.Fields)
}

// FieldSet is a set of schema field names.
type FieldSet map[string]struct{}

// NewFieldSet creates a FieldSet holding names.
func NewFieldSet(names ...string) FieldSet {
	set := make(FieldSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Has reports whether name is in the set.
func (s FieldSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the field names in sorted order.
func (s FieldSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NopRegistry declares no dataset types and accepts every draft.
type NopRegistry struct{}

// DefaultTypes implements Registry.
func (NopRegistry) DefaultTypes() []string { return nil }

// FieldsForType implements Registry.
func (NopRegistry) FieldsForType(string) (FieldSet, bool) { return nil, false }

// Validate implements Registry.
func (NopRegistry) Validate(_ string, fields map[string]any) (map[string]any, errors.Fields) {
	return fields, nil
}
