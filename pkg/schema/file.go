package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/afero"

	"github.com/mapaction/mapimport/pkg/errors"
)

// MissingValue is reported for required fields that are absent or empty.
const MissingValue = "Missing value"

// DatasetSchema is a dataset type definition in the ckanext-scheming YAML
// layout.
type DatasetSchema struct {
	SchemingVersion int         `yaml:"scheming_version" json:"scheming_version"`
	DatasetType     string      `yaml:"dataset_type" json:"dataset_type"`
	About           string      `yaml:"about,omitempty" json:"about,omitempty"`
	DatasetFields   []FieldSpec `yaml:"dataset_fields" json:"dataset_fields"`
	ResourceFields  []FieldSpec `yaml:"resource_fields,omitempty" json:"resource_fields,omitempty"`
}

// FieldSpec declares one schema field.
type FieldSpec struct {
	FieldName string   `yaml:"field_name" json:"field_name"`
	Label     string   `yaml:"label,omitempty" json:"label,omitempty"`
	Required  bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Preset    string   `yaml:"preset,omitempty" json:"preset,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Choices   []Choice `yaml:"choices,omitempty" json:"choices,omitempty"`
}

// Choice is an allowed value of a select field.
type Choice struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// Multiple reports whether the field holds a list of values.
func (f FieldSpec) Multiple() bool {
	return strings.HasPrefix(f.Preset, "multiple_")
}

// ParseSchema decodes a YAML schema document.
func ParseSchema(name string, data []byte) (*DatasetSchema, error) {
	var s DatasetSchema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.NewParseError("yaml", name, "invalid dataset schema", err)
	}
	if s.DatasetType == "" {
		return nil, errors.NewParseError("yaml", name, "dataset_type is required", nil)
	}
	for i, f := range s.DatasetFields {
		if f.FieldName == "" {
			return nil, errors.NewParseError("yaml", name, fmt.Sprintf("dataset_fields[%d] has no field_name", i), nil)
		}
	}
	return &s, nil
}

// FileRegistry is a Registry backed by scheming YAML files. It is safe for
// concurrent use.
type FileRegistry struct {
	mu       sync.Mutex
	types    []string
	schemas  map[string]*DatasetSchema
	compiled map[string]*jsonschema.Schema
}

// NewFileRegistry loads every schema file in paths. The first file's type
// becomes the default dataset type.
func NewFileRegistry(fs afero.Fs, paths ...string) (*FileRegistry, error) {
	r := &FileRegistry{
		schemas:  make(map[string]*DatasetSchema),
		compiled: make(map[string]*jsonschema.Schema),
	}
	for _, path := range paths {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, errors.WrapIO("read", path, err)
		}
		s, err := ParseSchema(path, data)
		if err != nil {
			return nil, err
		}
		if err := r.Add(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers a schema. Registering the same dataset type twice is an error.
func (r *FileRegistry) Add(s *DatasetSchema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[s.DatasetType]; exists {
		return errors.NewAlreadyExistsError("dataset schema", s.DatasetType)
	}
	r.schemas[s.DatasetType] = s
	r.types = append(r.types, s.DatasetType)
	return nil
}

// Schema returns the schema registered for a dataset type.
func (r *FileRegistry) Schema(datasetType string) (*DatasetSchema, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schemas[datasetType]
	return s, ok
}

// DefaultTypes implements Registry.
func (r *FileRegistry) DefaultTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

// FieldsForType implements Registry.
func (r *FileRegistry) FieldsForType(datasetType string) (FieldSet, bool) {
	s, ok := r.Schema(datasetType)
	if !ok {
		return nil, false
	}
	set := make(FieldSet, len(s.DatasetFields))
	for _, f := range s.DatasetFields {
		set[f.FieldName] = struct{}{}
	}
	return set, true
}

// Validate implements Registry. Required fields must be present and
// non-empty; choices, patterns and list presets are checked with JSON Schema.
func (r *FileRegistry) Validate(datasetType string, fields map[string]any) (map[string]any, errors.Fields) {
	s, ok := r.Schema(datasetType)
	if !ok {
		return fields, nil
	}

	out := errors.Fields{}
	for _, f := range s.DatasetFields {
		if f.Required && isEmpty(fields[f.FieldName]) {
			out.Add(f.FieldName, MissingValue)
		}
	}

	compiled, err := r.compile(s)
	if err != nil {
		out.Add("__schema", err.Error())
		return fields, out
	}

	payload, err := normalize(fields)
	if err != nil {
		out.Add("__schema", err.Error())
		return fields, out
	}
	if err := compiled.Validate(payload); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			out.Add("__schema", err.Error())
			return fields, out
		}
		for _, leaf := range leaves(verr) {
			field := fieldOf(leaf.InstanceLocation)
			if _, reported := out[field]; reported {
				continue
			}
			out.Add(field, leaf.Message)
		}
	}

	if len(out) == 0 {
		return fields, nil
	}
	return fields, out
}

func (r *FileRegistry) compile(s *DatasetSchema) (*jsonschema.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.compiled[s.DatasetType]; ok {
		return c, nil
	}

	doc, err := json.Marshal(jsonSchemaFor(s))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	id := "inmemory://" + s.DatasetType
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(id, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	c, err := compiler.Compile(id)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	r.compiled[s.DatasetType] = c
	return c, nil
}

// jsonSchemaFor translates field declarations into a JSON Schema object.
// Presence is checked separately, so nothing is listed as required.
func jsonSchemaFor(s *DatasetSchema) map[string]any {
	properties := make(map[string]any, len(s.DatasetFields))
	for _, f := range s.DatasetFields {
		value := map[string]any{}
		if len(f.Choices) > 0 {
			enum := make([]any, len(f.Choices))
			for i, c := range f.Choices {
				enum[i] = c.Value
			}
			value["enum"] = enum
		}
		if f.Pattern != "" {
			value["type"] = "string"
			value["pattern"] = f.Pattern
		}

		if f.Multiple() {
			properties[f.FieldName] = map[string]any{"type": "array", "items": value}
			continue
		}
		properties[f.FieldName] = value
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}

// normalize round-trips fields through JSON so the validator sees plain
// JSON values. Empty values are dropped; only required fields must be set.
func normalize(fields map[string]any) (any, error) {
	set := make(map[string]any, len(fields))
	for k, v := range fields {
		if !isEmpty(v) {
			set[k] = v
		}
	}
	data, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("normalize payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("normalize payload: %w", err)
	}
	return out, nil
}

func leaves(err *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return []*jsonschema.ValidationError{err}
	}
	var out []*jsonschema.ValidationError
	for _, c := range err.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

// fieldOf maps an instance location such as "/language/0" to its top-level
// field name.
func fieldOf(location string) string {
	location = strings.TrimPrefix(location, "/")
	if i := strings.Index(location, "/"); i >= 0 {
		location = location[:i]
	}
	if location == "" {
		return "__schema"
	}
	return location
}

func isEmpty(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}
