package errors

import (
	"errors"
	"sort"
	"strings"
)

// UploadField is the form field user-data failures are attributed to.
const UploadField = "upload"

// Fields maps a form field name to the messages reported against it.
type Fields map[string][]string

// Add appends a message for a field.
func (f Fields) Add(field, message string) {
	f[field] = append(f[field], message)
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FieldsError carries several field-level validation failures at once,
// typically the output of a schema validator.
type FieldsError struct {
	Fields Fields
}

// Error implements the error interface
func (e *FieldsError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, k := range e.Fields.Keys() {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is implements errors.Is support
func (e *FieldsError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewFieldsError creates a FieldsError, or returns nil when there is nothing to report.
func NewFieldsError(fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	return &FieldsError{Fields: fields}
}

// ToFields converts a validation error into a field-attributed error map
// for display back to the submitter. Errors that are not validation errors
// return nil; they are system failures, not something the submitter can fix.
func ToFields(err error) Fields {
	if err == nil || !IsValidationError(err) {
		return nil
	}

	var fieldsErr *FieldsError
	if errors.As(err, &fieldsErr) {
		out := make(Fields, len(fieldsErr.Fields))
		for k, v := range fieldsErr.Fields {
			out[k] = append([]string(nil), v...)
		}
		return out
	}

	var collision *NameCollisionError
	if errors.As(err, &collision) {
		return Fields{"name": {collision.Error()}}
	}

	var validation *ValidationError
	if errors.As(err, &validation) && validation.Field != "" {
		return Fields{validation.Field: {validation.Message}}
	}

	return Fields{UploadField: {userMessage(err)}}
}

// userMessage returns the message of the innermost typed map package error,
// without the context added by wrapping.
func userMessage(err error) string {
	var (
		archive  *ArchiveError
		missing  *MissingFieldError
		version  *InvalidVersionError
		status   *InvalidStatusError
		conflict *StatusConflictError
		unknown  *UnknownOperationError
	)
	switch {
	case errors.As(err, &archive):
		return archive.Error()
	case errors.As(err, &missing):
		return missing.Error()
	case errors.As(err, &version):
		return version.Error()
	case errors.As(err, &status):
		return status.Error()
	case errors.As(err, &conflict):
		return conflict.Error()
	case errors.As(err, &unknown):
		return unknown.Error()
	default:
		return err.Error()
	}
}
