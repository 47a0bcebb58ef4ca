// Package errors provides custom error types for the mapimport system.
// User-data failures (archive, metadata and reconciliation problems) are
// validation errors that can be rendered back to the submitter; remote
// catalog failures and internal defects are kept distinct so callers can
// tell them apart with errors.Is and errors.As.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the mapimport system
var (
	// ErrNotFound indicates that a requested catalog entity was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a catalog entity already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that submitted data was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrAPIKeyRequired indicates that an API key is required but not provided
	ErrAPIKeyRequired = errors.New("API key required")

	// ErrAPIKeyInvalid indicates that the provided API key was rejected
	ErrAPIKeyInvalid = errors.New("API key invalid")

	// ErrCatalogUnavailable indicates that the remote catalog is temporarily unavailable
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// Map package sentinels. Each typed error below reports one of these
// through Is, in addition to ErrInvalidInput.
var (
	ErrInvalidArchive     = errors.New("invalid archive")
	ErrMissingMetadata    = errors.New("missing metadata")
	ErrMalformedMetadata  = errors.New("malformed metadata")
	ErrMissingField       = errors.New("missing mandatory field")
	ErrInvalidVersion     = errors.New("invalid version number")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrUnexpectedExisting = errors.New("dataset unexpectedly exists")
	ErrExpectedExisting   = errors.New("dataset expected to exist")
	ErrUnknownOperation   = errors.New("unknown operation")
	ErrNameCollision      = errors.New("name collision")
	ErrSchemaConflict     = errors.New("internal schema conflict")
)

// NotFoundError represents an error when a catalog entity is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// AlreadyExistsError represents a uniqueness violation reported by the catalog
type AlreadyExistsError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// NewAlreadyExistsError creates a new AlreadyExistsError
func NewAlreadyExistsError(resource, id string) *AlreadyExistsError {
	return &AlreadyExistsError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ArchiveError reports a problem with the submitted zip package itself.
// Kind is one of ErrInvalidArchive, ErrMissingMetadata or ErrMalformedMetadata.
type ArchiveError struct {
	Kind    error
	Message string
	Err     error
}

// Error implements the error interface
func (e *ArchiveError) Error() string {
	return e.Message
}

// Unwrap implements errors.Unwrap
func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ArchiveError) Is(target error) bool {
	return target == e.Kind || target == ErrInvalidInput
}

// NewInvalidArchiveError reports a structurally unusable archive.
func NewInvalidArchiveError(message string, err error) *ArchiveError {
	return &ArchiveError{Kind: ErrInvalidArchive, Message: message, Err: err}
}

// NewMissingMetadataError reports an archive without a metadata document.
func NewMissingMetadataError() *ArchiveError {
	return &ArchiveError{Kind: ErrMissingMetadata, Message: "Could not find metadata XML in zip file"}
}

// NewMalformedMetadataError reports a metadata document that is not well-formed XML.
func NewMalformedMetadataError(err error) *ArchiveError {
	return &ArchiveError{
		Kind:    ErrMalformedMetadata,
		Message: fmt.Sprintf("Error parsing XML: '%v'", err),
		Err:     err,
	}
}

// MissingFieldError reports a mandatory metadata element that is absent
type MissingFieldError struct {
	Field string
}

// Error implements the error interface
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Unable to find mandatory field '%s' in metadata", e.Field)
}

// Is implements errors.Is support
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField || target == ErrInvalidInput
}

// InvalidVersionError reports a versionNumber that is not a positive base-10 integer
type InvalidVersionError struct {
	Value string
}

// Error implements the error interface
func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("Version number '%s' must be an integer", e.Value)
}

// Is implements errors.Is support
func (e *InvalidVersionError) Is(target error) bool {
	return target == ErrInvalidVersion || target == ErrInvalidInput
}

// InvalidStatusError reports a lifecycle status outside New, Update and Correction
type InvalidStatusError struct {
	Value string
}

// Error implements the error interface
func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("Status '%s' must be one of New, Update or Correction", e.Value)
}

// Is implements errors.Is support
func (e *InvalidStatusError) Is(target error) bool {
	return target == ErrInvalidStatus || target == ErrInvalidInput
}

// StatusConflictError reports a lifecycle status that disagrees with the
// presence of the catalog record.
type StatusConflictError struct {
	Name   string
	Status string
	Exists bool
}

// Error implements the error interface
func (e *StatusConflictError) Error() string {
	if e.Exists {
		return fmt.Sprintf("Status is '%s' but dataset '%s' already exists", e.Status, e.Name)
	}
	return fmt.Sprintf("Status is '%s' but dataset '%s' does not exist", e.Status, e.Name)
}

// Is implements errors.Is support
func (e *StatusConflictError) Is(target error) bool {
	if target == ErrInvalidInput {
		return true
	}
	if e.Exists {
		return target == ErrUnexpectedExisting
	}
	return target == ErrExpectedExisting
}

// NewUnexpectedExistingError reports a New/Update package for a record that already exists.
func NewUnexpectedExistingError(name, status string) *StatusConflictError {
	return &StatusConflictError{Name: name, Status: status, Exists: true}
}

// NewExpectedExistingError reports a Correction package for a record that does not exist.
func NewExpectedExistingError(name, status string) *StatusConflictError {
	return &StatusConflictError{Name: name, Status: status, Exists: false}
}

// UnknownOperationError reports an operation id with no matching catalog group
type UnknownOperationError struct {
	OperationID string
	Err         error
}

// Error implements the error interface
func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("Event or country code '%s' does not exist", e.OperationID)
}

// Unwrap implements errors.Unwrap
func (e *UnknownOperationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *UnknownOperationError) Is(target error) bool {
	return target == ErrUnknownOperation || target == ErrInvalidInput
}

// NameCollisionError reports that the canonical dataset name is already taken
type NameCollisionError struct {
	Name string
	Err  error
}

// Error implements the error interface
func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("\"%s\" already exists.", e.Name)
}

// Unwrap implements errors.Unwrap
func (e *NameCollisionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *NameCollisionError) Is(target error) bool {
	return target == ErrNameCollision || target == ErrInvalidInput
}

// SchemaConflictError is raised when a schema field to be promoted from the
// extras is already a first-class dataset field. It indicates a broken schema
// configuration, not bad user data, so it does not match ErrInvalidInput.
type SchemaConflictError struct {
	Key      string
	Existing any
	Value    any
}

// Error implements the error interface
func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("key %s already exists, %v -> %v", e.Key, e.Existing, e.Value)
}

// Is implements errors.Is support
func (e *SchemaConflictError) Is(target error) bool {
	return target == ErrSchemaConflict
}

// APIError represents an error response from the catalog action API
type APIError struct {
	Action     string
	StatusCode int
	Type       string
	Message    string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog error from %s (status %d): %s", e.Action, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("catalog error from %s: %s", e.Action, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	if e.StatusCode >= 500 {
		return target == ErrCatalogUnavailable
	}
	return false
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "xml"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "delete", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// ResourceError represents a failed catalog operation
type ResourceError struct {
	Operation string // "create", "update", "delete", "show"
	Resource  string // "dataset", "resource", "group", "member", "version"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// AuthenticationError represents an authentication/authorization error
type AuthenticationError struct {
	Method  string
	Message string
	Err     error
}

// Error implements the error interface
func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication error (%s): %s", e.Method, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAPIKeyRequired || target == ErrAPIKeyInvalid
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a user-facing validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsSchemaConflict checks if an error is the fatal schema/extractor disagreement
func IsSchemaConflict(err error) bool {
	return errors.Is(err, ErrSchemaConflict)
}

// IsCatalogUnavailable checks if an error indicates the catalog is unavailable
func IsCatalogUnavailable(err error) bool {
	return errors.Is(err, ErrCatalogUnavailable)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapAPI wraps an error as an APIError
func WrapAPI(action string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{
		Action:     action,
		StatusCode: statusCode,
		Message:    err.Error(),
		Err:        err,
	}
}
