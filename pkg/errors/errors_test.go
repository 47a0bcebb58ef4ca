package errors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/mapaction/mapimport/pkg/errors"
)

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "dataset",
			ID:       "189-ma001-v1",
		}
		assert.Equal(t, "dataset with ID 189-ma001-v1 not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("group", "00189")
		wrapped := fmt.Errorf("show group: %w", base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
		assert.False(t, pkgerrors.IsValidationError(wrapped))
	})
}

func TestArchiveErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    error
		message string
	}{
		{
			name:    "invalid archive",
			err:     pkgerrors.NewInvalidArchiveError("File is not a zip file", errors.New("zip: not a valid zip file")),
			kind:    pkgerrors.ErrInvalidArchive,
			message: "File is not a zip file",
		},
		{
			name:    "missing metadata",
			err:     pkgerrors.NewMissingMetadataError(),
			kind:    pkgerrors.ErrMissingMetadata,
			message: "Could not find metadata XML in zip file",
		},
		{
			name:    "malformed metadata",
			err:     pkgerrors.NewMalformedMetadataError(errors.New("unexpected EOF")),
			kind:    pkgerrors.ErrMalformedMetadata,
			message: "Error parsing XML: 'unexpected EOF'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
			assert.True(t, errors.Is(tt.err, tt.kind))
			assert.True(t, pkgerrors.IsValidationError(tt.err))
		})
	}
}

func TestStatusConflictError(t *testing.T) {
	t.Run("unexpected existing", func(t *testing.T) {
		err := pkgerrors.NewUnexpectedExistingError("189-ma001-v1", "New")
		assert.Equal(t, "Status is 'New' but dataset '189-ma001-v1' already exists", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrUnexpectedExisting))
		assert.False(t, errors.Is(err, pkgerrors.ErrExpectedExisting))
	})

	t.Run("expected existing", func(t *testing.T) {
		err := pkgerrors.NewExpectedExistingError("189-ma001-v1", "Correction")
		assert.Equal(t, "Status is 'Correction' but dataset '189-ma001-v1' does not exist", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrExpectedExisting))
		assert.True(t, pkgerrors.IsValidationError(err))
	})
}

func TestSchemaConflictError(t *testing.T) {
	err := &pkgerrors.SchemaConflictError{Key: "title", Existing: "A", Value: "B"}
	assert.Equal(t, "key title already exists, A -> B", err.Error())
	assert.True(t, pkgerrors.IsSchemaConflict(err))
	assert.False(t, pkgerrors.IsValidationError(err), "schema conflicts are defects, not user errors")
}

func TestAPIError(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		err := &pkgerrors.APIError{Action: "package_show", StatusCode: 502, Message: "bad gateway"}
		assert.Contains(t, err.Error(), "package_show")
		assert.Contains(t, err.Error(), "502")
		assert.True(t, pkgerrors.IsCatalogUnavailable(err))
	})

	t.Run("client error", func(t *testing.T) {
		err := &pkgerrors.APIError{Action: "package_create", StatusCode: 400, Message: "bad request"}
		assert.False(t, pkgerrors.IsCatalogUnavailable(err))
	})

	t.Run("wrap helper", func(t *testing.T) {
		base := errors.New("connection refused")
		err := pkgerrors.WrapAPI("group_show", 0, base)
		apiErr, ok := err.(*pkgerrors.APIError)
		require.True(t, ok)
		assert.Equal(t, "group_show", apiErr.Action)
		assert.Equal(t, base, apiErr.Unwrap())
	})
}

func TestIOError(t *testing.T) {
	t.Run("unwrap", func(t *testing.T) {
		baseErr := errors.New("disk full")
		err := pkgerrors.NewIOError("write", "/tmp/mapactionzip/a.pdf", baseErr)
		assert.Equal(t, baseErr, err.Unwrap())
		assert.Contains(t, err.Error(), "/tmp/mapactionzip/a.pdf")
	})

	t.Run("wrap nil", func(t *testing.T) {
		assert.NoError(t, pkgerrors.WrapIO("read", "x", nil))
		assert.NoError(t, pkgerrors.WrapResource("create", "dataset", "x", nil))
		assert.NoError(t, pkgerrors.WrapParse("xml", "x", nil))
		assert.NoError(t, pkgerrors.WrapValidation("x", nil))
	})
}

func TestToFields(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want pkgerrors.Fields
	}{
		{
			name: "nil",
			err:  nil,
			want: nil,
		},
		{
			name: "system error",
			err:  errors.New("connection reset"),
			want: nil,
		},
		{
			name: "wrapped missing field",
			err:  fmt.Errorf("parse metadata: %w", &pkgerrors.MissingFieldError{Field: "mapNumber"}),
			want: pkgerrors.Fields{"upload": {"Unable to find mandatory field 'mapNumber' in metadata"}},
		},
		{
			name: "name collision",
			err:  &pkgerrors.NameCollisionError{Name: "189-ma001-v1"},
			want: pkgerrors.Fields{"name": {`"189-ma001-v1" already exists.`}},
		},
		{
			name: "field validation",
			err:  pkgerrors.NewValidationError("owner_org", "x", "Organization does not exist"),
			want: pkgerrors.Fields{"owner_org": {"Organization does not exist"}},
		},
		{
			name: "schema field errors",
			err:  pkgerrors.NewFieldsError(pkgerrors.Fields{"title": {"Missing value"}}),
			want: pkgerrors.Fields{"title": {"Missing value"}},
		},
		{
			name: "unknown operation",
			err:  &pkgerrors.UnknownOperationError{OperationID: "00189"},
			want: pkgerrors.Fields{"upload": {"Event or country code '00189' does not exist"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pkgerrors.ToFields(tt.err))
		})
	}
}

func TestFieldsError(t *testing.T) {
	assert.Nil(t, pkgerrors.NewFieldsError(nil))

	fields := pkgerrors.Fields{}
	fields.Add("b", "second")
	fields.Add("a", "first")
	fields.Add("a", "again")
	err := pkgerrors.NewFieldsError(fields)
	require.Error(t, err)
	assert.Equal(t, "validation failed: a: first, again; b: second", err.Error())
	assert.Equal(t, []string{"a", "b"}, fields.Keys())
}
