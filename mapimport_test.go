package mapimport_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapaction/mapimport"
	"github.com/mapaction/mapimport/pkg/catalog"
	"github.com/mapaction/mapimport/pkg/catalog/memory"
	pkgerrors "github.com/mapaction/mapimport/pkg/errors"
	"github.com/mapaction/mapimport/pkg/mappackage"
	"github.com/mapaction/mapimport/pkg/mappackage/mappackagetest"
	"github.com/mapaction/mapimport/pkg/reconciler"
	"github.com/mapaction/mapimport/pkg/schema"
)

const mapsheetSchema = `
scheming_version: 2
dataset_type: mapsheet
dataset_fields:
- field_name: title
  required: true
- field_name: mapNumber
  required: true
- field_name: language
  choices:
  - value: English
  - value: French
- field_name: country-iso3
  preset: multiple_text
`

type fixture struct {
	importer mapimport.Importer
	catalog  *memory.Catalog
	fs       afero.Fs
}

func newFixture(t *testing.T, opts ...mapimport.Option) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/scratch", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/schemas/mapsheet.yaml", []byte(mapsheetSchema), 0o644))
	reg, err := schema.NewFileRegistry(fs, "/schemas/mapsheet.yaml")
	require.NoError(t, err)

	c := memory.New(memory.WithGroups(catalog.Group{ID: "group-189", Name: "189"}))

	base := []mapimport.Option{
		mapimport.WithCatalog(c),
		mapimport.WithRegistry(reg),
		mapimport.WithExtractorOptions(mappackage.WithFs(fs), mappackage.WithTempDir("/scratch")),
		mapimport.WithReconcilerOptions(reconciler.WithSuffixGenerator(func() string { return "tmp" })),
	}
	imp, err := mapimport.New(append(base, opts...)...)
	require.NoError(t, err)

	return &fixture{importer: imp, catalog: c, fs: fs}
}

// assertScratchEmpty checks that no extraction directory survived.
func (f *fixture) assertScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := afero.ReadDir(f.fs, "/scratch")
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directories left behind")
}

func archive(t *testing.T, m mappackagetest.Metadata) *bytes.Reader {
	return bytes.NewReader(mappackagetest.Package(t, m,
		mappackagetest.Entry{Name: "MA001_v1.pdf", Body: "%PDF-1.4"},
		mappackagetest.Entry{Name: "MA001_v1.jpeg", Body: "\xff\xd8\xff"},
	))
}

func TestImportCreatesRecord(t *testing.T) {
	f := newFixture(t)
	var created []*mapimport.Result
	f.importer.OnCreated(func(r *mapimport.Result) { created = append(created, r) })

	m := mappackagetest.DefaultMetadata()
	m.Themes = append(m.Themes, "Volcanoes")

	result, err := f.importer.Import(context.Background(), archive(t, m),
		mapimport.WithArchiveName("MA001.zip"),
		mapimport.WithOwnerOrg("mapaction"))
	require.NoError(t, err)

	assert.Equal(t, reconciler.ActionCreated, result.Action)
	assert.Equal(t, "189-ma001-v1", result.Name)
	assert.Equal(t, "MA001.zip", result.Archive)
	assert.Equal(t, mappackage.StatusNew, result.Status)
	assert.Equal(t, "189", result.OperationID)
	assert.Equal(t, []string{"Product theme 'Volcanoes' not defined in product themes"}, result.Diagnostics)
	require.Len(t, created, 1)
	assert.Same(t, result, created[0])

	record, ok := f.catalog.Record("189-ma001-v1")
	require.True(t, ok)
	assert.Equal(t, "Affected areas after the earthquake", record.Title)
	assert.Equal(t, "Overview of the affected districts.", record.Notes)
	assert.Equal(t, "mapsheet", record.Type)
	assert.Equal(t, "1", record.Version)
	assert.Equal(t, "notspecified", record.LicenseID)
	assert.Equal(t, []string{"Orientation and Reference"}, record.ProductThemes)
	assert.Equal(t, "MA001", record.Fields["mapNumber"])
	assert.Equal(t, "English", record.Fields["language"])
	assert.Equal(t, []string{"NPL"}, record.Fields["country-iso3"])
	assert.True(t, record.Private)

	require.Len(t, record.Resources, 2)
	assert.Equal(t, "MA001_v1.pdf", record.Resources[0].Name)
	content, ok := f.catalog.Upload(record.Resources[0].ID)
	require.True(t, ok)
	assert.Equal(t, "%PDF-1.4", string(content))

	assert.Len(t, f.catalog.Members(), 1)
	assert.Equal(t, []catalog.Version{{RecordID: record.ID, BaseName: "189-ma001", OwnerOrg: "mapaction"}}, f.catalog.Versions())
	f.assertScratchEmpty(t)
}

func TestImportCorrection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.importer.Import(ctx, archive(t, mappackagetest.DefaultMetadata()))
	require.NoError(t, err)
	before, _ := f.catalog.Record("189-ma001-v1")

	var updated []*mapimport.Result
	f.importer.OnUpdated(func(r *mapimport.Result) { updated = append(updated, r) })

	m := mappackagetest.DefaultMetadata()
	m.Status = "Correction"
	m.Title = "Affected areas (corrected)"
	result, err := f.importer.Import(ctx, bytes.NewReader(mappackagetest.Package(t, m,
		mappackagetest.Entry{Name: "MA001_v1.pdf", Body: "%PDF-1.5"})))
	require.NoError(t, err)
	require.Len(t, updated, 1)

	assert.Equal(t, reconciler.ActionUpdated, result.Action)
	assert.ElementsMatch(t, before.ResourceIDs(), result.DeletedResources)

	after, ok := f.catalog.Record("189-ma001-v1")
	require.True(t, ok)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "Affected areas (corrected)", after.Title)
	assert.Equal(t, result.CreatedResources, after.ResourceIDs())
	assert.Len(t, f.catalog.Records(), 1)
	f.assertScratchEmpty(t)
}

func TestImportRejections(t *testing.T) {
	tests := []struct {
		name   string
		input  func(t *testing.T) *bytes.Reader
		target error
		fields pkgerrors.Fields
	}{
		{
			name:   "not a zip",
			input:  func(*testing.T) *bytes.Reader { return bytes.NewReader([]byte("plain text")) },
			target: pkgerrors.ErrInvalidArchive,
			fields: pkgerrors.Fields{"upload": {"File is not a zip file"}},
		},
		{
			name: "no metadata",
			input: func(t *testing.T) *bytes.Reader {
				return bytes.NewReader(mappackagetest.Archive(t, mappackagetest.Entry{Name: "map.pdf", Body: "%PDF"}))
			},
			target: pkgerrors.ErrMissingMetadata,
			fields: pkgerrors.Fields{"upload": {"Could not find metadata XML in zip file"}},
		},
		{
			name: "missing operation",
			input: func(t *testing.T) *bytes.Reader {
				m := mappackagetest.DefaultMetadata()
				m.OperationID = ""
				return archive(t, m)
			},
			target: pkgerrors.ErrMissingField,
			fields: pkgerrors.Fields{"upload": {"Unable to find mandatory field 'operationID' in metadata"}},
		},
		{
			name: "bad version",
			input: func(t *testing.T) *bytes.Reader {
				m := mappackagetest.DefaultMetadata()
				m.VersionNumber = "one"
				return archive(t, m)
			},
			target: pkgerrors.ErrInvalidVersion,
			fields: pkgerrors.Fields{"upload": {"Version number 'one' must be an integer"}},
		},
		{
			name: "schema field error",
			input: func(t *testing.T) *bytes.Reader {
				m := mappackagetest.DefaultMetadata()
				m.Extras = [][2]string{{"language", "Klingon"}}
				return archive(t, m)
			},
			target: pkgerrors.ErrInvalidInput,
		},
		{
			name: "unknown operation",
			input: func(t *testing.T) *bytes.Reader {
				m := mappackagetest.DefaultMetadata()
				m.OperationID = "999"
				return archive(t, m)
			},
			target: pkgerrors.ErrUnknownOperation,
			fields: pkgerrors.Fields{"upload": {"Event or country code '999' does not exist"}},
		},
		{
			name: "correction of missing record",
			input: func(t *testing.T) *bytes.Reader {
				m := mappackagetest.DefaultMetadata()
				m.Status = "Correction"
				return archive(t, m)
			},
			target: pkgerrors.ErrExpectedExisting,
			fields: pkgerrors.Fields{"upload": {"Status is 'Correction' but dataset '189-ma001-v1' does not exist"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			var rejected []error
			f.importer.OnRejected(func(archive string, err error) {
				assert.Equal(t, "upload.zip", archive)
				rejected = append(rejected, err)
			})

			result, err := f.importer.Import(context.Background(), tt.input(t), mapimport.WithArchiveName("upload.zip"))
			assert.Nil(t, result)
			require.ErrorIs(t, err, tt.target)
			assert.True(t, pkgerrors.IsValidationError(err))
			if tt.fields != nil {
				assert.Equal(t, tt.fields, pkgerrors.ToFields(err))
			}

			assert.Len(t, rejected, 1)
			assert.Zero(t, f.catalog.Mutations())
			f.assertScratchEmpty(t)
		})
	}
}

func TestImportSchemaFieldErrors(t *testing.T) {
	m := mappackagetest.DefaultMetadata()
	m.Extras = [][2]string{{"language", "Klingon"}}

	t.Run("strict", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.importer.Import(context.Background(), archive(t, m))
		fields := pkgerrors.ToFields(err)
		assert.Equal(t, []string{"language"}, fields.Keys())
		assert.Empty(t, f.catalog.Records())
	})

	t.Run("lenient", func(t *testing.T) {
		f := newFixture(t, mapimport.WithLenientFields(true))
		result, err := f.importer.Import(context.Background(), archive(t, m))
		require.NoError(t, err)
		assert.Equal(t, "Klingon", result.Dataset.Fields["language"])
		assert.Len(t, f.catalog.Records(), 1)
	})
}

func TestImportRollbackCleansUp(t *testing.T) {
	boom := errors.New("boom")
	f := newFixture(t)
	f.catalog.SetFault(catalog.ActionCreateResource, memory.FailNth(2, boom))

	var rejected int
	f.importer.OnRejected(func(string, error) { rejected++ })

	_, err := f.importer.Import(context.Background(), archive(t, mappackagetest.DefaultMetadata()))
	require.ErrorIs(t, err, boom)
	assert.Nil(t, pkgerrors.ToFields(err))
	assert.Zero(t, rejected, "system failures are not rejections")

	assert.Empty(t, f.catalog.Records())
	f.assertScratchEmpty(t)
}

func TestImportUploadRequired(t *testing.T) {
	f := newFixture(t)

	_, err := f.importer.Import(context.Background(), nil)
	assert.Equal(t, pkgerrors.Fields{"upload": {"You must select a file to be imported"}}, pkgerrors.ToFields(err))
	assert.Empty(t, f.catalog.Calls())
}

func TestImportWithoutCatalog(t *testing.T) {
	imp, err := mapimport.New()
	require.NoError(t, err)

	_, err = imp.Import(context.Background(), bytes.NewReader(nil))
	var cfgErr *pkgerrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	_, err = imp.SyncThemes(context.Background())
	assert.ErrorAs(t, err, &cfgErr)
}

func TestInspect(t *testing.T) {
	f := newFixture(t)
	m := mappackagetest.DefaultMetadata()
	m.Extras = [][2]string{{"language", "Klingon"}, {"scale", "1: 500000"}}

	got, err := f.importer.Inspect(context.Background(), archive(t, m))
	require.NoError(t, err)

	assert.Equal(t, "MA001_v1_metadata.xml", got.MetadataName)
	assert.Equal(t, mappackage.StatusNew, got.Status)
	assert.Equal(t, "189-ma001-v1", got.Dataset.Name)
	assert.Equal(t, "mapsheet", got.Dataset.Type)
	require.Len(t, got.Files, 2)
	assert.Equal(t, "MA001_v1.pdf", got.Files[0].Name)
	assert.Equal(t, []string{"language"}, got.FieldErrors.Keys())

	assert.Empty(t, f.catalog.Calls())
	f.assertScratchEmpty(t)
}

func TestSyncThemes(t *testing.T) {
	f := newFixture(t)

	v, err := f.importer.SyncThemes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "product_themes", v.Name)
	assert.Equal(t, mappackage.ProductThemes(), v.Tags)

	stored, ok := f.catalog.Vocabulary("product_themes")
	require.True(t, ok)
	assert.Len(t, stored.Tags, len(mappackage.ProductThemes()))
}

func TestHookPanicIsContained(t *testing.T) {
	f := newFixture(t)
	f.importer.OnCreated(func(*mapimport.Result) { panic("hook failure") })

	result, err := f.importer.Import(context.Background(), archive(t, mappackagetest.DefaultMetadata()))
	require.NoError(t, err)
	assert.Equal(t, reconciler.ActionCreated, result.Action)
}

func TestNewOptionErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  mapimport.Option
	}{
		{name: "nil catalog", opt: mapimport.WithCatalog(nil)},
		{name: "nil registry", opt: mapimport.WithRegistry(nil)},
		{name: "bad extractor option", opt: mapimport.WithExtractorOptions(mappackage.WithMaxEntries(0))},
		{name: "bad reconciler option", opt: mapimport.WithReconcilerOptions(reconciler.WithSuffixGenerator(nil))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := memory.New()
			_, err := mapimport.New(mapimport.WithCatalog(c), tt.opt)
			assert.True(t, pkgerrors.IsValidationError(err))
		})
	}
}
