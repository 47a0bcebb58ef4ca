package mappackage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/gosimple/slug"

	"github.com/mapaction/mapimport/pkg/constants"
	"github.com/mapaction/mapimport/pkg/errors"
	"github.com/mapaction/mapimport/pkg/logging"
)

// Dataset is the catalog-agnostic draft built from a metadata document.
type Dataset struct {
	Name          string         `json:"name" yaml:"name"`
	Title         string         `json:"title" yaml:"title"`
	Notes         string         `json:"notes" yaml:"notes"`
	Version       int            `json:"version" yaml:"version"`
	Type          string         `json:"type,omitempty" yaml:"type,omitempty"`
	LicenseID     string         `json:"license_id" yaml:"license_id"`
	ProductThemes []string       `json:"product_themes,omitempty" yaml:"product_themes,omitempty"`
	Extras        Extras         `json:"extras,omitempty" yaml:"extras,omitempty"`
	Fields        map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// firstClassFields are always present on a draft, whatever their value.
var firstClassFields = map[string]struct{}{
	"name":       {},
	"title":      {},
	"notes":      {},
	"version":    {},
	"type":       {},
	"license_id": {},
	"extras":     {},
}

// Field returns a first-class or promoted field value by catalog field name.
func (d *Dataset) Field(key string) (any, bool) {
	switch key {
	case "name":
		return d.Name, true
	case "title":
		return d.Title, true
	case "notes":
		return d.Notes, true
	case "version":
		return d.Version, true
	case "type":
		return d.Type, true
	case "license_id":
		return d.LicenseID, true
	case "extras":
		return d.Extras, true
	case "product_themes":
		if len(d.ProductThemes) == 0 {
			return nil, false
		}
		return d.ProductThemes, true
	}
	v, ok := d.Fields[key]
	return v, ok
}

// SetField stores a promoted schema field.
func (d *Dataset) SetField(key string, value any) {
	if d.Fields == nil {
		d.Fields = make(map[string]any)
	}
	d.Fields[key] = value
}

// Values flattens the draft into catalog field names, the shape schema
// validators and catalog clients work with.
func (d *Dataset) Values() map[string]any {
	values := make(map[string]any, len(firstClassFields)+len(d.Fields)+1)
	for key := range firstClassFields {
		if key == "extras" {
			continue
		}
		v, _ := d.Field(key)
		values[key] = v
	}
	if len(d.ProductThemes) > 0 {
		values["product_themes"] = append([]string(nil), d.ProductThemes...)
	}
	if len(d.Extras) > 0 {
		values["extras"] = d.Extras.List()
	}
	for k, v := range d.Fields {
		values[k] = v
	}
	return values
}

// Info is everything the reconciler needs from one map package.
type Info struct {
	Status      Status         `json:"status" yaml:"status"`
	OperationID string         `json:"operation_id" yaml:"operation_id"`
	Dataset     *Dataset       `json:"dataset" yaml:"dataset"`
	Files       []ResourceFile `json:"files" yaml:"files"`
	Diagnostics []string       `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Name returns the dataset slug.
func (i *Info) Name() string {
	return i.Dataset.Name
}

// ToDataset extracts the dataset draft, lifecycle status and operation id
// from a metadata document. Unrecognised themes are dropped and reported in
// Info.Diagnostics; every other problem is an error.
func ToDataset(ctx context.Context, doc *Document) (*Info, error) {
	dataset, diagnostics, err := populateDataset(ctx, doc)
	if err != nil {
		return nil, err
	}

	rawStatus, err := doc.MandatoryText("status")
	if err != nil {
		return nil, err
	}
	status, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	operationID, err := doc.MandatoryText("operationID")
	if err != nil {
		return nil, err
	}

	return &Info{
		Status:      status,
		OperationID: operationID,
		Dataset:     dataset,
		Diagnostics: diagnostics,
	}, nil
}

func populateDataset(ctx context.Context, doc *Document) (*Dataset, []string, error) {
	logger := logging.FromContext(ctx)

	title, _ := doc.Text("title")
	productType, _ := doc.Text("productType")

	operationID, err := doc.MandatoryText("operationID")
	if err != nil {
		return nil, nil, err
	}
	mapNumber, err := doc.MandatoryText("mapNumber")
	if err != nil {
		return nil, nil, err
	}
	versionText, err := doc.MandatoryText("versionNumber")
	if err != nil {
		return nil, nil, err
	}
	version, err := parseVersion(versionText)
	if err != nil {
		return nil, nil, err
	}

	summary, _ := doc.Text("summary")

	dataset := &Dataset{
		Name:      Slug(operationID, mapNumber, version),
		Title:     joinLines(title),
		Notes:     joinLines(summary),
		Version:   version,
		Type:      productType,
		LicenseID: constants.DefaultLicenseID,
		Extras:    doc.extras(),
	}

	var diagnostics []string
	for _, theme := range doc.Themes() {
		if IsProductTheme(theme) {
			dataset.ProductThemes = append(dataset.ProductThemes, theme)
			continue
		}
		diagnostics = append(diagnostics, fmt.Sprintf("Product theme '%s' not defined in product themes", theme))
		logger.Warn().
			Str("theme", theme).
			Str("dataset", dataset.Name).
			Msg("Dropping product theme outside the controlled vocabulary")
	}

	return dataset, diagnostics, nil
}

// Slug computes the catalog name of a map product. Packages with the same
// operation, map number and version always get the same name. Every run of
// characters that are not letters or digits becomes a single hyphen.
func Slug(operationID, mapNumber string, version int) string {
	return slug.Make(strings.Map(separator, fmt.Sprintf("%s %s v%d", operationID, mapNumber, version)))
}

// separator blanks out punctuation before slugging, so slug.Make neither
// keeps underscores nor spells out symbols such as & and @.
func separator(r rune) rune {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return r
	}
	return ' '
}

// BaseName strips the trailing version segment from a slug, giving the name
// shared by every version of the same map.
func BaseName(name string) string {
	i := strings.LastIndex(name, "-")
	if i < 0 {
		return ""
	}
	return name[:i]
}

func parseVersion(raw string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || version < 1 {
		return 0, &errors.InvalidVersionError{Value: raw}
	}
	return version, nil
}

// joinLines collapses multi-line text into a single line. Each line break
// becomes one space, blank lines included; a final line break is dropped.
func joinLines(text string) string {
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)
	text = strings.TrimSuffix(text, "\n")
	return strings.ReplaceAll(text, "\n", " ")
}
