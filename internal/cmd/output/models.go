package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mapaction/mapimport"
	"github.com/mapaction/mapimport/pkg/errors"
)

// FormatResult writes an import result. Tables show a property summary,
// other formats the full result.
func FormatResult(w io.Writer, result *mapimport.Result, format Format) error {
	if !format.IsTable() {
		return NewFormatter(format).Format(w, result)
	}
	return NewFormatter(format).Format(w, ResultToTableData(result, format == FormatWide))
}

// FormatInspection writes what inspect learned about an archive.
func FormatInspection(w io.Writer, in *mapimport.Inspection, format Format) error {
	if !format.IsTable() {
		return NewFormatter(format).Format(w, in)
	}
	return NewFormatter(format).Format(w, InspectionToTableData(in, format == FormatWide))
}

// FormatFieldErrors writes a field-attributed error map.
func FormatFieldErrors(w io.Writer, fields errors.Fields, format Format) error {
	if !format.IsTable() {
		return NewFormatter(format).Format(w, map[string]any{"errors": fields})
	}
	return NewFormatter(format).Format(w, FieldErrorsToTableData(fields))
}

// FormatThemes writes the controlled theme vocabulary.
func FormatThemes(w io.Writer, themes []string, format Format) error {
	if !format.IsTable() {
		return NewFormatter(format).Format(w, themes)
	}
	rows := make([][]string, len(themes))
	for i, theme := range themes {
		rows[i] = []string{theme}
	}
	return NewFormatter(format).Format(w, Data{Headers: []string{"Theme"}, Rows: rows})
}

// ResultToTableData converts an import result to a property table.
func ResultToTableData(result *mapimport.Result, wide bool) Data {
	rows := [][]string{
		{"Action", string(result.Action)},
		{"Dataset", result.Name},
		{"Status", result.Status.String()},
		{"Operation", result.OperationID},
	}
	if result.Record != nil {
		rows = append(rows,
			[]string{"ID", result.Record.ID},
			[]string{"Title", result.Record.Title},
			[]string{"Private", strconv.FormatBool(result.Record.Private)},
		)
	}
	rows = append(rows,
		[]string{"Resources", strconv.Itoa(len(result.CreatedResources))},
		[]string{"Replaced", strconv.Itoa(len(result.DeletedResources))},
	)
	if wide {
		if result.TempName != "" {
			rows = append(rows, []string{"Temporary Name", result.TempName})
		}
		rows = append(rows, []string{"Duration", result.Metadata.Duration.String()})
	}
	for _, d := range result.Diagnostics {
		rows = append(rows, []string{"Diagnostic", d})
	}
	for _, warning := range result.Warnings {
		rows = append(rows, []string{"Warning", warning})
	}
	return Data{
		Headers:         []string{"Property", "Value"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft},
	}
}

// InspectionToTableData converts an inspection to a property table.
func InspectionToTableData(in *mapimport.Inspection, wide bool) Data {
	rows := [][]string{
		{"Metadata", in.MetadataName},
		{"Status", in.Status.String()},
		{"Operation", in.OperationID},
	}
	if ds := in.Dataset; ds != nil {
		rows = append(rows,
			[]string{"Name", ds.Name},
			[]string{"Title", ds.Title},
			[]string{"Type", ds.Type},
			[]string{"Version", strconv.Itoa(ds.Version)},
			[]string{"Themes", strings.Join(ds.ProductThemes, ", ")},
		)
		if wide {
			for _, extra := range ds.Extras {
				rows = append(rows, []string{"Extra: " + label(extra.Key), fmt.Sprint(extra.Value)})
			}
		}
	}
	for _, f := range in.Files {
		value := f.Name
		if wide {
			value = fmt.Sprintf("%s (%d bytes)", f.Name, f.Size)
		}
		rows = append(rows, []string{"File", value})
	}
	for _, d := range in.Diagnostics {
		rows = append(rows, []string{"Diagnostic", d})
	}
	for _, field := range in.FieldErrors.Keys() {
		rows = append(rows, []string{"Field Error", field + ": " + strings.Join(in.FieldErrors[field], ", ")})
	}
	return Data{
		Headers:         []string{"Property", "Value"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft},
	}
}

// FieldErrorsToTableData converts a field error map to one row per message.
func FieldErrorsToTableData(fields errors.Fields) Data {
	var rows [][]string
	for _, field := range fields.Keys() {
		for _, msg := range fields[field] {
			rows = append(rows, []string{field, msg})
		}
	}
	return Data{Headers: []string{"Field", "Error"}, Rows: rows}
}

// label turns a metadata key such as "countries-iso3" or "map_scale" into
// a table label.
func label(key string) string {
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)
	return cases.Title(language.English).String(key)
}
