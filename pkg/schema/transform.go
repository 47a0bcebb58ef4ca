package schema

import (
	"context"
	"maps"

	"github.com/mapaction/mapimport/pkg/constants"
	"github.com/mapaction/mapimport/pkg/errors"
	"github.com/mapaction/mapimport/pkg/logging"
	"github.com/mapaction/mapimport/pkg/mappackage"
)

// DatasetType resolves the schema type of a draft: its own type if set,
// otherwise the registry's preferred type, otherwise the catalog default.
func DatasetType(ds *mappackage.Dataset, reg Registry) string {
	if ds.Type != "" {
		return ds.Type
	}
	if types := reg.DefaultTypes(); len(types) > 0 {
		return types[0]
	}
	return constants.DefaultDatasetType
}

// Transform returns a copy of ds shaped for the registry schema. Extras
// declared as schema fields are promoted to first-class fields; the rest
// stay extras in their original order. The returned field errors come from
// the registry validator and are left for the caller to act on.
//
// An extra that collides with a field the draft already carries means the
// metadata parser and the schema disagree about which fields are first
// class. That is a configuration defect and fails with a SchemaConflictError.
func Transform(ctx context.Context, ds *mappackage.Dataset, reg Registry) (*mappackage.Dataset, errors.Fields, error) {
	logger := logging.FromContext(ctx)

	out := clone(ds)
	out.Type = DatasetType(ds, reg)

	if fields, ok := reg.FieldsForType(out.Type); ok {
		var kept mappackage.Extras
		for _, extra := range out.Extras {
			if !fields.Has(extra.Key) {
				kept = append(kept, extra)
				continue
			}
			if existing, exists := out.Field(extra.Key); exists {
				return nil, nil, &errors.SchemaConflictError{
					Key:      extra.Key,
					Existing: existing,
					Value:    extra.Value,
				}
			}
			out.SetField(extra.Key, extra.Value)
			logger.Debug().Str("field", extra.Key).Str("type", out.Type).Msg("Promoted extra to schema field")
		}
		out.Extras = kept
	} else {
		logger.Debug().Str("type", out.Type).Msg("No schema registered for dataset type")
	}

	_, fieldErrors := reg.Validate(out.Type, out.Values())
	if len(fieldErrors) > 0 {
		logger.Warn().
			Str("dataset", out.Name).
			Strs("fields", fieldErrors.Keys()).
			Msg("Dataset failed schema validation")
	}
	return out, fieldErrors, nil
}

func clone(ds *mappackage.Dataset) *mappackage.Dataset {
	out := *ds
	out.ProductThemes = append([]string(nil), ds.ProductThemes...)
	out.Extras = append(mappackage.Extras(nil), ds.Extras...)
	out.Fields = maps.Clone(ds.Fields)
	return &out
}
