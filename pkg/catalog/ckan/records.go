package ckan

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mapaction/mapimport/pkg/catalog"
	"github.com/mapaction/mapimport/pkg/errors"
	"github.com/mapaction/mapimport/pkg/mappackage"
)

// recordKeys are the package dict keys mapped onto Record fields. Every
// other key round-trips through Record.Fields.
var recordKeys = map[string]bool{
	"id":             true,
	"name":           true,
	"title":          true,
	"type":           true,
	"notes":          true,
	"version":        true,
	"license_id":     true,
	"owner_org":      true,
	"private":        true,
	"state":          true,
	"product_themes": true,
	"extras":         true,
	"resources":      true,
}

// encodeRecord builds a package dict. Schema fields sit at the top level
// next to the core fields; extras values must be strings, so list values
// are JSON encoded.
func encodeRecord(r *catalog.Record) map[string]any {
	out := make(map[string]any, len(r.Fields)+len(recordKeys))
	for k, v := range r.Fields {
		if !recordKeys[k] {
			out[k] = v
		}
	}

	if r.ID != "" {
		out["id"] = r.ID
	}
	out["name"] = r.Name
	out["title"] = r.Title
	out["notes"] = r.Notes
	out["version"] = r.Version
	out["license_id"] = r.LicenseID
	out["private"] = r.Private
	if r.Type != "" {
		out["type"] = r.Type
	}
	if r.OwnerOrg != "" {
		out["owner_org"] = r.OwnerOrg
	}
	if len(r.ProductThemes) > 0 {
		out["product_themes"] = r.ProductThemes
	}

	extras := make([]map[string]string, 0, len(r.Extras))
	for _, x := range r.Extras {
		extras = append(extras, map[string]string{"key": x.Key, "value": extraValue(x.Value)})
	}
	out["extras"] = extras

	// package_update replaces the resource list wholesale.
	if r.ID != "" {
		resources := make([]map[string]any, 0, len(r.Resources))
		for _, res := range r.Resources {
			resources = append(resources, map[string]any{"id": res.ID})
		}
		out["resources"] = resources
	}
	return out
}

func extraValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// decodeRecord reads a package dict.
func decodeRecord(raw json.RawMessage) (*catalog.Record, error) {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, errors.WrapParse("json", "package", err)
	}

	r := &catalog.Record{
		ID:            str(m["id"]),
		Name:          str(m["name"]),
		Title:         str(m["title"]),
		Type:          str(m["type"]),
		Notes:         str(m["notes"]),
		Version:       str(m["version"]),
		LicenseID:     str(m["license_id"]),
		OwnerOrg:      str(m["owner_org"]),
		State:         str(m["state"]),
		ProductThemes: strs(m["product_themes"]),
	}
	r.Private, _ = m["private"].(bool)

	if list, ok := m["extras"].([]any); ok {
		for _, item := range list {
			if kv, ok := item.(map[string]any); ok {
				r.Extras = append(r.Extras, mappackage.Extra{Key: str(kv["key"]), Value: str(kv["value"])})
			}
		}
	}

	if list, ok := m["resources"].([]any); ok {
		for _, item := range list {
			if rm, ok := item.(map[string]any); ok {
				r.Resources = append(r.Resources, resourceFrom(rm))
			}
		}
	}

	for k, v := range m {
		if recordKeys[k] {
			continue
		}
		if r.Fields == nil {
			r.Fields = make(map[string]any)
		}
		r.Fields[k] = v
	}
	return r, nil
}

func decodeResource(raw json.RawMessage) (*catalog.Resource, error) {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, errors.WrapParse("json", "resource", err)
	}
	res := resourceFrom(m)
	return &res, nil
}

func resourceFrom(m map[string]any) catalog.Resource {
	res := catalog.Resource{
		ID:        str(m["id"]),
		PackageID: str(m["package_id"]),
		Name:      str(m["name"]),
		URL:       str(m["url"]),
		URLType:   str(m["url_type"]),
	}
	if n, ok := m["size"].(json.Number); ok {
		res.Size, _ = n.Int64()
	}
	return res
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// strs accepts a JSON list or a single string.
func strs(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, s := range t {
			out = append(out, str(s))
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}
