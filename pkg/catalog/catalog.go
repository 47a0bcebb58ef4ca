// Package catalog defines the remote catalog the importer reconciles map
// packages against, and the record types exchanged with it.
//
// Implementations report a missing entity with an error satisfying
// errors.Is(err, pkgerrors.ErrNotFound), and a name that is already taken
// with one satisfying errors.Is(err, pkgerrors.ErrAlreadyExists).
package catalog

import (
	"context"
	"io"
	"maps"
	"strconv"

	"github.com/mapaction/mapimport/pkg/mappackage"
)

// Client is the action interface of a dataset catalog.
type Client interface {
	ShowRecord(ctx context.Context, idOrName string) (*Record, error)
	CreateRecord(ctx context.Context, record *Record) (*Record, error)
	UpdateRecord(ctx context.Context, record *Record) (*Record, error)
	DeleteRecord(ctx context.Context, id string) error

	// CreateResource attaches a file to a record, streaming body as the upload.
	CreateResource(ctx context.Context, resource *Resource, body io.Reader) (*Resource, error)
	DeleteResource(ctx context.Context, id string) error

	ShowGroup(ctx context.Context, id string) (*Group, error)
	CreateMember(ctx context.Context, member *Member) error

	CreateVersion(ctx context.Context, version *Version) error
}

// VocabularyManager is implemented by catalogs that support tag vocabularies.
type VocabularyManager interface {
	// EnsureVocabulary creates the named vocabulary or replaces its tags.
	EnsureVocabulary(ctx context.Context, name string, tags []string) (*Vocabulary, error)
}

// Record is a catalog dataset.
type Record struct {
	ID            string            `json:"id,omitempty" yaml:"id,omitempty"`
	Name          string            `json:"name" yaml:"name"`
	Title         string            `json:"title" yaml:"title"`
	Type          string            `json:"type,omitempty" yaml:"type,omitempty"`
	Notes         string            `json:"notes,omitempty" yaml:"notes,omitempty"`
	Version       string            `json:"version,omitempty" yaml:"version,omitempty"`
	LicenseID     string            `json:"license_id,omitempty" yaml:"license_id,omitempty"`
	OwnerOrg      string            `json:"owner_org,omitempty" yaml:"owner_org,omitempty"`
	Private       bool              `json:"private" yaml:"private"`
	State         string            `json:"state,omitempty" yaml:"state,omitempty"`
	ProductThemes []string          `json:"product_themes,omitempty" yaml:"product_themes,omitempty"`
	Extras        mappackage.Extras `json:"extras,omitempty" yaml:"extras,omitempty"`
	Fields        map[string]any    `json:"fields,omitempty" yaml:"fields,omitempty"`
	Resources     []Resource        `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// NewRecord builds a record from a dataset draft.
func NewRecord(ds *mappackage.Dataset) *Record {
	r := &Record{}
	r.Apply(ds)
	return r
}

// Apply overwrites the record fields carried by the draft, leaving
// ownership, visibility and resources alone.
func (r *Record) Apply(ds *mappackage.Dataset) {
	r.Name = ds.Name
	r.Title = ds.Title
	r.Notes = ds.Notes
	r.Version = strconv.Itoa(ds.Version)
	r.Type = ds.Type
	r.LicenseID = ds.LicenseID
	if len(ds.ProductThemes) > 0 {
		r.ProductThemes = append([]string(nil), ds.ProductThemes...)
	}
	r.Extras = append(mappackage.Extras(nil), ds.Extras...)
	if len(ds.Fields) > 0 {
		if r.Fields == nil {
			r.Fields = make(map[string]any, len(ds.Fields))
		}
		maps.Copy(r.Fields, ds.Fields)
	}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := *r
	out.ProductThemes = append([]string(nil), r.ProductThemes...)
	out.Extras = append(mappackage.Extras(nil), r.Extras...)
	out.Fields = maps.Clone(r.Fields)
	out.Resources = append([]Resource(nil), r.Resources...)
	return &out
}

// ResourceIDs returns the ids of the attached resources in order.
func (r *Record) ResourceIDs() []string {
	ids := make([]string, len(r.Resources))
	for i, res := range r.Resources {
		ids[i] = res.ID
	}
	return ids
}

// Resource is a file attached to a record.
type Resource struct {
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	PackageID string `json:"package_id" yaml:"package_id"`
	Name      string `json:"name" yaml:"name"`
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	URLType   string `json:"url_type,omitempty" yaml:"url_type,omitempty"`
	Size      int64  `json:"size,omitempty" yaml:"size,omitempty"`
}

// Group is an operation (event or country) records are filed under.
type Group struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// Member places an object in a group.
type Member struct {
	GroupID    string `json:"id" yaml:"id"`
	ObjectID   string `json:"object" yaml:"object"`
	ObjectType string `json:"object_type" yaml:"object_type"`
	Capacity   string `json:"capacity" yaml:"capacity"`
}

// Version links a record into the version history of a map.
type Version struct {
	RecordID string `json:"id" yaml:"id"`
	BaseName string `json:"base_name" yaml:"base_name"`
	OwnerOrg string `json:"owner_org,omitempty" yaml:"owner_org,omitempty"`
}

// Vocabulary is a named tag vocabulary.
type Vocabulary struct {
	ID   string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name string   `json:"name" yaml:"name"`
	Tags []string `json:"tags" yaml:"tags"`
}

// ObjectTypeRecord is the member object type of a record.
const ObjectTypeRecord = "package"

// Catalog action names, as used in call logs and the CKAN action API.
const (
	ActionShowRecord     = "package_show"
	ActionCreateRecord   = "package_create"
	ActionUpdateRecord   = "package_update"
	ActionDeleteRecord   = "package_delete"
	ActionCreateResource = "resource_create"
	ActionDeleteResource = "resource_delete"
	ActionShowGroup      = "group_show"
	ActionCreateMember   = "member_create"
	ActionCreateVersion  = "dataset_version_create"
)

// IsMutating reports whether an action changes catalog state.
func IsMutating(action string) bool {
	switch action {
	case ActionShowRecord, ActionShowGroup:
		return false
	default:
		return true
	}
}
