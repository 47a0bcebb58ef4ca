package ckan

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapaction/mapimport/pkg/catalog"
	pkgerrors "github.com/mapaction/mapimport/pkg/errors"
	"github.com/mapaction/mapimport/pkg/mappackage"
)

// request is one call received by the fake site.
type request struct {
	Action string
	Auth   string
	Body   map[string]any
	Form   map[string]string
	File   string
}

// fakeSite answers CKAN actions with canned responses.
type fakeSite struct {
	mu       sync.Mutex
	requests []request
	replies  map[string]reply
}

type reply struct {
	status int
	body   string
}

func ok(result string) reply {
	return reply{status: http.StatusOK, body: `{"success": true, "result": ` + result + `}`}
}

func fail(status int, errObj string) reply {
	return reply{status: status, body: `{"success": false, "error": ` + errObj + `}`}
}

func newFakeSite(t *testing.T, replies map[string]reply) (*fakeSite, *Client) {
	t.Helper()
	site := &fakeSite{replies: replies}
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", WithAPIKey("secret", "token"))
	require.NoError(t, err)
	return site, c
}

func (s *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/3/action/")
	rec := request{Action: action, Auth: r.Header.Get("Authorization")}

	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		rec.Form = map[string]string{}
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			data, _ := io.ReadAll(part)
			if part.FileName() != "" {
				rec.File = string(data)
				continue
			}
			rec.Form[part.FormName()] = string(data)
		}
	} else {
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)
	}

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	rep, found := s.replies[action]
	s.mu.Unlock()

	if !found {
		rep = fail(http.StatusNotFound, `{"__type": "Not Found Error", "message": "Not found"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = io.WriteString(w, rep.body)
}

func (s *fakeSite) last() request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func (s *fakeSite) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	for i, r := range s.requests {
		out[i] = r.Action
	}
	return out
}

const packageDict = `{
	"id": "p-1",
	"name": "189-ma001-v1",
	"title": "Affected areas",
	"type": "mapproduct",
	"notes": null,
	"version": "1",
	"license_id": "notspecified",
	"owner_org": "o-1",
	"private": true,
	"state": "active",
	"product_themes": ["Health"],
	"mapNumber": "MA001",
	"num_resources": 1,
	"extras": [{"key": "scale", "value": "1: 500000"}],
	"resources": [{"id": "r-1", "package_id": "p-1", "name": "map.pdf", "url_type": "upload", "size": 2048}]
}`

func TestShowRecord(t *testing.T) {
	site, c := newFakeSite(t, map[string]reply{catalog.ActionShowRecord: ok(packageDict)})

	r, err := c.ShowRecord(context.Background(), "189-ma001-v1")
	require.NoError(t, err)

	assert.Equal(t, "p-1", r.ID)
	assert.Equal(t, "mapproduct", r.Type)
	assert.Equal(t, "", r.Notes)
	assert.Equal(t, "1", r.Version)
	assert.True(t, r.Private)
	assert.Equal(t, []string{"Health"}, r.ProductThemes)
	assert.Equal(t, mappackage.Extras{{Key: "scale", Value: "1: 500000"}}, r.Extras)
	require.Len(t, r.Resources, 1)
	assert.Equal(t, catalog.Resource{ID: "r-1", PackageID: "p-1", Name: "map.pdf", URLType: "upload", Size: 2048}, r.Resources[0])
	assert.Equal(t, "MA001", r.Fields["mapNumber"])
	assert.Equal(t, json.Number("1"), r.Fields["num_resources"])

	got := site.last()
	assert.Equal(t, catalog.ActionShowRecord, got.Action)
	assert.Equal(t, "secret", got.Auth)
	assert.Equal(t, "189-ma001-v1", got.Body["id"])
}

func TestCreateRecordPayload(t *testing.T) {
	site, c := newFakeSite(t, map[string]reply{catalog.ActionCreateRecord: ok(packageDict)})

	_, err := c.CreateRecord(context.Background(), &catalog.Record{
		Name:          "189-ma001-v1-tmp",
		Title:         "Affected areas",
		Version:       "1",
		Type:          "mapproduct",
		LicenseID:     "notspecified",
		ProductThemes: []string{"Health"},
		Extras: mappackage.Extras{
			{Key: "country-iso3", Value: []string{"NPL", "IND"}},
			{Key: "scale", Value: "1: 500000"},
		},
		Fields: map[string]any{"mapNumber": "MA001", "name": "ignored"},
	})
	require.NoError(t, err)

	body := site.last().Body
	assert.Equal(t, "189-ma001-v1-tmp", body["name"])
	assert.Equal(t, false, body["private"])
	assert.Equal(t, "MA001", body["mapNumber"])
	assert.Equal(t, []any{"Health"}, body["product_themes"])
	assert.Equal(t, []any{
		map[string]any{"key": "country-iso3", "value": `["NPL","IND"]`},
		map[string]any{"key": "scale", "value": "1: 500000"},
	}, body["extras"])
	assert.NotContains(t, body, "id")
	assert.NotContains(t, body, "owner_org")
	assert.NotContains(t, body, "resources")
}

func TestUpdateRecordKeepsResources(t *testing.T) {
	site, c := newFakeSite(t, map[string]reply{catalog.ActionUpdateRecord: ok(packageDict)})

	_, err := c.UpdateRecord(context.Background(), &catalog.Record{
		ID:        "p-1",
		Name:      "189-ma001-v1",
		Resources: []catalog.Resource{{ID: "r-2"}},
	})
	require.NoError(t, err)

	body := site.last().Body
	assert.Equal(t, "p-1", body["id"])
	assert.Equal(t, []any{map[string]any{"id": "r-2"}}, body["resources"])
}

func TestActionErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply reply
		check func(t *testing.T, err error)
	}{
		{
			name:  "not found",
			reply: fail(http.StatusNotFound, `{"__type": "Not Found Error", "message": "Not found"}`),
			check: func(t *testing.T, err error) {
				assert.True(t, pkgerrors.IsNotFound(err))
			},
		},
		{
			name:  "name in use",
			reply: fail(http.StatusConflict, `{"__type": "Validation Error", "name": ["That URL is already in use."]}`),
			check: func(t *testing.T, err error) {
				assert.True(t, pkgerrors.IsAlreadyExists(err))
			},
		},
		{
			name:  "field validation",
			reply: fail(http.StatusConflict, `{"__type": "Validation Error", "title": ["Missing value"], "message": "ignored"}`),
			check: func(t *testing.T, err error) {
				assert.True(t, pkgerrors.IsValidationError(err))
				assert.Equal(t, pkgerrors.Fields{"title": {"Missing value"}}, pkgerrors.ToFields(err))
			},
		},
		{
			name:  "authorization",
			reply: fail(http.StatusForbidden, `{"__type": "Authorization Error", "message": "Access denied"}`),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, pkgerrors.ErrAPIKeyInvalid)
			},
		},
		{
			name:  "server error",
			reply: reply{status: http.StatusInternalServerError, body: "<html>oops</html>"},
			check: func(t *testing.T, err error) {
				assert.True(t, pkgerrors.IsCatalogUnavailable(err))
			},
		},
		{
			name:  "other action error",
			reply: fail(http.StatusBadRequest, `{"__type": "Search Error", "message": "bad query"}`),
			check: func(t *testing.T, err error) {
				var apiErr *pkgerrors.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "Search Error", apiErr.Type)
				assert.Equal(t, "bad query", apiErr.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newFakeSite(t, map[string]reply{catalog.ActionUpdateRecord: tt.reply})
			_, err := c.UpdateRecord(context.Background(), &catalog.Record{ID: "p-1", Name: "189-ma001-v1"})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCreateResourceUpload(t *testing.T) {
	site, c := newFakeSite(t, map[string]reply{
		catalog.ActionCreateResource: ok(`{"id": "r-9", "package_id": "p-1", "name": "map.pdf", "url": "http://ckan/map.pdf", "url_type": "upload", "size": 8}`),
	})

	res, err := c.CreateResource(context.Background(),
		&catalog.Resource{PackageID: "p-1", Name: "map.pdf"}, strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "r-9", res.ID)
	assert.Equal(t, int64(8), res.Size)

	got := site.last()
	assert.Equal(t, map[string]string{"package_id": "p-1", "name": "map.pdf", "url": "map.pdf", "url_type": "upload"}, got.Form)
	assert.Equal(t, "%PDF-1.4", got.File)
	assert.Equal(t, "secret", got.Auth)
}

func TestGroupMemberVersion(t *testing.T) {
	site, c := newFakeSite(t, map[string]reply{
		catalog.ActionShowGroup:     ok(`{"id": "g-1", "name": "00189", "title": "Nepal earthquake"}`),
		catalog.ActionCreateMember:  ok(`{}`),
		catalog.ActionCreateVersion: ok(`{}`),
	})
	ctx := context.Background()

	g, err := c.ShowGroup(ctx, "00189")
	require.NoError(t, err)
	assert.Equal(t, &catalog.Group{ID: "g-1", Name: "00189", Title: "Nepal earthquake"}, g)
	assert.Equal(t, false, site.last().Body["include_datasets"])

	require.NoError(t, c.CreateMember(ctx, &catalog.Member{GroupID: "g-1", ObjectID: "p-1", ObjectType: catalog.ObjectTypeRecord, Capacity: "member"}))
	assert.Equal(t, map[string]any{"id": "g-1", "object": "p-1", "object_type": "package", "capacity": "member"}, site.last().Body)

	require.NoError(t, c.CreateVersion(ctx, &catalog.Version{RecordID: "p-1", BaseName: "189-ma001", OwnerOrg: "o-1"}))
	assert.Equal(t, map[string]any{"id": "p-1", "base_name": "189-ma001", "owner_org": "o-1"}, site.last().Body)
}

func TestDeleteRecordPurge(t *testing.T) {
	site := &fakeSite{replies: map[string]reply{
		catalog.ActionDeleteRecord: ok(`null`),
		ActionPurgeRecord:          ok(`null`),
	}}
	srv := httptest.NewServer(site)
	defer srv.Close()

	soft, err := New(srv.URL)
	require.NoError(t, err)
	hard, err := New(srv.URL, WithPurge())
	require.NoError(t, err)

	require.NoError(t, soft.DeleteRecord(context.Background(), "p-1"))
	require.NoError(t, hard.DeleteRecord(context.Background(), "p-1"))
	assert.Equal(t, []string{catalog.ActionDeleteRecord, ActionPurgeRecord}, site.actions())
	assert.Empty(t, site.last().Auth)
}

func TestEnsureVocabulary(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		site, c := newFakeSite(t, map[string]reply{
			ActionCreateVocabulary: ok(`{"id": "v-1", "name": "product_themes", "tags": [{"name": "Health"}]}`),
		})

		v, err := c.EnsureVocabulary(context.Background(), "product_themes", []string{"Health"})
		require.NoError(t, err)
		assert.Equal(t, &catalog.Vocabulary{ID: "v-1", Name: "product_themes", Tags: []string{"Health"}}, v)
		assert.Equal(t, []string{ActionShowVocabulary, ActionCreateVocabulary}, site.actions())
	})

	t.Run("update", func(t *testing.T) {
		site, c := newFakeSite(t, map[string]reply{
			ActionShowVocabulary:   ok(`{"id": "v-1", "name": "product_themes", "tags": []}`),
			ActionUpdateVocabulary: ok(`{"id": "v-1", "name": "product_themes", "tags": [{"name": "Health"}, {"name": "Logistics"}]}`),
		})

		v, err := c.EnsureVocabulary(context.Background(), "product_themes", []string{"Health", "Logistics"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Health", "Logistics"}, v.Tags)
		assert.Equal(t, []string{ActionShowVocabulary, ActionUpdateVocabulary}, site.actions())
		assert.Equal(t, "v-1", site.last().Body["id"])
	})
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		url  string
		opts []Option
	}{
		{name: "empty url", url: ""},
		{name: "no scheme", url: "ckan.example.org"},
		{name: "ftp", url: "ftp://ckan.example.org"},
		{name: "empty key", url: "https://ckan.example.org", opts: []Option{WithAPIKey("", "token")}},
		{name: "nil client", url: "https://ckan.example.org", opts: []Option{WithHTTPClient(nil)}},
		{name: "zero timeout", url: "https://ckan.example.org", opts: []Option{WithTimeout(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.url, tt.opts...)
			assert.True(t, pkgerrors.IsValidationError(err))
		})
	}
}
