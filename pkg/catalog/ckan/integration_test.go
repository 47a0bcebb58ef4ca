package ckan_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapaction/mapimport"
	"github.com/mapaction/mapimport/pkg/catalog/ckan"
	"github.com/mapaction/mapimport/pkg/mappackage"
	"github.com/mapaction/mapimport/pkg/mappackage/mappackagetest"
	"github.com/mapaction/mapimport/pkg/reconciler"
)

// site is a stateful CKAN action API covering the calls an import makes.
type site struct {
	mu        sync.Mutex
	seq       int
	packages  map[string]map[string]any // by id
	members   []map[string]any
	versions  []map[string]any
	actions   []string
	failNth   map[string]int // action -> 1-based call that fails with a 500
	callCount map[string]int
}

func newSite() *site {
	return &site{
		packages:  map[string]map[string]any{},
		failNth:   map[string]int{},
		callCount: map[string]int{},
	}
}

func (s *site) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *site) find(idOrName string) (map[string]any, bool) {
	if p, ok := s.packages[idOrName]; ok {
		return p, true
	}
	for _, p := range s.packages {
		if p["name"] == idOrName {
			return p, true
		}
	}
	return nil, false
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/3/action/")

	body := map[string]any{}
	var file []byte
	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			data, _ := io.ReadAll(part)
			if part.FileName() != "" {
				file = data
				continue
			}
			body[part.FormName()] = string(data)
		}
	} else {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.actions = append(s.actions, action)
	s.callCount[action]++
	if n, ok := s.failNth[action]; ok && n == s.callCount[action] {
		reply(w, http.StatusInternalServerError, false, map[string]any{"__type": "Internal Error", "message": "boom"})
		return
	}

	if r.Header.Get("Authorization") != "secret" {
		reply(w, http.StatusForbidden, false, map[string]any{"__type": "Authorization Error", "message": "Access denied"})
		return
	}

	notFound := map[string]any{"__type": "Not Found Error", "message": "Not found"}

	switch action {
	case "package_show":
		p, ok := s.find(fmt.Sprint(body["id"]))
		if !ok {
			reply(w, http.StatusNotFound, false, notFound)
			return
		}
		reply(w, http.StatusOK, true, p)

	case "package_create":
		if _, taken := s.find(fmt.Sprint(body["name"])); taken {
			reply(w, http.StatusConflict, false, map[string]any{
				"__type": "Validation Error",
				"name":   []string{"That URL is already in use."},
			})
			return
		}
		body["id"] = s.nextID("pkg")
		body["resources"] = []any{}
		s.packages[body["id"].(string)] = body
		reply(w, http.StatusOK, true, body)

	case "package_update":
		p, ok := s.find(fmt.Sprint(body["id"]))
		if !ok {
			reply(w, http.StatusNotFound, false, notFound)
			return
		}
		if other, taken := s.find(fmt.Sprint(body["name"])); taken && other["id"] != p["id"] {
			reply(w, http.StatusConflict, false, map[string]any{
				"__type": "Validation Error",
				"name":   []string{"That URL is already in use."},
			})
			return
		}
		kept := []any{}
		if refs, ok := body["resources"].([]any); ok {
			for _, ref := range refs {
				id := ref.(map[string]any)["id"]
				for _, res := range p["resources"].([]any) {
					if res.(map[string]any)["id"] == id {
						kept = append(kept, res)
					}
				}
			}
		}
		body["resources"] = kept
		s.packages[p["id"].(string)] = body
		reply(w, http.StatusOK, true, body)

	case "package_delete":
		if _, ok := s.find(fmt.Sprint(body["id"])); !ok {
			reply(w, http.StatusNotFound, false, notFound)
			return
		}
		delete(s.packages, fmt.Sprint(body["id"]))
		reply(w, http.StatusOK, true, nil)

	case "resource_create":
		p, ok := s.find(fmt.Sprint(body["package_id"]))
		if !ok {
			reply(w, http.StatusNotFound, false, notFound)
			return
		}
		res := map[string]any{
			"id":         s.nextID("res"),
			"package_id": p["id"],
			"name":       body["name"],
			"url_type":   body["url_type"],
			"size":       len(file),
		}
		p["resources"] = append(p["resources"].([]any), res)
		reply(w, http.StatusOK, true, res)

	case "resource_delete":
		id := body["id"]
		for _, p := range s.packages {
			resources := p["resources"].([]any)
			for i, res := range resources {
				if res.(map[string]any)["id"] == id {
					p["resources"] = append(resources[:i:i], resources[i+1:]...)
					reply(w, http.StatusOK, true, nil)
					return
				}
			}
		}
		reply(w, http.StatusNotFound, false, notFound)

	case "group_show":
		if body["id"] != "189" {
			reply(w, http.StatusNotFound, false, notFound)
			return
		}
		reply(w, http.StatusOK, true, map[string]any{"id": "grp-189", "name": "189", "title": "Nepal earthquake"})

	case "member_create":
		s.members = append(s.members, body)
		reply(w, http.StatusOK, true, body)

	case "dataset_version_create":
		s.versions = append(s.versions, body)
		reply(w, http.StatusOK, true, body)

	default:
		reply(w, http.StatusBadRequest, false, map[string]any{"__type": "Bad request", "message": "unknown action " + action})
	}
}

func reply(w http.ResponseWriter, status int, success bool, v any) {
	envelope := map[string]any{"success": success}
	if success {
		envelope["result"] = v
	} else {
		envelope["error"] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}

func (s *site) snapshot() (packages int, actions []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.packages), append([]string(nil), s.actions...)
}

func newImporter(t *testing.T, s *site) (mapimport.Importer, afero.Fs) {
	t.Helper()

	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	client, err := ckan.New(srv.URL, ckan.WithAPIKey("secret", "token"))
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/scratch", 0o755))

	imp, err := mapimport.New(
		mapimport.WithCatalog(client),
		mapimport.WithExtractorOptions(mappackage.WithFs(fs), mappackage.WithTempDir("/scratch")),
		mapimport.WithReconcilerOptions(reconciler.WithSuffixGenerator(func() string { return "tmp" })),
	)
	require.NoError(t, err)
	return imp, fs
}

func mapPackage(t *testing.T, status string) *bytes.Reader {
	m := mappackagetest.DefaultMetadata()
	m.Status = status
	return bytes.NewReader(mappackagetest.Package(t, m,
		mappackagetest.Entry{Name: "MA001_v1.pdf", Body: "%PDF-1.4"},
		mappackagetest.Entry{Name: "MA001_v1.jpeg", Body: "\xff\xd8\xff"},
	))
}

func TestImportIntoSite(t *testing.T) {
	s := newSite()
	imp, _ := newImporter(t, s)
	ctx := context.Background()

	result, err := imp.Import(ctx, mapPackage(t, "New"), mapimport.WithOwnerOrg("mapaction"))
	require.NoError(t, err)
	assert.Equal(t, reconciler.ActionCreated, result.Action)
	assert.Equal(t, "189-ma001-v1", result.Name)

	s.mu.Lock()
	p, ok := s.find("189-ma001-v1")
	require.True(t, ok)
	assert.Equal(t, "mapaction", p["owner_org"])
	assert.Equal(t, true, p["private"])
	assert.Len(t, p["resources"], 2)
	require.Len(t, s.members, 1)
	assert.Equal(t, "grp-189", s.members[0]["id"])
	assert.Equal(t, p["id"], s.members[0]["object"])
	require.Len(t, s.versions, 1)
	assert.Equal(t, "189-ma001", s.versions[0]["base_name"])
	s.mu.Unlock()

	// A correction replaces the files in place
	result, err = imp.Import(ctx, mapPackage(t, "Correction"))
	require.NoError(t, err)
	assert.Equal(t, reconciler.ActionUpdated, result.Action)
	assert.Len(t, result.DeletedResources, 2)

	packages, _ := s.snapshot()
	assert.Equal(t, 1, packages)
	s.mu.Lock()
	p, _ = s.find("189-ma001-v1")
	assert.Len(t, p["resources"], 2)
	s.mu.Unlock()
}

func TestImportRollbackOnSite(t *testing.T) {
	s := newSite()
	s.failNth["resource_create"] = 2
	imp, fs := newImporter(t, s)

	_, err := imp.Import(context.Background(), mapPackage(t, "New"))
	require.Error(t, err)

	packages, actions := s.snapshot()
	assert.Zero(t, packages)
	assert.Equal(t, []string{
		"package_show", "group_show", "package_create",
		"resource_create", "resource_create",
		"resource_delete", "package_delete",
	}, actions)

	entries, err := afero.ReadDir(fs, "/scratch")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImportRejectedBySite(t *testing.T) {
	s := newSite()
	imp, _ := newImporter(t, s)

	_, err := imp.Import(context.Background(), mapPackage(t, "Correction"))
	require.Error(t, err)

	packages, actions := s.snapshot()
	assert.Zero(t, packages)
	assert.Equal(t, []string{"package_show"}, actions)
}
