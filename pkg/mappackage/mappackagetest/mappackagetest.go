// Package mappackagetest builds map package archives for tests.
package mappackagetest

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

// Entry is one file in a test archive. Name is stored as raw bytes, so
// CP437 names can be written directly.
type Entry struct {
	Name string
	Body string
}

// Archive returns a zip archive holding entries in order.
func Archive(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Deflate})
		if err != nil {
			t.Fatalf("create zip entry %q: %v", e.Name, err)
		}
		if _, err := w.Write([]byte(e.Body)); err != nil {
			t.Fatalf("write zip entry %q: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// Metadata describes a metadata document. Empty fields are left out of the
// rendered XML.
type Metadata struct {
	Title         string
	Summary       string
	Status        string
	OperationID   string
	MapNumber     string
	VersionNumber string
	ProductType   string
	Themes        []string
	Countries     []string
	Extras        [][2]string // additional leaf elements, tag then text
}

// DefaultMetadata is a complete, valid document for map MA001 version 1 of
// operation 189.
func DefaultMetadata() Metadata {
	return Metadata{
		Title:         "Affected areas\nafter the earthquake",
		Summary:       "Overview of the affected districts.",
		Status:        "New",
		OperationID:   "189",
		MapNumber:     "MA001",
		VersionNumber: "1",
		ProductType:   "mapsheet",
		Themes:        []string{"Orientation and Reference"},
		Countries:     []string{"NPL"},
		Extras:        [][2]string{{"language", "English"}, {"scale", "1: 500000"}},
	}
}

// XML renders the document.
func (m Metadata) XML() string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<mapdoc>\n<mapdata>\n")
	leaf := func(tag, text string) {
		if text == "" {
			return
		}
		b.WriteString("<" + tag + ">" + escape(text) + "</" + tag + ">\n")
	}
	leaf("title", m.Title)
	leaf("summary", m.Summary)
	leaf("status", m.Status)
	leaf("operationID", m.OperationID)
	leaf("mapNumber", m.MapNumber)
	leaf("versionNumber", m.VersionNumber)
	leaf("productType", m.ProductType)
	if len(m.Themes) > 0 {
		b.WriteString("<themes>\n")
		for _, theme := range m.Themes {
			leaf("theme", theme)
		}
		b.WriteString("</themes>\n")
	}
	if len(m.Countries) > 0 {
		b.WriteString("<countries-iso3>\n")
		for _, c := range m.Countries {
			leaf("country-iso3", c)
		}
		b.WriteString("</countries-iso3>\n")
	}
	for _, kv := range m.Extras {
		leaf(kv[0], kv[1])
	}
	b.WriteString("</mapdata>\n</mapdoc>\n")
	return b.String()
}

// Package returns an archive holding the metadata document followed by the
// given payload files.
func Package(t testing.TB, m Metadata, files ...Entry) []byte {
	t.Helper()
	entries := append([]Entry{{Name: "MA001_v1_metadata.xml", Body: m.XML()}}, files...)
	return Archive(t, entries...)
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
