package mapimport_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/mapaction/mapimport"
	"github.com/mapaction/mapimport/pkg/catalog"
	"github.com/mapaction/mapimport/pkg/catalog/memory"
	"github.com/mapaction/mapimport/pkg/logging"
	"github.com/mapaction/mapimport/pkg/mappackage/mappackagetest"
)

// buildPackage zips a metadata document and one rendered map.
func buildPackage() *bytes.Reader {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range [][2]string{
		{"MA001_v1_metadata.xml", mappackagetest.DefaultMetadata().XML()},
		{"MA001_v1.pdf", "%PDF-1.4"},
	} {
		w, err := zw.Create(entry[0])
		if err != nil {
			log.Fatal(err)
		}
		if _, err := w.Write([]byte(entry[1])); err != nil {
			log.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		log.Fatal(err)
	}
	return bytes.NewReader(buf.Bytes())
}

func Example() {
	// Quiet the default logger for the example
	ctx := logging.WithLogger(context.Background(), logging.NewNopLogger())

	c := memory.New(memory.WithGroups(catalog.Group{ID: "group-189", Name: "189"}))
	imp, err := mapimport.New(mapimport.WithCatalog(c))
	if err != nil {
		log.Fatal(err)
	}

	imp.OnCreated(func(r *mapimport.Result) {
		fmt.Println("created hook:", r.Name)
	})

	result, err := imp.Import(ctx, buildPackage(), mapimport.WithOwnerOrg("mapaction"))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(result.Summary())

	// Output:
	// created hook: 189-ma001-v1
	// created 189-ma001-v1: 1 resources attached, 0 replaced, 0 warnings
}
