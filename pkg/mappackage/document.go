package mappackage

import (
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/mapaction/mapimport/pkg/errors"
)

// metadataRoot is the element all map metadata lives under.
const metadataRoot = "mapdata"

// Document is a parsed map package metadata document.
type Document struct {
	doc     *etree.Document
	mapdata *etree.Element
}

// ParseDocument reads a metadata document. Input that is not well-formed XML
// fails with a MalformedMetadata error carrying the parser message.
//
// A byte order mark selects UTF-8 or UTF-16; a legacy charset named in the
// XML declaration (windows-1252, ISO-8859-1, ...) is decoded through the
// WHATWG encoding index.
func ParseDocument(r io.Reader) (*Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader

	if _, err := doc.ReadFrom(transform.NewReader(r, unicode.BOMOverride(transform.Nop))); err != nil {
		return nil, errors.NewMalformedMetadataError(err)
	}

	root := doc.Root()
	if root == nil {
		return nil, errors.NewMalformedMetadataError(fmt.Errorf("no root element"))
	}

	return &Document{
		doc:     doc,
		mapdata: root.FindElement(".//" + metadataRoot),
	}, nil
}

// charsetReader decodes documents declaring a non UTF-8 encoding.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	// BOMOverride has already transcoded UTF-16 input to UTF-8.
	if strings.HasPrefix(strings.ToLower(label), "utf-16") {
		return input, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// Text returns the text of the named element directly under mapdata.
// A missing or empty element is reported as absent, not as an error.
func (d *Document) Text(field string) (string, bool) {
	if d.mapdata == nil {
		return "", false
	}
	el := d.mapdata.SelectElement(field)
	if el == nil {
		return "", false
	}
	text := el.Text()
	if text == "" {
		return "", false
	}
	return text, true
}

// MandatoryText is Text for fields a map package cannot do without.
func (d *Document) MandatoryText(field string) (string, error) {
	text, ok := d.Text(field)
	if !ok {
		return "", &errors.MissingFieldError{Field: field}
	}
	return text, nil
}

// Themes returns the text of every theme element anywhere under mapdata, in
// document order, without vocabulary filtering.
func (d *Document) Themes() []string {
	if d.mapdata == nil {
		return nil
	}
	var themes []string
	for _, el := range d.mapdata.FindElements(".//theme") {
		themes = append(themes, el.Text())
	}
	return themes
}

// extras converts the direct children of mapdata into extras.
func (d *Document) extras() Extras {
	var extras Extras
	if d.mapdata == nil {
		return extras
	}

	for _, el := range d.mapdata.ChildElements() {
		key := el.Tag
		if _, excluded := excludedExtras[key]; excluded {
			continue
		}

		if key == "countries-iso3" {
			countries := []string{}
			for _, country := range el.SelectElements("country-iso3") {
				countries = append(countries, country.Text())
			}
			extras.Set("country-iso3", countries)
			continue
		}

		extras.Set(key, el.Text())
	}
	return extras
}
