package mappackage

// productThemes is the controlled vocabulary for map product themes. Values
// are declared as catalog tags, so they must only contain alphanumeric
// characters, spaces and the symbols -_.
var productThemes = []string{
	"Affected Population",
	"Agriculture",
	"Appeals",
	"Camp Coordination or Management",
	"Early Recovery",
	"Education",
	"Emergency Shelter",
	"Emergency Telecommunications",
	"Environmental Aspects",
	"Health",
	"Logistics",
	"Nutrition",
	"P-codes",
	"Population Baseline",
	"Orientation and Reference",
	"Search and Rescue or Evacuation Planning",
	"Search and Rescue Sectors",
	"Security and Safety and Protection",
	"Situation and Damage",
	"Water Sanitation and Hygiene",
	"Who-What-Where",
}

// excludedExtras are mapdata children already modelled as first-class
// dataset fields; they never become extras.
var excludedExtras = map[string]struct{}{
	"operationID":   {},
	"status":        {},
	"theme":         {},
	"themes":        {},
	"title":         {},
	"versionNumber": {},
}

var productThemeSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(productThemes))
	for _, theme := range productThemes {
		set[theme] = struct{}{}
	}
	return set
}()

// ProductThemes returns the controlled theme vocabulary in canonical order.
func ProductThemes() []string {
	return append([]string(nil), productThemes...)
}

// IsProductTheme reports whether theme is a member of the controlled vocabulary.
func IsProductTheme(theme string) bool {
	_, ok := productThemeSet[theme]
	return ok
}
