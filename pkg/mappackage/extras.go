package mappackage

// Extra is a free-form key/value attached to a dataset. Value is a string,
// or a []string for list-valued metadata such as country-iso3.
type Extra struct {
	Key   string `json:"key" yaml:"key"`
	Value any    `json:"value" yaml:"value"`
}

// Extras is an ordered set of extras keyed by Key.
type Extras []Extra

// Set stores value under key. An existing key keeps its position and takes
// the new value.
func (e *Extras) Set(key string, value any) {
	for i := range *e {
		if (*e)[i].Key == key {
			(*e)[i].Value = value
			return
		}
	}
	*e = append(*e, Extra{Key: key, Value: value})
}

// Get returns the value stored under key.
func (e Extras) Get(key string) (any, bool) {
	for _, x := range e {
		if x.Key == key {
			return x.Value, true
		}
	}
	return nil, false
}

// Delete removes key, reporting whether it was present.
func (e *Extras) Delete(key string) bool {
	for i := range *e {
		if (*e)[i].Key == key {
			*e = append((*e)[:i], (*e)[i+1:]...)
			return true
		}
	}
	return false
}

// Keys returns the keys in insertion order.
func (e Extras) Keys() []string {
	keys := make([]string, len(e))
	for i, x := range e {
		keys[i] = x.Key
	}
	return keys
}

// List returns the extras in the {"key": k, "value": v} form catalogs expect.
func (e Extras) List() []map[string]any {
	out := make([]map[string]any, len(e))
	for i, x := range e {
		out[i] = map[string]any{"key": x.Key, "value": x.Value}
	}
	return out
}
