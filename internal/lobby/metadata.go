// internal/lobby/metadata.go
package lobby

import "strings"

// Metadata is a key/value mapping with case-insensitive key lookup.
// The spelling of the first writer's key is preserved: setting "Map" then
// "map" updates the "Map" entry. An empty value still counts as a stored key.
type Metadata map[string]string

// Lookup finds the value for key, ignoring case. The second return reports
// whether any spelling of the key is present.
func (m Metadata) Lookup(key string) (string, bool) {
	k, ok := m.findKey(key)
	if !ok {
		return "", false
	}
	return m[k], true
}

// Get returns the value for key ignoring case, or "" when absent.
func (m Metadata) Get(key string) string {
	v, _ := m.Lookup(key)
	return v
}

// Set writes value under key, reusing the stored spelling of an existing
// case-insensitive match. Returns false when the stored value was already
// equal to value.
func (m Metadata) Set(key, value string) bool {
	k, ok := m.findKey(key)
	if !ok {
		m[key] = value
		return true
	}
	if m[k] == value {
		return false
	}
	m[k] = value
	return true
}

// Delete removes the exact key. Lookups are case-insensitive but removal is
// not; this mirrors the behavior games already depend on.
func (m Metadata) Delete(key string) {
	delete(m, key)
}

// Clone returns an independent copy. A nil receiver clones to nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal reports whether both maps hold exactly the same entries. Key case is
// significant here: equality is structural, matching snapshot comparison.
func (m Metadata) Equal(o Metadata) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

func (m Metadata) findKey(key string) (string, bool) {
	for k := range m {
		if strings.EqualFold(k, key) {
			return k, true
		}
	}
	return "", false
}
