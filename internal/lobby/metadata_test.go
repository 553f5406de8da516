// internal/lobby/metadata_test.go
package lobby

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataLookupCaseInsensitive(t *testing.T) {
	m := Metadata{"Map": "dust"}

	v, ok := m.Lookup("map")
	require.True(t, ok)
	assert.Equal(t, "dust", v)

	v, ok = m.Lookup("MAP")
	require.True(t, ok)
	assert.Equal(t, "dust", v)

	_, ok = m.Lookup("mode")
	assert.False(t, ok)
}

func TestMetadataSetPreservesStoredSpelling(t *testing.T) {
	m := Metadata{}

	changed := m.Set("Map", "dust")
	require.True(t, changed)

	// Writing through a differently-cased key updates the original entry.
	changed = m.Set("MAP", "aztec")
	require.True(t, changed)
	assert.Equal(t, "aztec", m["Map"])
	assert.Len(t, m, 1)

	// Unchanged value reports no change.
	changed = m.Set("map", "aztec")
	assert.False(t, changed)
}

func TestMetadataEmptyValueIsStored(t *testing.T) {
	m := Metadata{}
	require.True(t, m.Set("tag", ""))

	_, ok := m.Lookup("tag")
	assert.True(t, ok)
	assert.Equal(t, "", m.Get("tag"))
}

func TestMetadataDeleteExactKeyOnly(t *testing.T) {
	m := Metadata{"Map": "dust"}

	// Delete is exact-match even though lookups are case-insensitive.
	m.Delete("map")
	assert.Len(t, m, 1)

	m.Delete("Map")
	assert.Len(t, m, 0)
}

func TestMetadataCloneIsIndependent(t *testing.T) {
	m := Metadata{"a": "1"}
	c := m.Clone()
	c.Set("a", "2")

	assert.Equal(t, "1", m["a"])
	assert.Equal(t, "2", c["a"])
}

func TestMetadataEqualIsCaseSignificant(t *testing.T) {
	assert.True(t, Metadata{"a": "1"}.Equal(Metadata{"a": "1"}))
	assert.False(t, Metadata{"a": "1"}.Equal(Metadata{"A": "1"}))
	assert.False(t, Metadata{"a": "1"}.Equal(Metadata{"a": "2"}))
	assert.False(t, Metadata{"a": "1"}.Equal(Metadata{"a": "1", "b": "2"}))
	assert.True(t, Metadata{}.Equal(nil))
}
