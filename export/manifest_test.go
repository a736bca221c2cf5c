package export

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestManifest(t *testing.T) {
	lib := newLibrary(t)
	m := lib.Manifest()

	assert.Equal(t, "ffibridge", m.Library)
	assert.Equal(t, lib.ID().String(), m.ID)
	assert.Equal(t, "cdecl", m.Convention)
	require.Len(t, m.Symbols, 8)

	byName := make(map[string]SymbolInfo)
	for _, s := range m.Symbols {
		byName[s.Name] = s
	}

	toF64 := byName["Utf16Wrap_to_f64"]
	assert.Equal(t, "Utf16Wrap", toF64.Type)
	assert.Equal(t, "to_f64", toF64.Operation)
	assert.Equal(t, "diplomat_result_double_void", toF64.Returns)
	assert.Equal(t, []Param{{Name: "self", Type: "i64"}, {Name: "retptr", Type: "i32"}}, toF64.Params)
	assert.Empty(t, toF64.Results)

	assert.True(t, byName["Utf16Wrap_destroy"].Destructor)
	assert.False(t, byName["diplomat_free"].Destructor)
	assert.Equal(t, []Param{{Name: "ptr", Type: "i32"}}, byName["diplomat_alloc"].Results)
}

func TestRecords(t *testing.T) {
	records := Records()
	require.Len(t, records, 3)

	res := records[0]
	assert.Equal(t, "diplomat_result_double_void", res.Name)
	assert.Equal(t, uint32(16), res.Size)
	assert.Equal(t, uint32(8), res.Align)
	require.Len(t, res.Fields, 2)
	assert.Equal(t, FieldInfo{Name: "ok", CType: "double", Offset: 0, Size: 8}, res.Fields[0])
	assert.Equal(t, FieldInfo{Name: "is_ok", CType: "bool", Offset: 8, Size: 1}, res.Fields[1])

	assert.Equal(t, "DiplomatString16View", records[1].Name)
	assert.Equal(t, "DiplomatOwnedString16", records[2].Name)
	for _, r := range records[1:] {
		assert.Equal(t, uint32(8), r.Size)
		assert.Equal(t, uint32(4), r.Align)
	}
}

func TestManifest_Encodings(t *testing.T) {
	m := newLibrary(t).Manifest()

	data, err := m.JSON()
	require.NoError(t, err)
	var fromJSON Manifest
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, m, fromJSON)

	data, err = m.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: Utf16Wrap_borrow_cont")
	var fromYAML Manifest
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Equal(t, m, fromYAML)
}

func TestManifestSchema(t *testing.T) {
	data, err := ManifestSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "symbols")
	assert.Contains(t, props, "records")
}
