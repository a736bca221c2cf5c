package export

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/ffi-bridge/abi"
	"github.com/wippyai/ffi-bridge/errors"
	"github.com/wippyai/ffi-bridge/layout"
	"github.com/wippyai/ffi-bridge/result"
)

// Manifest describes the exported surface of a library: every symbol with
// its C signature and every record written through a retptr. Binding
// generators consume it.
type Manifest struct {
	Library    string       `json:"library" yaml:"library" jsonschema:"description=Host module name"`
	ID         string       `json:"id" yaml:"id" jsonschema:"format=uuid"`
	Convention string       `json:"convention" yaml:"convention" jsonschema:"enum=cdecl"`
	Symbols    []SymbolInfo `json:"symbols" yaml:"symbols"`
	Records    []RecordInfo `json:"records" yaml:"records"`
}

// SymbolInfo describes one exported symbol.
type SymbolInfo struct {
	Name       string  `json:"name" yaml:"name"`
	Type       string  `json:"type,omitempty" yaml:"type,omitempty"`
	Operation  string  `json:"operation,omitempty" yaml:"operation,omitempty"`
	Returns    string  `json:"returns,omitempty" yaml:"returns,omitempty" jsonschema:"description=Record written through retptr"`
	Doc        string  `json:"doc,omitempty" yaml:"doc,omitempty"`
	Params     []Param `json:"params" yaml:"params"`
	Results    []Param `json:"results,omitempty" yaml:"results,omitempty"`
	Destructor bool    `json:"destructor,omitempty" yaml:"destructor,omitempty"`
}

// Param is a named core value.
type Param struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type" jsonschema:"enum=i32,enum=i64,enum=f32,enum=f64"`
}

// RecordInfo describes a fixed-layout record.
type RecordInfo struct {
	Name   string      `json:"name" yaml:"name"`
	Fields []FieldInfo `json:"fields" yaml:"fields"`
	Size   uint32      `json:"size" yaml:"size"`
	Align  uint32      `json:"align" yaml:"align"`
}

// FieldInfo is one record field.
type FieldInfo struct {
	Name   string `json:"name" yaml:"name"`
	CType  string `json:"ctype" yaml:"ctype"`
	Offset uint32 `json:"offset" yaml:"offset"`
	Size   uint32 `json:"size" yaml:"size"`
}

// Manifest returns the library manifest.
func (l *Library) Manifest() Manifest {
	m := Manifest{
		Library:    l.cfg.Module.Name,
		ID:         l.id.String(),
		Convention: string(abi.CDecl),
		Records:    Records(),
	}
	for _, f := range l.Funcs() {
		m.Symbols = append(m.Symbols, SymbolInfo{
			Name:       f.Name,
			Type:       f.TypeName,
			Operation:  f.Operation,
			Returns:    f.Returns,
			Doc:        f.Doc,
			Params:     params(f.ParamNames, f.Params),
			Results:    params(f.ResultNames, f.Results),
			Destructor: abi.IsDestructor(f.Name),
		})
	}
	return m
}

func params(names []string, types []api.ValueType) []Param {
	if len(types) == 0 {
		return nil
	}
	out := make([]Param, len(types))
	for i, t := range types {
		out[i] = Param{Name: names[i], Type: api.ValueTypeName(t)}
	}
	return out
}

// Records returns the layouts of the records exported symbols write.
func Records() []RecordInfo {
	r := result.F64Void.Layout()
	res := RecordInfo{
		Name:  result.F64Void.Name(),
		Size:  r.Size,
		Align: r.Align,
	}
	if r.HasOK {
		res.Fields = append(res.Fields, FieldInfo{Name: "ok", CType: layout.CName(wit.F64{}), Offset: 0, Size: r.OK.Size})
	}
	if r.HasErr {
		res.Fields = append(res.Fields, FieldInfo{Name: "err", Offset: 0, Size: r.Err.Size})
	}
	res.Fields = append(res.Fields, FieldInfo{Name: "is_ok", CType: "bool", Offset: r.IsOKOffset, Size: 1})

	units := &wit.TypeDef{Kind: &wit.List{Type: wit.U16{}}}
	view := layout.Of(units)
	slice := func(name string) RecordInfo {
		return RecordInfo{
			Name:  name,
			Size:  view.Size,
			Align: view.Align,
			Fields: []FieldInfo{
				{Name: "data", CType: "const uint16_t*", Offset: 0, Size: 4},
				{Name: "len", CType: "size_t", Offset: 4, Size: 4},
			},
		}
	}

	return []RecordInfo{res, slice(layout.CName(units)), slice(recordOwnedSlice)}
}

// JSON returns the manifest as indented JSON.
func (m Manifest) JSON() ([]byte, error) {
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.PhaseExport, errors.KindInvalidData, err, "marshal manifest")
	}
	return out, nil
}

// YAML returns the manifest as YAML.
func (m Manifest) YAML() ([]byte, error) {
	out, err := yaml.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseExport, errors.KindInvalidData, err, "marshal manifest")
	}
	return out, nil
}

// ManifestSchema returns the JSON schema of Manifest.
func ManifestSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	out, err := json.MarshalIndent(reflector.Reflect(&Manifest{}), "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.PhaseExport, errors.KindInvalidData, err, "marshal manifest schema")
	}
	return out, nil
}
