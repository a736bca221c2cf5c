package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ffi-bridge/config"
	"github.com/wippyai/ffi-bridge/export"
)

func execute(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()
	if fs == nil {
		fs = afero.NewMemMapFs()
	}
	var out bytes.Buffer
	root := newRootCmd(fs, &out)
	root.SetArgs(append([]string{"--log.level=error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestLayoutCmd(t *testing.T) {
	out, err := execute(t, nil, "layout")
	require.NoError(t, err)
	assert.Contains(t, out, "diplomat_result_double_void")
	assert.Contains(t, out, "double")
	assert.Contains(t, out, "offset 8")

	out, err = execute(t, nil, "layout", "u8", "f32")
	require.NoError(t, err)
	assert.Contains(t, out, "offset 4")

	_, err = execute(t, nil, "layout", "string")
	assert.Error(t, err)
}

func TestSymbolsCmd(t *testing.T) {
	out, err := execute(t, nil, "symbols", "Utf16Wrap_*")
	require.NoError(t, err)
	assert.Contains(t, out, "Utf16Wrap_to_f64(self i64, retptr i32) => *retptr diplomat_result_double_void")
	assert.Contains(t, out, "Utf16Wrap_from_utf16(ptr i32, len i32) -> self")
	assert.Contains(t, out, "cdecl")
	assert.NotContains(t, out, "diplomat_alloc")

	_, err = execute(t, nil, "symbols", "[")
	assert.Error(t, err)
}

func TestManifestCmd(t *testing.T) {
	out, err := execute(t, nil, "manifest")
	require.NoError(t, err)
	assert.Contains(t, out, "library: ffibridge")

	out, err = execute(t, nil, "manifest", "--format", "json")
	require.NoError(t, err)
	var m export.Manifest
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Len(t, m.Symbols, 8)

	_, err = execute(t, nil, "manifest", "-f", "toml")
	assert.Error(t, err)
}

func TestManifestCmd_ConfigFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "lib.yaml", []byte("module:\n  name: mylib\n"), 0o644))

	out, err := execute(t, fs, "-c", "lib.yaml", "manifest")
	require.NoError(t, err)
	assert.Contains(t, out, "library: mylib")

	out, err = execute(t, fs, "-c", "lib.yaml", "--module.name", "other", "manifest")
	require.NoError(t, err)
	assert.Contains(t, out, "library: other")

	_, err = execute(t, fs, "-c", "missing.yaml", "manifest")
	assert.Error(t, err)
}

func TestSchemaCmd(t *testing.T) {
	out, err := execute(t, nil, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"heap"`)

	out, err = execute(t, nil, "schema", "manifest")
	require.NoError(t, err)
	assert.Contains(t, out, `"symbols"`)

	_, err = execute(t, nil, "schema", "bogus")
	assert.Error(t, err)
}

func TestDemoCmd(t *testing.T) {
	out, err := execute(t, nil, "demo")
	require.NoError(t, err)
	assert.Contains(t, out, `Utf16Wrap("hi", 2 units)`)
	assert.Contains(t, out, "0x0068 0x0069")
	assert.Contains(t, out, "same storage: true")
	assert.Contains(t, out, "double_release")
	assert.Contains(t, out, "Err")
	assert.Contains(t, out, "Utf16Wrap(destroyed)")
	assert.Contains(t, out, "use_after_destroy")
	assert.Contains(t, out, "peak")

	out, err = execute(t, nil, "demo", "2.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Ok(2.5)")
}

func TestDemoCmd_PanicPolicy(t *testing.T) {
	out, err := execute(t, nil, "--violation.policy", "panic", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "panic: [buffer] double_release")
	assert.Contains(t, out, "use_after_destroy")
	assert.Contains(t, out, "Utf16Wrap(destroyed)")
}

func TestRoot_InvalidFlag(t *testing.T) {
	_, err := execute(t, nil, "--violation.policy", "abort", "demo")
	assert.Error(t, err)
}

func TestInteractiveModel_Call(t *testing.T) {
	ctx := context.Background()
	lib, err := export.New(ctx, config.Default())
	require.NoError(t, err)
	defer lib.Close(ctx)

	m := newInteractiveModel(lib)
	require.Equal(t, newObjectEntry, m.funcs[0].Name)
	assert.Contains(t, m.View(), "Select a symbol")

	m.prepareInputs()
	m.inputs[0].SetValue("hi")
	msg := m.call(ctx)
	require.NoError(t, msg.err)
	assert.Contains(t, msg.result, `Utf16Wrap("hi", 2 units)`)
	assert.Equal(t, 1, lib.Objects().Len())

	h := lib.Objects().Table().Handles()[0]

	for i, f := range m.funcs {
		if f.Name == "Utf16Wrap_destroy" {
			m.selected = i
		}
	}
	m.prepareInputs()
	m.inputs[0].SetValue("self")
	msg = m.call(ctx)
	assert.Error(t, msg.err)

	m.inputs[0].SetValue(strconv.FormatUint(uint64(h), 10))
	msg = m.call(ctx)
	require.NoError(t, msg.err)
	assert.Equal(t, "ok", msg.result)

	msg = m.call(ctx)
	require.Error(t, msg.err)
	assert.Contains(t, msg.err.Error(), "double_destroy")
}
