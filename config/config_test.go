package config

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ffi-bridge/errors"
	"github.com/wippyai/ffi-bridge/handle"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(PageSize), cfg.MemorySize())
	assert.Equal(t, uint32(PageSize), cfg.HeapLimit())
	assert.Equal(t, handle.PolicyError, cfg.Policy())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty module name", func(c *Config) { c.Module.Name = "" }},
		{"zero pages", func(c *Config) { c.Memory.Pages = 0 }},
		{"too many pages", func(c *Config) { c.Memory.Pages = 65537 }},
		{"unknown policy", func(c *Config) { c.Violation.Policy = "abort" }},
		{"unknown log level", func(c *Config) { c.Log.Level = "trace" }},
		{"heap base outside memory", func(c *Config) { c.Heap.Base = PageSize }},
		{"heap overruns memory", func(c *Config) { c.Heap.Size = PageSize }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.KindOf(errors.KindInvalidInput))
		})
	}
}

func TestHeapLimit(t *testing.T) {
	cfg := Default()
	cfg.Memory.Pages = 2
	cfg.Heap.Base = 4096
	cfg.Heap.Size = 8192
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(12288), cfg.HeapLimit())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "custom.yaml", []byte(`
module:
  name: textlib
memory:
  pages: 4
heap:
  poison: false
violation:
  policy: panic
`), 0o644))

	cfg, err := Load(fs, "custom.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, "textlib", cfg.Module.Name)
	assert.Equal(t, uint32(4), cfg.Memory.Pages)
	assert.False(t, cfg.Heap.Poison)
	assert.Equal(t, uint32(1024), cfg.Heap.Base, "untouched keys keep defaults")
	assert.Equal(t, handle.PolicyPanic, cfg.Policy())
}

func TestLoad_SearchPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "ffibridge.yaml", []byte("log:\n  level: debug\n"), 0o644))

	cfg, err := Load(fs, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "nope.yaml", nil)
	assert.ErrorIs(t, err, errors.KindOf(errors.KindNotFound))
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.yaml", []byte("heap:\n  poisson: true\n"), 0o644))

	_, err := Load(fs, "bad.yaml", nil)
	assert.ErrorIs(t, err, errors.KindOf(errors.KindInvalidData))
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.yaml", []byte("memory:\n  pages: 0\n"), 0o644))

	_, err := Load(fs, "bad.yaml", nil)
	require.Error(t, err)
}

func TestLoad_FlagsAndEnv(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "ffibridge.yaml", []byte("memory:\n  pages: 2\n"), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--memory.pages=3", "--log.level=warn"}))

	t.Setenv("FFIBRIDGE_LOG_LEVEL", "error")
	t.Setenv("FFIBRIDGE_HEAP_POISON", "false")

	cfg, err := Load(fs, "", flags)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), cfg.Memory.Pages, "flag beats file")
	assert.Equal(t, "error", cfg.Log.Level, "env beats flag")
	assert.False(t, cfg.Heap.Poison)
	assert.Equal(t, "ffibridge", cfg.Module.Name, "unchanged flags do not override")
}

func TestSchema(t *testing.T) {
	raw, err := Schema()
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	props, ok := doc["properties"].(map[string]interface{})
	require.True(t, ok)
	for _, key := range []string{"module", "memory", "heap", "violation", "log"} {
		assert.Contains(t, props, key)
	}
}

func TestCheckDocument(t *testing.T) {
	assert.NoError(t, CheckDocument([]byte("memory:\n  pages: 8\n")))
	assert.NoError(t, CheckDocument([]byte("")))
	assert.Error(t, CheckDocument([]byte("violation:\n  policy: abort\n")))
	assert.Error(t, CheckDocument([]byte("memory: [1, 2]\n")))
	assert.Error(t, CheckDocument([]byte("memory: [1, 2\n")))
}
