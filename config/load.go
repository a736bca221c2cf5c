package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/wippyai/ffi-bridge/errors"
)

// EnvPrefix prefixes environment overrides: FFIBRIDGE_HEAP_POISON=false
// sets heap.poison.
const EnvPrefix = "FFIBRIDGE_"

// SearchPaths returns the files Load tries when no path is given, in order.
func SearchPaths() []string {
	paths := []string{"ffibridge.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "ffibridge", "config.yaml"))
	}
	return paths
}

// Load layers configuration sources, later ones winning: defaults, a YAML
// file, command-line flags, then environment variables. An empty path
// searches SearchPaths and tolerates finding nothing; an explicit path must
// exist. flags may be nil.
func Load(fs afero.Fs, path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	d := Default()
	defaults := map[string]interface{}{
		"module.name":      d.Module.Name,
		"memory.pages":     d.Memory.Pages,
		"heap.base":        d.Heap.Base,
		"heap.size":        d.Heap.Size,
		"heap.poison":      d.Heap.Poison,
		"violation.policy": d.Violation.Policy,
		"log.level":        d.Log.Level,
		"log.development":  d.Log.Development,
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "load defaults")
	}

	file, err := findFile(fs, path)
	if err != nil {
		return Config{}, err
	}
	if file != "" {
		data, err := afero.ReadFile(fs, file)
		if err != nil {
			return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read "+file)
		}
		if err := CheckDocument(data); err != nil {
			return Config{}, err
		}
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse "+file)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "load flags")
		}
	}

	envOpts := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, EnvPrefix)),
			"_",
			".",
		)
	})
	if err := k.Load(envOpts, nil); err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "load env")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func findFile(fs afero.Fs, path string) (string, error) {
	if path != "" {
		if exists, _ := afero.Exists(fs, path); !exists {
			return "", errors.NotFound(errors.PhaseConfig, "config file", path)
		}
		return path, nil
	}
	for _, p := range SearchPaths() {
		if exists, _ := afero.Exists(fs, p); exists {
			return p, nil
		}
	}
	return "", nil
}

// RegisterFlags adds one flag per configuration key to fs, named after the
// key (e.g. --heap.poison), with the defaults as values.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("module.name", d.Module.Name, "host module name")
	fs.Uint32("memory.pages", d.Memory.Pages, "linear memory size in 64 KiB pages")
	fs.Uint32("heap.base", d.Heap.Base, "first heap address")
	fs.Uint32("heap.size", d.Heap.Size, "heap size in bytes (0 = rest of memory)")
	fs.Bool("heap.poison", d.Heap.Poison, "poison allocated and freed bytes")
	fs.String("violation.policy", d.Violation.Policy, "violation policy: error or panic")
	fs.String("log.level", d.Log.Level, "log level: debug, info, warn, error")
	fs.Bool("log.development", d.Log.Development, "development logger")
}
