package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/wippyai/ffi-bridge/errors"
	"github.com/wippyai/ffi-bridge/handle"
)

// PageSize is the linear memory page size in bytes.
const PageSize = 65536

// Config holds the settings of one library instance.
type Config struct {
	Module    ModuleConfig    `koanf:"module" json:"module,omitempty" yaml:"module"`
	Log       LogConfig       `koanf:"log" json:"log,omitempty" yaml:"log"`
	Violation ViolationConfig `koanf:"violation" json:"violation,omitempty" yaml:"violation"`
	Memory    MemoryConfig    `koanf:"memory" json:"memory,omitempty" yaml:"memory"`
	Heap      HeapConfig      `koanf:"heap" json:"heap,omitempty" yaml:"heap"`
}

// ModuleConfig names the host module the library binds as.
type ModuleConfig struct {
	Name string `koanf:"name" json:"name,omitempty" yaml:"name" validate:"required,printascii" jsonschema:"description=host module name,default=ffibridge"`
}

// MemoryConfig sizes the linear memory.
type MemoryConfig struct {
	Pages uint32 `koanf:"pages" json:"pages,omitempty" yaml:"pages" validate:"min=1,max=65536" jsonschema:"description=linear memory size in 64 KiB pages,minimum=1,maximum=65536,default=1"`
}

// HeapConfig bounds the arena inside linear memory.
type HeapConfig struct {
	Base   uint32 `koanf:"base" json:"base,omitempty" yaml:"base" jsonschema:"description=first heap address,default=1024"`
	Size   uint32 `koanf:"size" json:"size,omitempty" yaml:"size" jsonschema:"description=heap size in bytes; 0 means the rest of memory"`
	Poison bool   `koanf:"poison" json:"poison,omitempty" yaml:"poison" jsonschema:"description=fill allocated and freed bytes with marker patterns"`
}

// ViolationConfig selects how precondition violations surface.
type ViolationConfig struct {
	Policy string `koanf:"policy" json:"policy,omitempty" yaml:"policy" validate:"oneof=error panic" jsonschema:"enum=error,enum=panic,default=error"`
}

// LogConfig configures the zap logger built by the CLI.
type LogConfig struct {
	Level       string `koanf:"level" json:"level,omitempty" yaml:"level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Development bool   `koanf:"development" json:"development,omitempty" yaml:"development"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Module:    ModuleConfig{Name: "ffibridge"},
		Memory:    MemoryConfig{Pages: 1},
		Heap:      HeapConfig{Base: 1024, Poison: true},
		Violation: ViolationConfig{Policy: "error"},
		Log:       LogConfig{Level: "info"},
	}
}

var validate = validator.New()

// Validate checks field constraints and that the heap fits in memory.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "config validation failed")
	}

	memSize := uint64(c.Memory.Pages) * PageSize
	if uint64(c.Heap.Base) >= memSize {
		return errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("heap.base %d is outside memory of %d bytes", c.Heap.Base, memSize))
	}
	if uint64(c.Heap.Base)+uint64(c.Heap.Size) > memSize {
		return errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("heap [%d, +%d) exceeds memory of %d bytes", c.Heap.Base, c.Heap.Size, memSize))
	}
	return nil
}

// MemorySize returns the linear memory size in bytes.
func (c Config) MemorySize() uint32 {
	size := uint64(c.Memory.Pages) * PageSize
	if size > 1<<32-1 {
		return 1<<32 - 1
	}
	return uint32(size)
}

// HeapLimit returns one past the last heap address.
func (c Config) HeapLimit() uint32 {
	if c.Heap.Size == 0 {
		return c.MemorySize()
	}
	return c.Heap.Base + c.Heap.Size
}

// Policy returns the parsed violation policy.
func (c Config) Policy() handle.Policy {
	p, _ := handle.ParsePolicy(c.Violation.Policy)
	return p
}
