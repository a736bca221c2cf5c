package memory

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	ffibridge "github.com/wippyai/ffi-bridge"
	"github.com/wippyai/ffi-bridge/errors"
)

// PageSize is the WebAssembly page size in bytes.
const PageSize = 65536

var (
	_ ffibridge.Memory      = (*Wrapper)(nil)
	_ ffibridge.MemorySizer = (*Wrapper)(nil)
)

// Wrap wraps a wazero api.Memory to implement ffibridge.Memory.
func Wrap(mem api.Memory) *Wrapper {
	if mem == nil {
		return nil
	}
	return &Wrapper{Mem: mem}
}

// Wrapper adapts wazero api.Memory to the ffibridge.Memory interface.
type Wrapper struct {
	Mem api.Memory
}

func outOfBounds(offset uint32, length int) error {
	return errors.New(errors.PhaseMemory, errors.KindOutOfBounds).
		Detail("offset=%d, length=%d", offset, length).
		Build()
}

// Size returns the memory size in bytes.
func (m *Wrapper) Size() uint32 {
	return m.Mem.Size()
}

// Read reads bytes from memory.
func (m *Wrapper) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, outOfBounds(offset, int(length))
	}
	return data, nil
}

// Write writes bytes to memory.
func (m *Wrapper) Write(offset uint32, data []byte) error {
	if !m.Mem.Write(offset, data) {
		return outOfBounds(offset, len(data))
	}
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *Wrapper) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.Mem.ReadByte(offset)
	if !ok {
		return 0, outOfBounds(offset, 1)
	}
	return v, nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (m *Wrapper) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.Mem.ReadUint16Le(offset)
	if !ok {
		return 0, outOfBounds(offset, 2)
	}
	return v, nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Wrapper) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.Mem.ReadUint32Le(offset)
	if !ok {
		return 0, outOfBounds(offset, 4)
	}
	return v, nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Wrapper) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.Mem.ReadUint64Le(offset)
	if !ok {
		return 0, outOfBounds(offset, 8)
	}
	return v, nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *Wrapper) WriteU8(offset uint32, value uint8) error {
	if !m.Mem.WriteByte(offset, value) {
		return outOfBounds(offset, 1)
	}
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (m *Wrapper) WriteU16(offset uint32, value uint16) error {
	if !m.Mem.WriteUint16Le(offset, value) {
		return outOfBounds(offset, 2)
	}
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Wrapper) WriteU32(offset uint32, value uint32) error {
	if !m.Mem.WriteUint32Le(offset, value) {
		return outOfBounds(offset, 4)
	}
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Wrapper) WriteU64(offset uint32, value uint64) error {
	if !m.Mem.WriteUint64Le(offset, value) {
		return outOfBounds(offset, 8)
	}
	return nil
}

// MemoryModule returns the binary of a core module that defines pages of
// memory and exports it as "memory".
func MemoryModule(pages uint32) []byte {
	limits := append([]byte{0x00}, uleb128(pages)...) // flags: min only
	memSection := append([]byte{0x01}, limits...)     // one memory

	out := []byte{
		0x00, 0x61, 0x73, 0x6d, // magic
		0x01, 0x00, 0x00, 0x00, // version
	}
	out = append(out, 0x05)
	out = append(out, uleb128(uint32(len(memSection)))...)
	out = append(out, memSection...)
	out = append(out,
		0x07, 0x0a, 0x01, // export section: 10 bytes, 1 export
		0x06, 'm', 'e', 'm', 'o', 'r', 'y',
		0x02, 0x00, // kind: memory, index 0
	)
	return out
}

// Instantiate creates a module named name holding pages of memory in rt and
// returns it with its wrapped memory. The caller closes the module.
func Instantiate(ctx context.Context, rt wazero.Runtime, name string, pages uint32) (api.Module, *Wrapper, error) {
	if pages == 0 || pages > 65536 {
		return nil, nil, errors.InvalidInput(errors.PhaseMemory, "pages must be in [1, 65536]")
	}

	compiled, err := rt.CompileModule(ctx, MemoryModule(pages))
	if err != nil {
		return nil, nil, errors.Wrap(errors.PhaseMemory, errors.KindInstantiation, err, "compile memory module")
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, nil, errors.Wrap(errors.PhaseMemory, errors.KindInstantiation, err, "instantiate memory module")
	}

	return mod, Wrap(mod.ExportedMemory("memory")), nil
}

func uleb128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}
