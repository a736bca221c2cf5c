package memory

import (
	"encoding/binary"
	"sync"

	ffibridge "github.com/wippyai/ffi-bridge"
	"github.com/wippyai/ffi-bridge/errors"
)

var (
	_ ffibridge.Memory      = (*Linear)(nil)
	_ ffibridge.MemorySizer = (*Linear)(nil)
)

// Linear is a fixed-size little-endian memory backed by a byte slice.
// Read returns a slice aliasing the memory, like wazero's api.Memory.
type Linear struct {
	data []byte
	mu   sync.RWMutex
}

// NewLinear creates a zeroed memory of size bytes.
func NewLinear(size uint32) *Linear {
	return &Linear{data: make([]byte, size)}
}

// Size returns the memory size in bytes.
func (m *Linear) Size() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint32(len(m.data))
}

// Grow extends the memory by delta bytes and returns the previous size.
func (m *Linear) Grow(delta uint32) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := uint32(len(m.data))
	if uint64(prev)+uint64(delta) > 1<<32-1 {
		return prev, false
	}
	m.data = append(m.data, make([]byte, delta)...)
	return prev, true
}

func (m *Linear) span(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.data)) {
		return nil, errors.New(errors.PhaseMemory, errors.KindOutOfBounds).
			Detail("offset=%d, length=%d, size=%d", offset, length, len(m.data)).
			Build()
	}
	return m.data[offset:end], nil
}

// Read reads bytes from memory.
func (m *Linear) Read(offset uint32, length uint32) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.span(offset, length)
}

// Write writes bytes to memory.
func (m *Linear) Write(offset uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dst, err := m.span(offset, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *Linear) ReadU8(offset uint32) (uint8, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.span(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (m *Linear) ReadU16(offset uint32) (uint16, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.span(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Linear) ReadU32(offset uint32) (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.span(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Linear) ReadU64(offset uint32) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.span(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *Linear) WriteU8(offset uint32, value uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.span(offset, 1)
	if err != nil {
		return err
	}
	b[0] = value
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (m *Linear) WriteU16(offset uint32, value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.span(offset, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, value)
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Linear) WriteU32(offset uint32, value uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.span(offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Linear) WriteU64(offset uint32, value uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.span(offset, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, value)
	return nil
}
