package object

import (
	"go.uber.org/zap"

	ffibridge "github.com/wippyai/ffi-bridge"
	"github.com/wippyai/ffi-bridge/buffer"
	"github.com/wippyai/ffi-bridge/handle"
	"github.com/wippyai/ffi-bridge/memory"
	"github.com/wippyai/ffi-bridge/result"
)

// Store owns every Utf16Wrap created through it and the arena their code
// units live in.
type Store struct {
	table  *handle.Table[*Utf16Wrap]
	arena  *memory.Arena
	mem    ffibridge.Memory
	log    *zap.Logger
	policy handle.Policy
}

// Option configures a Store.
type Option func(*Store)

// WithPolicy sets the violation policy for handle and buffer misuse.
func WithPolicy(p handle.Policy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// WithLogger sets the store logger. The package logger is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// NewStore creates a store allocating from arena.
func NewStore(arena *memory.Arena, opts ...Option) *Store {
	s := &Store{
		arena: arena,
		mem:   arena.Memory(),
		log:   Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.table = handle.NewTable[*Utf16Wrap](TypeName, handle.WithPolicy(s.policy))
	return s
}

// Table exposes the handle table, mainly to subscribe observers.
func (s *Store) Table() *handle.Table[*Utf16Wrap] {
	return s.table
}

// Arena returns the arena backing the store.
func (s *Store) Arena() *memory.Arena {
	return s.arena
}

// Policy returns the violation policy.
func (s *Store) Policy() handle.Policy {
	return s.policy
}

// Len returns the number of live objects.
func (s *Store) Len() int {
	return s.table.Len()
}

// FromUTF16 creates an object holding a copy of units.
func (s *Store) FromUTF16(units []uint16) (*Utf16Wrap, error) {
	ptr, n, err := s.store(units)
	if err != nil {
		return nil, err
	}

	w := &Utf16Wrap{store: s, ptr: ptr, n: n}
	h, err := s.table.Insert(w)
	if err != nil {
		_ = s.arena.Free(ptr, n*buffer.UnitSize, buffer.UnitAlign)
		return nil, err
	}
	w.h = h

	s.log.Debug("created", zap.String("type", TypeName), zap.Stringer("handle", h), zap.Uint32("units", n))
	return w, nil
}

// FromString creates an object holding s encoded as UTF-16.
func (s *Store) FromString(str string) (*Utf16Wrap, error) {
	units, err := buffer.EncodeString(str)
	if err != nil {
		return nil, err
	}
	return s.FromUTF16(units)
}

// Get resolves a live handle.
func (s *Store) Get(h handle.Handle) (*Utf16Wrap, error) {
	return s.table.Get(h)
}

// BorrowCont borrows the contents of the object behind h.
func (s *Store) BorrowCont(h handle.Handle) (*buffer.View, error) {
	w, err := s.table.Get(h)
	if err != nil {
		return nil, err
	}
	return w.BorrowCont()
}

// Owned copies the contents of the object behind h into a new owned
// sequence.
func (s *Store) Owned(h handle.Handle) (*buffer.Owned, error) {
	w, err := s.table.Get(h)
	if err != nil {
		return nil, err
	}
	return w.Owned()
}

// ToF64 parses the contents of the object behind h as a number.
func (s *Store) ToF64(h handle.Handle) (result.Result[float64, result.Void], error) {
	w, err := s.table.Get(h)
	if err != nil {
		return result.Failure[float64](), err
	}
	return w.ToF64()
}

// Destroy destroys the object behind h. It succeeds exactly once.
func (s *Store) Destroy(h handle.Handle) error {
	_, err := s.table.Destroy(h)
	return err
}

// Close destroys every live object and returns how many there were.
func (s *Store) Close() int {
	n := s.table.Close()
	if n > 0 {
		s.log.Info("destroyed leftover objects", zap.String("type", TypeName), zap.Int("count", n))
	}
	return n
}

// store copies units into a fresh arena allocation.
func (s *Store) store(units []uint16) (uint32, uint32, error) {
	owned, err := buffer.TakeOwned(s.arena, s.mem, units)
	if err != nil {
		return 0, 0, err
	}
	sl, err := owned.Transfer()
	if err != nil {
		return 0, 0, err
	}
	return sl.Ptr, sl.Len, nil
}
