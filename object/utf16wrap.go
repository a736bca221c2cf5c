package object

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/ffi-bridge/abi"
	"github.com/wippyai/ffi-bridge/buffer"
	"github.com/wippyai/ffi-bridge/errors"
	"github.com/wippyai/ffi-bridge/handle"
	"github.com/wippyai/ffi-bridge/result"
)

// TypeName is the exported name of the object type.
const TypeName = "Utf16Wrap"

var (
	_ buffer.Source  = (*Utf16Wrap)(nil)
	_ buffer.Locator = (*Utf16Wrap)(nil)
	_ handle.Dropper = (*Utf16Wrap)(nil)
)

// Utf16Wrap is an opaque native object holding a sequence of UTF-16 code
// units in linear memory.
type Utf16Wrap struct {
	store *Store
	h     handle.Handle
	ptr   uint32
	n     uint32
	epoch uint64
	dead  bool
	mu    sync.RWMutex
}

// Handle returns the object's handle.
func (w *Utf16Wrap) Handle() handle.Handle {
	return w.h
}

// Epoch implements buffer.Source.
func (w *Utf16Wrap) Epoch() (uint64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.epoch, !w.dead
}

// Units implements buffer.Source. It returns nil once the object is
// destroyed.
func (w *Utf16Wrap) Units() []uint16 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.unitsLocked()
}

func (w *Utf16Wrap) unitsLocked() []uint16 {
	if w.dead {
		return nil
	}
	raw, err := w.store.mem.Read(w.ptr, w.n*buffer.UnitSize)
	if err != nil {
		return nil
	}
	out := make([]uint16, w.n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	return out
}

// Slice implements buffer.Locator.
func (w *Utf16Wrap) Slice() abi.Slice {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return abi.Slice{Ptr: w.ptr, Len: w.n}
}

// BorrowCont returns a view of the contents. The view is invalidated by Set
// and Close, and applies the store's violation policy when used after that.
func (w *Utf16Wrap) BorrowCont() (*buffer.View, error) {
	if _, err := w.store.table.Borrow(w.h); err != nil {
		return nil, err
	}
	return buffer.Borrow(w, buffer.WithPolicy(w.store.policy))
}

// Owned returns a copy of the contents that the caller must release. It
// stays valid after the object is destroyed.
func (w *Utf16Wrap) Owned() (*buffer.Owned, error) {
	if _, err := w.store.table.Get(w.h); err != nil {
		return nil, err
	}

	w.mu.RLock()
	units := w.unitsLocked()
	w.mu.RUnlock()

	owned, err := buffer.TakeOwned(w.store.arena, w.store.mem, units, buffer.WithPolicy(w.store.policy))
	if err != nil {
		return nil, err
	}

	h, table := w.h, w.store.table
	owned.OnRelease(func(o *buffer.Owned) {
		table.Notify(handle.Event{Type: handle.EventReleased, Handle: h, Value: o})
	})
	return owned, nil
}

// ToF64 parses the contents as a decimal number. Surrounding whitespace is
// ignored. Text that is not a number is a Failure, not an error; the error
// return is reserved for precondition violations.
func (w *Utf16Wrap) ToF64() (result.Result[float64, result.Void], error) {
	if _, err := w.store.table.Get(w.h); err != nil {
		return result.Failure[float64](), err
	}

	text := strings.TrimSpace(buffer.DecodeString(w.Units()))
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		w.store.log.Debug("not a number", zap.Stringer("handle", w.h), zap.String("text", text))
		return result.Failure[float64](), nil
	}
	return result.Success(v), nil
}

// DebugString describes the object for logs and diagnostics.
func (w *Utf16Wrap) DebugString() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.dead {
		return fmt.Sprintf("%s(destroyed)", TypeName)
	}
	return fmt.Sprintf("%s(%q, %d units)", TypeName, buffer.DecodeString(w.unitsLocked()), w.n)
}

// Set replaces the contents. Views borrowed earlier become invalid.
func (w *Utf16Wrap) Set(units []uint16) error {
	if _, err := w.store.table.Get(w.h); err != nil {
		return err
	}

	ptr, n, err := w.store.store(units)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.dead {
		w.mu.Unlock()
		_ = w.store.arena.Free(ptr, n*buffer.UnitSize, buffer.UnitAlign)
		return w.store.policy.Enforce(errors.Violation(errors.PhaseHandle, errors.KindUseAfterDestroy,
			TypeName+" destroyed during Set", uint64(w.h)))
	}
	oldPtr, oldN := w.ptr, w.n
	w.ptr, w.n = ptr, n
	w.epoch++
	w.mu.Unlock()

	return w.store.arena.Free(oldPtr, oldN*buffer.UnitSize, buffer.UnitAlign)
}

// Close destroys the object. Borrowed views become invalid; owned
// sequences stay valid.
func (w *Utf16Wrap) Close() error {
	return w.store.Destroy(w.h)
}

// Drop frees the object's storage. The handle table calls it exactly once
// when the object is destroyed; use Close instead.
func (w *Utf16Wrap) Drop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dead {
		return
	}
	w.dead = true
	w.epoch++
	if err := w.store.arena.Free(w.ptr, w.n*buffer.UnitSize, buffer.UnitAlign); err != nil {
		w.store.log.Warn("free storage", zap.Stringer("handle", w.h), zap.Error(err))
	}
}
