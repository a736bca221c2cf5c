package buffer

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	ffibridge "github.com/wippyai/ffi-bridge"
	"github.com/wippyai/ffi-bridge/abi"
	"github.com/wippyai/ffi-bridge/errors"
	"github.com/wippyai/ffi-bridge/handle"
)

// UnitSize and UnitAlign describe one UTF-16 code unit in linear memory.
const (
	UnitSize  = 2
	UnitAlign = 2
)

// poisonPtr replaces the pointer of a released sequence so stale copies of
// the descriptor stand out. Released state itself is kept in a flag: a large
// memory can hand out this address to a live sequence.
const poisonPtr = 0xDDDDDDDD

// Owned is a code-unit sequence allocated in linear memory and owned by
// the holder, who must release it exactly once.
type Owned struct {
	alloc       ffibridge.Allocator
	mem         ffibridge.Memory
	onRelease   func(*Owned)
	ptr         uint32
	n           uint32
	policy      handle.Policy
	released    bool
	transferred bool
	mu          sync.Mutex
}

// TakeOwned allocates storage for units and copies them in. The policy
// given with WithPolicy applies to misuse of the returned sequence.
func TakeOwned(alloc ffibridge.Allocator, mem ffibridge.Memory, units []uint16, opts ...Option) (*Owned, error) {
	o := applyOptions(opts)
	if len(units) > abi.MaxUnits {
		return nil, errors.Overflow(errors.PhaseBuffer, []string{"owned"}, len(units), "code unit count")
	}
	n := uint32(len(units))
	size := n * UnitSize

	ptr, err := alloc.Alloc(size, UnitAlign)
	if err != nil {
		return nil, err
	}
	if size > 0 {
		if err := mem.Write(ptr, unitsToBytes(units)); err != nil {
			_ = alloc.Free(ptr, size, UnitAlign)
			return nil, err
		}
	}

	Logger().Debug("owned sequence", zap.Uint32("ptr", ptr), zap.Uint32("units", n))
	return &Owned{alloc: alloc, mem: mem, ptr: ptr, n: n, policy: o.policy}, nil
}

// OnRelease registers fn to run after a successful Release.
func (o *Owned) OnRelease(fn func(*Owned)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onRelease = fn
}

func (o *Owned) liveLocked() error {
	if o.released {
		return errors.Violation(errors.PhaseBuffer, errors.KindUseAfterRelease,
			"owned sequence already released", nil)
	}
	if o.transferred {
		return errors.Violation(errors.PhaseBuffer, errors.KindUseAfterRelease,
			"owned sequence transferred to foreign code", nil)
	}
	return nil
}

// Units returns a copy of the code units.
func (o *Owned) Units() ([]uint16, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.liveLocked(); err != nil {
		return nil, o.policy.Enforce(err)
	}
	if o.n == 0 {
		return []uint16{}, nil
	}
	raw, err := o.mem.Read(o.ptr, o.n*UnitSize)
	if err != nil {
		return nil, err
	}
	return bytesToUnits(raw), nil
}

// Len returns the number of code units.
func (o *Owned) Len() int {
	return int(o.n)
}

// Ptr returns the address of the first code unit. It is 0 for an empty
// sequence and a poison value once released.
func (o *Owned) Ptr() uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ptr
}

// Slice returns the {ptr, len} descriptor of the sequence.
func (o *Owned) Slice() abi.Slice {
	o.mu.Lock()
	defer o.mu.Unlock()
	return abi.Slice{Ptr: o.ptr, Len: o.n}
}

// Released reports whether the sequence was released or transferred.
func (o *Owned) Released() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.liveLocked() != nil
}

// String decodes the sequence, replacing unpaired surrogates.
func (o *Owned) String() string {
	if o.Released() {
		return "<released>"
	}
	units, err := o.Units()
	if err != nil {
		return "<released>"
	}
	return DecodeString(units)
}

// Text decodes the sequence and fails on unpaired surrogates.
func (o *Owned) Text() (string, error) {
	units, err := o.Units()
	if err != nil {
		return "", err
	}
	return DecodeStrict(units)
}

// Release frees the storage. It succeeds exactly once.
func (o *Owned) Release() error {
	o.mu.Lock()
	if o.released || o.transferred {
		o.mu.Unlock()
		Logger().Warn("double release", zap.Uint32("units", o.n))
		return o.policy.Enforce(errors.Violation(errors.PhaseBuffer, errors.KindDoubleRelease,
			"owned sequence released twice", nil))
	}

	ptr := o.ptr
	if err := o.alloc.Free(ptr, o.n*UnitSize, UnitAlign); err != nil {
		o.mu.Unlock()
		return err
	}
	o.released = true
	o.ptr = poisonPtr
	fn := o.onRelease
	o.mu.Unlock()

	if fn != nil {
		fn(o)
	}
	return nil
}

// Transfer hands the storage to foreign code, which becomes responsible for
// freeing it with the allocator's free symbol. The Go value is spent
// afterwards: reads and Release fail.
func (o *Owned) Transfer() (abi.Slice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.liveLocked(); err != nil {
		return abi.Slice{}, o.policy.Enforce(errors.Violation(errors.PhaseBuffer, errors.KindDoubleRelease,
			fmt.Sprintf("transfer of spent sequence: %s", err.(*errors.Error).Detail), nil))
	}
	o.transferred = true
	return abi.Slice{Ptr: o.ptr, Len: o.n}, nil
}
