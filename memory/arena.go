package memory

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	ffibridge "github.com/wippyai/ffi-bridge"
	"github.com/wippyai/ffi-bridge/abi"
	"github.com/wippyai/ffi-bridge/errors"
)

// Poison patterns written when poisoning is enabled.
const (
	PoisonAlloc = 0xCD
	PoisonFree  = 0xDD
)

var _ ffibridge.Allocator = (*Arena)(nil)

// ArenaConfig bounds the region the arena manages.
type ArenaConfig struct {
	// Base is the first usable address. Zero is bumped to 8 so that no
	// allocation ever returns the null pointer.
	Base uint32
	// Limit is one past the last usable address. Zero means the memory size.
	Limit  uint32
	Poison bool
}

// Allocation is a live region handed out by the arena.
type Allocation struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

// Stats summarizes arena usage.
type Stats struct {
	Allocs    uint64
	Frees     uint64
	LiveCount int
	LiveBytes uint64
	PeakBytes uint64
	Capacity  uint64
}

type span struct {
	start, end uint32
}

// Arena is a first-fit allocator over a region of linear memory.
type Arena struct {
	mem    ffibridge.Memory
	live   map[uint32]Allocation
	freed  map[uint32]struct{}
	free   []span // sorted by start, never adjacent
	stats  Stats
	base   uint32
	limit  uint32
	poison bool
	mu     sync.Mutex
}

// NewArena creates an arena over mem.
func NewArena(mem ffibridge.Memory, cfg ArenaConfig) (*Arena, error) {
	if mem == nil {
		return nil, errors.InvalidInput(errors.PhaseMemory, "nil memory")
	}

	base := cfg.Base
	if base < 8 {
		base = 8
	}
	limit := cfg.Limit
	if limit == 0 {
		sizer, ok := mem.(ffibridge.MemorySizer)
		if !ok {
			return nil, errors.InvalidInput(errors.PhaseMemory, "limit required for memory without Size")
		}
		limit = sizer.Size()
	}
	if sizer, ok := mem.(ffibridge.MemorySizer); ok && limit > sizer.Size() {
		return nil, errors.New(errors.PhaseMemory, errors.KindOutOfBounds).
			Detail("arena limit %d exceeds memory size %d", limit, sizer.Size()).
			Build()
	}
	if base >= limit {
		return nil, errors.InvalidInput(errors.PhaseMemory, fmt.Sprintf("empty arena [%d, %d)", base, limit))
	}

	return &Arena{
		mem:    mem,
		live:   make(map[uint32]Allocation),
		freed:  make(map[uint32]struct{}),
		free:   []span{{start: base, end: limit}},
		stats:  Stats{Capacity: uint64(limit - base)},
		base:   base,
		limit:  limit,
		poison: cfg.Poison,
	}, nil
}

// Memory returns the memory the arena allocates from.
func (a *Arena) Memory() ffibridge.Memory {
	return a.mem
}

// Alloc reserves size bytes aligned to align. A zero size returns the null
// pointer, which Free accepts as a no-op.
func (a *Arena) Alloc(size, align uint32) (uint32, error) {
	if size == 0 {
		return 0, nil
	}
	if align == 0 {
		align = 1
	}
	if !abi.IsPowerOfTwo(align) {
		return 0, errors.InvalidInput(errors.PhaseMemory, fmt.Sprintf("alignment %d is not a power of two", align))
	}
	if size > abi.MaxAlloc {
		return 0, errors.AllocationFailed(errors.PhaseMemory, size, align)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i, s := range a.free {
		start := abi.AlignTo(s.start, align)
		end, ok := abi.SafeAddU32(start, size)
		if !ok || start < s.start || end > s.end {
			continue
		}
		a.carve(i, start, end)

		a.live[start] = Allocation{Ptr: start, Size: size, Align: align}
		delete(a.freed, start)
		a.stats.Allocs++
		a.stats.LiveBytes += uint64(size)
		a.stats.PeakBytes = max(a.stats.PeakBytes, a.stats.LiveBytes)

		if a.poison {
			if err := a.fill(start, size, PoisonAlloc); err != nil {
				return 0, err
			}
		}
		return start, nil
	}

	Logger().Debug("arena exhausted",
		zap.Uint32("size", size),
		zap.Uint32("align", align),
		zap.Uint64("live_bytes", a.stats.LiveBytes))
	return 0, errors.AllocationFailed(errors.PhaseMemory, size, align)
}

// carve removes [start, end) from free span i, keeping any remainders.
func (a *Arena) carve(i int, start, end uint32) {
	s := a.free[i]
	var rest []span
	if s.start < start {
		rest = append(rest, span{s.start, start})
	}
	if end < s.end {
		rest = append(rest, span{end, s.end})
	}
	a.free = append(a.free[:i], append(rest, a.free[i+1:]...)...)
}

// Free releases the allocation at ptr. size and align must match the values
// passed to Alloc.
func (a *Arena) Free(ptr, size, align uint32) error {
	if ptr == 0 && size == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	alloc, ok := a.live[ptr]
	if !ok {
		if _, wasFreed := a.freed[ptr]; wasFreed {
			Logger().Warn("double free", zap.Uint32("ptr", ptr), zap.Uint32("size", size))
			return errors.Violation(errors.PhaseMemory, errors.KindDoubleRelease,
				fmt.Sprintf("pointer 0x%x already freed", ptr), ptr)
		}
		return errors.New(errors.PhaseMemory, errors.KindInvalidInput).
			Detail("pointer 0x%x was not allocated by this arena", ptr).
			Value(ptr).
			Build()
	}
	if alloc.Size != size {
		return errors.New(errors.PhaseMemory, errors.KindInvalidInput).
			Detail("free of 0x%x with size %d, allocated with %d", ptr, size, alloc.Size).
			Value(ptr).
			Build()
	}
	if align != 0 && alloc.Align != align {
		return errors.New(errors.PhaseMemory, errors.KindInvalidInput).
			Detail("free of 0x%x with align %d, allocated with %d", ptr, align, alloc.Align).
			Value(ptr).
			Build()
	}

	if a.poison {
		if err := a.fill(ptr, size, PoisonFree); err != nil {
			return err
		}
	}

	delete(a.live, ptr)
	a.freed[ptr] = struct{}{}
	a.stats.Frees++
	a.stats.LiveBytes -= uint64(size)
	a.release(span{ptr, ptr + size})
	return nil
}

// release returns s to the free list, merging with neighbours.
func (a *Arena) release(s span) {
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].start >= s.end })
	// i is the first span after s; i-1 may end exactly at s.start.
	if i < len(a.free) && a.free[i].start == s.end {
		s.end = a.free[i].end
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
	if i > 0 && a.free[i-1].end == s.start {
		a.free[i-1].end = s.end
		return
	}
	a.free = append(a.free, span{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = s
}

func (a *Arena) fill(ptr, size uint32, pattern byte) error {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = pattern
	}
	return a.mem.Write(ptr, buf)
}

// Owns reports whether ptr is the start of a live allocation.
func (a *Arena) Owns(ptr uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.live[ptr]
	return ok
}

// Stats returns a snapshot of arena usage.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	s.LiveCount = len(a.live)
	return s
}

// Live returns the live allocations ordered by address.
func (a *Arena) Live() []Allocation {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Allocation, 0, len(a.live))
	for _, alloc := range a.live {
		out = append(out, alloc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ptr < out[j].Ptr })
	return out
}

// CheckLeaks returns one error per live allocation, combined with multierr,
// or nil when everything has been freed.
func (a *Arena) CheckLeaks() error {
	var err error
	for _, alloc := range a.Live() {
		err = multierr.Append(err, errors.New(errors.PhaseMemory, errors.KindAllocation).
			Detail("leaked %d bytes at 0x%x", alloc.Size, alloc.Ptr).
			Value(alloc.Ptr).
			Build())
	}
	return err
}

// Reset drops every allocation. Outstanding pointers become dangling.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for ptr, alloc := range a.live {
		if a.poison {
			_ = a.fill(ptr, alloc.Size, PoisonFree)
		}
	}
	a.live = make(map[uint32]Allocation)
	a.freed = make(map[uint32]struct{})
	a.free = []span{{start: a.base, end: a.limit}}
	a.stats.LiveBytes = 0
}
