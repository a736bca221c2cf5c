package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ffi-bridge/abi"
	"github.com/wippyai/ffi-bridge/errors"
	"github.com/wippyai/ffi-bridge/handle"
	"github.com/wippyai/ffi-bridge/memory"
)

type fakeSource struct {
	units []uint16
	epoch uint64
	dead  bool
}

func (s *fakeSource) Epoch() (uint64, bool) { return s.epoch, !s.dead }
func (s *fakeSource) Units() []uint16       { return s.units }
func (s *fakeSource) Slice() abi.Slice      { return abi.Slice{Ptr: 64, Len: uint32(len(s.units))} }

// plainSource has no linear memory location.
type plainSource struct{}

func (plainSource) Epoch() (uint64, bool) { return 0, true }
func (plainSource) Units() []uint16       { return nil }

// highMemory maps addresses starting at base onto a small Linear, so
// sequences can live at addresses a real memory would need gigabytes for.
type highMemory struct {
	*memory.Linear
	base uint32
}

func (m highMemory) Read(offset, length uint32) ([]byte, error) {
	return m.Linear.Read(offset-m.base, length)
}

func (m highMemory) Write(offset uint32, data []byte) error {
	return m.Linear.Write(offset-m.base, data)
}

// fixedAlloc always hands out the same address.
type fixedAlloc struct {
	ptr   uint32
	frees int
}

func (a *fixedAlloc) Alloc(size, align uint32) (uint32, error) { return a.ptr, nil }
func (a *fixedAlloc) Free(ptr, size, align uint32) error       { a.frees++; return nil }

func newArena(t *testing.T) (*memory.Linear, *memory.Arena) {
	t.Helper()
	mem := memory.NewLinear(1024)
	arena, err := memory.NewArena(mem, memory.ArenaConfig{Poison: true})
	require.NoError(t, err)
	return mem, arena
}

func TestView_Borrow(t *testing.T) {
	src := &fakeSource{units: []uint16{0x68, 0x69}}

	view, err := Borrow(src)
	require.NoError(t, err)

	units, err := view.Units()
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x68, 0x69}, units)

	n, err := view.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	u, err := view.At(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x69), u)

	_, err = view.At(2)
	assert.ErrorIs(t, err, errors.KindOf(errors.KindOutOfBounds))

	assert.Equal(t, "hi", view.String())
	assert.True(t, view.Valid())

	s, err := view.Slice()
	require.NoError(t, err)
	assert.Equal(t, abi.Slice{Ptr: 64, Len: 2}, s)
}

func TestView_RepeatedBorrowIdentical(t *testing.T) {
	src := &fakeSource{units: []uint16{0x68, 0x69}}

	first, err := Borrow(src)
	require.NoError(t, err)
	second, err := Borrow(src)
	require.NoError(t, err)

	a, err := first.Units()
	require.NoError(t, err)
	b, err := second.Units()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestView_Invalidation(t *testing.T) {
	t.Run("modified", func(t *testing.T) {
		src := &fakeSource{units: []uint16{0x68}}
		view, _ := Borrow(src)
		src.epoch++

		_, err := view.Units()
		assert.ErrorIs(t, err, errors.KindOf(errors.KindBorrowInvalidated))
		assert.False(t, view.Valid())
		assert.Equal(t, "<invalid view>", view.String())
	})

	t.Run("destroyed", func(t *testing.T) {
		src := &fakeSource{units: []uint16{0x68}}
		view, _ := Borrow(src)
		src.dead = true

		_, err := view.Len()
		assert.ErrorIs(t, err, errors.KindOf(errors.KindUseAfterDestroy))
		_, err = view.Slice()
		assert.ErrorIs(t, err, errors.KindOf(errors.KindUseAfterDestroy))

		_, err = Borrow(src)
		assert.ErrorIs(t, err, errors.KindOf(errors.KindUseAfterDestroy))
	})
}

func TestView_ReleaseIsViolation(t *testing.T) {
	view, _ := Borrow(&fakeSource{})
	err := view.Release()
	assert.ErrorIs(t, err, errors.KindOf(errors.KindReleaseBorrowed))
	assert.True(t, view.Valid(), "a rejected release leaves the view usable")
}

func TestView_PanicPolicy(t *testing.T) {
	src := &fakeSource{units: []uint16{0x68}}
	view, err := Borrow(src, WithPolicy(handle.PolicyPanic))
	require.NoError(t, err)

	assert.Panics(t, func() { _ = view.Release() })

	units, err := view.Units()
	require.NoError(t, err, "a live view reads normally under the panic policy")
	assert.Equal(t, []uint16{0x68}, units)

	src.epoch++
	assert.Panics(t, func() { _, _ = view.Units() })
	assert.Panics(t, func() { _, _ = view.At(0) })
	assert.NotPanics(t, func() {
		assert.False(t, view.Valid())
		assert.Equal(t, "<invalid view>", view.String())
	})

	src.dead = true
	assert.Panics(t, func() { _, _ = view.Len() })
	assert.Panics(t, func() { _, _ = Borrow(src, WithPolicy(handle.PolicyPanic)) })
}

func TestView_SliceUnsupported(t *testing.T) {
	view, _ := Borrow(plainSource{})
	_, err := view.Slice()
	assert.ErrorIs(t, err, errors.KindOf(errors.KindUnsupported))
}

func TestOwned_Lifecycle(t *testing.T) {
	mem, arena := newArena(t)

	owned, err := TakeOwned(arena, mem, []uint16{0x68, 0x69})
	require.NoError(t, err)
	assert.Equal(t, 2, owned.Len())
	assert.NotZero(t, owned.Ptr())
	assert.True(t, arena.Owns(owned.Ptr()))

	raw, err := mem.Read(owned.Ptr(), 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x68, 0x00, 0x69, 0x00}, raw)

	units, err := owned.Units()
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x68, 0x69}, units)
	assert.Equal(t, "hi", owned.String())

	ptr := owned.Ptr()
	require.NoError(t, owned.Release())
	assert.True(t, owned.Released())
	assert.Equal(t, uint32(poisonPtr), owned.Ptr())

	raw, _ = mem.Read(ptr, 4)
	assert.Equal(t, []byte{memory.PoisonFree, memory.PoisonFree, memory.PoisonFree, memory.PoisonFree}, raw)
	assert.NoError(t, arena.CheckLeaks())
}

func TestOwned_DoubleRelease(t *testing.T) {
	mem, arena := newArena(t)
	owned, err := TakeOwned(arena, mem, []uint16{0x68})
	require.NoError(t, err)

	require.NoError(t, owned.Release())
	err = owned.Release()
	assert.ErrorIs(t, err, errors.KindOf(errors.KindDoubleRelease))

	_, err = owned.Units()
	assert.ErrorIs(t, err, errors.KindOf(errors.KindUseAfterRelease))
	assert.Equal(t, "<released>", owned.String())
	assert.Equal(t, uint64(1), arena.Stats().Frees, "storage freed once")
}

func TestOwned_Empty(t *testing.T) {
	mem, arena := newArena(t)
	owned, err := TakeOwned(arena, mem, nil)
	require.NoError(t, err)

	assert.Zero(t, owned.Ptr())
	units, err := owned.Units()
	require.NoError(t, err)
	assert.Empty(t, units)
	require.NoError(t, owned.Release())
	assert.ErrorIs(t, owned.Release(), errors.KindOf(errors.KindDoubleRelease))
}

func TestOwned_OnRelease(t *testing.T) {
	mem, arena := newArena(t)
	owned, _ := TakeOwned(arena, mem, []uint16{1})

	calls := 0
	owned.OnRelease(func(o *Owned) {
		assert.Same(t, owned, o)
		calls++
	})
	require.NoError(t, owned.Release())
	_ = owned.Release()
	assert.Equal(t, 1, calls)
}

func TestOwned_Transfer(t *testing.T) {
	mem, arena := newArena(t)
	owned, _ := TakeOwned(arena, mem, []uint16{0x68, 0x69})

	s, err := owned.Transfer()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), s.Len)

	_, err = owned.Units()
	assert.ErrorIs(t, err, errors.KindOf(errors.KindUseAfterRelease))
	assert.ErrorIs(t, owned.Release(), errors.KindOf(errors.KindDoubleRelease))
	_, err = owned.Transfer()
	assert.ErrorIs(t, err, errors.KindOf(errors.KindDoubleRelease))

	// Foreign code frees the storage through the allocator.
	require.NoError(t, arena.Free(s.Ptr, s.Len*UnitSize, UnitAlign))
	assert.NoError(t, arena.CheckLeaks())
}

func TestOwned_PanicPolicy(t *testing.T) {
	mem, arena := newArena(t)
	owned, err := TakeOwned(arena, mem, []uint16{0x68}, WithPolicy(handle.PolicyPanic))
	require.NoError(t, err)

	require.NoError(t, owned.Release())
	assert.Panics(t, func() { _ = owned.Release() })
	assert.Panics(t, func() { _, _ = owned.Units() })
	assert.Panics(t, func() { _, _ = owned.Transfer() })
	assert.NotPanics(t, func() {
		assert.True(t, owned.Released())
		assert.Equal(t, "<released>", owned.String())
	})
	assert.Equal(t, uint64(1), arena.Stats().Frees, "storage freed once")
}

func TestOwned_LiveAtPoisonAddress(t *testing.T) {
	mem := highMemory{Linear: memory.NewLinear(64), base: poisonPtr}
	alloc := &fixedAlloc{ptr: poisonPtr}

	owned, err := TakeOwned(alloc, mem, []uint16{0x68, 0x69})
	require.NoError(t, err)
	assert.Equal(t, uint32(poisonPtr), owned.Ptr())
	assert.False(t, owned.Released())

	units, err := owned.Units()
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x68, 0x69}, units)

	require.NoError(t, owned.Release())
	assert.True(t, owned.Released())
	assert.ErrorIs(t, owned.Release(), errors.KindOf(errors.KindDoubleRelease))
	assert.Equal(t, 1, alloc.frees)
}

func TestOwned_ConcurrentRelease(t *testing.T) {
	mem, arena := newArena(t)
	owned, _ := TakeOwned(arena, mem, []uint16{0x68})

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		oks int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if owned.Release() == nil {
				mu.Lock()
				oks++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, oks)
}

func TestOwned_AllocFailure(t *testing.T) {
	mem := memory.NewLinear(16)
	arena, err := memory.NewArena(mem, memory.ArenaConfig{})
	require.NoError(t, err)

	_, err = TakeOwned(arena, mem, make([]uint16, 8))
	assert.ErrorIs(t, err, errors.KindOf(errors.KindAllocation))
}

func TestText(t *testing.T) {
	units, err := EncodeString("hi")
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x68, 0x69}, units)

	units, err = EncodeString("é😀")
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x00e9, 0xd83d, 0xde00}, units)
	assert.Equal(t, "é😀", DecodeString(units))

	s, err := DecodeStrict(units)
	require.NoError(t, err)
	assert.Equal(t, "é😀", s)

	_, err = DecodeStrict([]uint16{0x68, 0xd800})
	assert.ErrorIs(t, err, errors.KindOf(errors.KindInvalidUTF16))
	_, err = DecodeStrict([]uint16{0xdc00, 0x68})
	assert.ErrorIs(t, err, errors.KindOf(errors.KindInvalidUTF16))

	assert.Equal(t, "h�", DecodeString([]uint16{0x68, 0xd800}))
}
