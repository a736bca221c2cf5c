package object

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ffi-bridge/errors"
	"github.com/wippyai/ffi-bridge/handle"
	"github.com/wippyai/ffi-bridge/memory"
)

type recorder struct {
	events []handle.EventType
}

func (r *recorder) OnHandleEvent(e handle.Event) {
	r.events = append(r.events, e.Type)
}

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	mem := memory.NewLinear(4096)
	arena, err := memory.NewArena(mem, memory.ArenaConfig{Poison: true})
	require.NoError(t, err)
	return NewStore(arena, opts...)
}

func TestUtf16Wrap_Scenario(t *testing.T) {
	store := newStore(t)

	w, err := store.FromString("hi")
	require.NoError(t, err)

	view, err := w.BorrowCont()
	require.NoError(t, err)
	units, err := view.Units()
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x68, 0x69}, units)

	owned, err := w.Owned()
	require.NoError(t, err)
	ownedUnits, err := owned.Units()
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x68, 0x69}, ownedUnits)

	require.NoError(t, w.Close())

	_, err = view.Units()
	assert.ErrorIs(t, err, errors.KindOf(errors.KindUseAfterDestroy))

	ownedUnits, err = owned.Units()
	require.NoError(t, err, "owned sequence outlives its source")
	assert.Equal(t, []uint16{0x68, 0x69}, ownedUnits)

	require.NoError(t, owned.Release())
	assert.ErrorIs(t, owned.Release(), errors.KindOf(errors.KindDoubleRelease))
	assert.NoError(t, store.Arena().CheckLeaks())
}

func TestUtf16Wrap_RepeatedBorrow(t *testing.T) {
	store := newStore(t)
	w, err := store.FromUTF16([]uint16{0x68, 0x69, 0xd83d, 0xde00})
	require.NoError(t, err)

	first, err := w.BorrowCont()
	require.NoError(t, err)
	second, err := w.BorrowCont()
	require.NoError(t, err)

	a, _ := first.Units()
	b, _ := second.Units()
	assert.Equal(t, a, b)

	sa, err := first.Slice()
	require.NoError(t, err)
	sb, err := second.Slice()
	require.NoError(t, err)
	assert.Equal(t, sa, sb, "borrows point at the same storage")
	assert.Equal(t, uint32(4), sa.Len)
}

func TestUtf16Wrap_SetInvalidatesBorrow(t *testing.T) {
	store := newStore(t)
	w, _ := store.FromString("hi")

	view, err := w.BorrowCont()
	require.NoError(t, err)
	owned, err := w.Owned()
	require.NoError(t, err)

	require.NoError(t, w.Set([]uint16{0x6f, 0x6b}))

	_, err = view.Units()
	assert.ErrorIs(t, err, errors.KindOf(errors.KindBorrowInvalidated))

	fresh, err := w.BorrowCont()
	require.NoError(t, err)
	assert.Equal(t, "ok", fresh.String())
	assert.Equal(t, "hi", owned.String())

	require.NoError(t, owned.Release())
	require.NoError(t, w.Close())
	assert.NoError(t, store.Arena().CheckLeaks())
}

func TestUtf16Wrap_CallsAfterDestroy(t *testing.T) {
	store := newStore(t)
	w, _ := store.FromString("hi")
	h := w.Handle()
	require.NoError(t, w.Close())

	kind := errors.KindOf(errors.KindUseAfterDestroy)

	_, err := w.BorrowCont()
	assert.ErrorIs(t, err, kind)
	_, err = w.Owned()
	assert.ErrorIs(t, err, kind)
	r, err := w.ToF64()
	assert.ErrorIs(t, err, kind)
	assert.False(t, r.IsOK())
	assert.ErrorIs(t, w.Set([]uint16{1}), kind)
	assert.ErrorIs(t, w.Close(), errors.KindOf(errors.KindDoubleDestroy))

	_, err = store.BorrowCont(h)
	assert.ErrorIs(t, err, kind)
	_, err = store.Owned(h)
	assert.ErrorIs(t, err, kind)
	_, err = store.ToF64(h)
	assert.ErrorIs(t, err, kind)
	assert.ErrorIs(t, store.Destroy(h), errors.KindOf(errors.KindDoubleDestroy))

	assert.Nil(t, w.Units())
	assert.Equal(t, "Utf16Wrap(destroyed)", w.DebugString())
}

func TestUtf16Wrap_PanicPolicy(t *testing.T) {
	store := newStore(t, WithPolicy(handle.PolicyPanic))
	w, _ := store.FromString("hi")
	require.NoError(t, w.Close())

	assert.Panics(t, func() { _, _ = w.BorrowCont() })
	assert.Panics(t, func() { _ = w.Close() })
}

// panicKind runs fn and returns the kind of the *errors.Error it panics with.
func panicKind(t *testing.T, fn func()) (kind errors.Kind) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		e, ok := r.(*errors.Error)
		require.True(t, ok, "panic value %T", r)
		kind = e.Kind
	}()
	fn()
	return ""
}

func TestUtf16Wrap_PanicPolicyBuffers(t *testing.T) {
	store := newStore(t, WithPolicy(handle.PolicyPanic))
	w, err := store.FromString("hi")
	require.NoError(t, err)

	view, err := w.BorrowCont()
	require.NoError(t, err)
	owned, err := w.Owned()
	require.NoError(t, err)

	assert.Equal(t, errors.KindReleaseBorrowed, panicKind(t, func() { _ = view.Release() }))

	require.NoError(t, w.Set([]uint16{'o', 'k'}))
	assert.Equal(t, errors.KindBorrowInvalidated, panicKind(t, func() { _, _ = view.Units() }))
	assert.False(t, view.Valid())
	assert.Equal(t, "<invalid view>", view.String())

	require.NoError(t, w.Close())
	assert.Equal(t, errors.KindUseAfterDestroy, panicKind(t, func() { _, _ = view.Units() }))
	assert.Equal(t, errors.KindUseAfterDestroy, panicKind(t, func() { _, _ = view.Len() }))
	assert.Equal(t, errors.KindUseAfterDestroy, panicKind(t, func() { _, _ = view.Slice() }))

	units, err := owned.Units()
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x68, 0x69}, units)

	require.NoError(t, owned.Release())
	assert.Equal(t, errors.KindDoubleRelease, panicKind(t, func() { _ = owned.Release() }))
	assert.Equal(t, errors.KindUseAfterRelease, panicKind(t, func() { _, _ = owned.Units() }))
	assert.Equal(t, "<released>", owned.String())
	assert.NoError(t, store.Arena().CheckLeaks())
}

func TestUtf16Wrap_ToF64(t *testing.T) {
	tests := []struct {
		text string
		want float64
		ok   bool
	}{
		{"3.14", 3.14, true},
		{"  -2.5e3\t", -2500, true},
		{"0", 0, true},
		{"1e400", 0, false},
		{"hi", 0, false},
		{"", 0, false},
		{"3.14abc", 0, false},
	}

	store := newStore(t)
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			w, err := store.FromString(tt.text)
			require.NoError(t, err)
			defer w.Close()

			r, err := w.ToF64()
			require.NoError(t, err)
			assert.Equal(t, tt.ok, r.IsOK())
			if tt.ok {
				v, _ := r.Value()
				assert.Equal(t, tt.want, v)
			}
		})
	}

	w, _ := store.FromString("NaN")
	r, err := store.ToF64(w.Handle())
	require.NoError(t, err)
	v, ok := r.Value()
	require.True(t, ok)
	assert.True(t, math.IsNaN(v))
}

func TestUtf16Wrap_DebugString(t *testing.T) {
	store := newStore(t)
	w, _ := store.FromString("hé")
	assert.Equal(t, `Utf16Wrap("hé", 2 units)`, w.DebugString())
}

func TestStore_Events(t *testing.T) {
	store := newStore(t)
	rec := &recorder{}
	store.Table().Subscribe(rec)

	w, _ := store.FromString("hi")
	_, err := w.BorrowCont()
	require.NoError(t, err)
	owned, err := w.Owned()
	require.NoError(t, err)
	require.NoError(t, owned.Release())
	require.NoError(t, w.Close())

	assert.Equal(t, []handle.EventType{
		handle.EventCreated,
		handle.EventBorrowed,
		handle.EventReleased,
		handle.EventDestroyed,
	}, rec.events)
}

func TestStore_HandleAPI(t *testing.T) {
	store := newStore(t)
	w, _ := store.FromUTF16([]uint16{0x68, 0x69})
	h := w.Handle()

	got, err := store.Get(h)
	require.NoError(t, err)
	assert.Same(t, w, got)

	view, err := store.BorrowCont(h)
	require.NoError(t, err)
	n, _ := view.Len()
	assert.Equal(t, 2, n)

	owned, err := store.Owned(h)
	require.NoError(t, err)
	assert.Equal(t, "hi", owned.String())
	require.NoError(t, owned.Release())

	_, err = store.Get(0)
	assert.ErrorIs(t, err, errors.KindOf(errors.KindInvalidHandle))

	require.NoError(t, store.Destroy(h))
	assert.Equal(t, 0, store.Len())
}

func TestStore_Close(t *testing.T) {
	store := newStore(t)
	for _, s := range []string{"a", "b", "c"} {
		_, err := store.FromString(s)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, store.Close())
	assert.NoError(t, store.Arena().CheckLeaks())

	_, err := store.FromString("late")
	assert.Error(t, err)
}

func TestStore_Empty(t *testing.T) {
	store := newStore(t)
	w, err := store.FromUTF16(nil)
	require.NoError(t, err)

	view, err := w.BorrowCont()
	require.NoError(t, err)
	n, err := view.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, w.Close())
}
