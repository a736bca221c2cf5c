package handle

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/ffi-bridge/errors"
)

// Table maps handles to values of type T. Destroyed slots are reused with a
// bumped generation so stale handles are told apart from live ones.
type Table[T any] struct {
	entries   []entry[T]
	freeList  []uint32
	observers []Observer
	typeName  string
	live      int
	policy    Policy
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

type entry[T any] struct {
	value T
	gen   uint32
	live  bool
}

// Option configures a Table.
type Option func(*options)

type options struct {
	policy Policy
}

// WithPolicy sets the violation policy. The default is PolicyError.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// NewTable creates an empty table for objects of typeName.
func NewTable[T any](typeName string, opts ...Option) *Table[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Table[T]{
		entries:  make([]entry[T], 0, 64),
		freeList: make([]uint32, 0, 16),
		typeName: typeName,
		policy:   o.policy,
	}
}

// TypeName returns the name of the object type the table holds.
func (t *Table[T]) TypeName() string {
	return t.typeName
}

// Policy returns the table's violation policy.
func (t *Table[T]) Policy() Policy {
	return t.policy
}

// Insert stores value and returns its live handle.
func (t *Table[T]) Insert(value T) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, errors.New(errors.PhaseHandle, errors.KindInvalidInput).
			Detail("%s table closed", t.typeName).
			Build()
	}

	var h Handle
	if n := len(t.freeList); n > 0 {
		slot := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		e := &t.entries[slot]
		e.gen++
		e.value = value
		e.live = true
		h = makeHandle(e.gen, slot)
	} else {
		slot := uint32(len(t.entries))
		t.entries = append(t.entries, entry[T]{value: value, gen: 1, live: true})
		h = makeHandle(1, slot)
	}
	t.live++
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, TypeName: t.typeName, Handle: h, Value: value})
	return h, nil
}

// State reports whether h is live, destroyed, or was never issued.
func (t *Table[T]) State(h Handle) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stateLocked(h)
}

func (t *Table[T]) stateLocked(h Handle) State {
	slot, ok := h.slot()
	if !ok || int(slot) >= len(t.entries) {
		return StateInvalid
	}
	e := t.entries[slot]
	switch {
	case h.Generation() == e.gen && e.live:
		return StateLive
	case h.Generation() != 0 && h.Generation() <= e.gen:
		return StateDestroyed
	default:
		return StateInvalid
	}
}

// Get returns the value behind a live handle.
func (t *Table[T]) Get(h Handle) (T, error) {
	t.mu.RLock()
	state := t.stateLocked(h)
	var value T
	if state == StateLive {
		slot, _ := h.slot()
		value = t.entries[slot].value
	}
	t.mu.RUnlock()

	if state != StateLive {
		return value, t.policy.Enforce(t.violation(h, state, errors.KindUseAfterDestroy))
	}
	return value, nil
}

// Borrow is Get followed by an EventBorrowed notification.
func (t *Table[T]) Borrow(h Handle) (T, error) {
	value, err := t.Get(h)
	if err != nil {
		return value, err
	}
	t.notify(Event{Type: EventBorrowed, TypeName: t.typeName, Handle: h, Value: value})
	return value, nil
}

// Destroy moves h from Live to Destroyed and returns its value. It succeeds
// exactly once per handle; Dropper values are dropped before it returns.
func (t *Table[T]) Destroy(h Handle) (T, error) {
	value, err := t.destroy(h)
	return value, t.policy.Enforce(err)
}

func (t *Table[T]) destroy(h Handle) (T, error) {
	t.mu.Lock()
	state := t.stateLocked(h)
	if state != StateLive {
		t.mu.Unlock()
		var zero T
		return zero, t.violation(h, state, errors.KindDoubleDestroy)
	}

	slot, _ := h.slot()
	e := &t.entries[slot]
	value := e.value
	var zero T
	e.value = zero
	e.live = false
	t.freeList = append(t.freeList, slot)
	t.live--
	t.mu.Unlock()

	if d, ok := any(value).(Dropper); ok {
		d.Drop()
	}

	Logger().Debug("destroyed", zap.String("type", t.typeName), zap.Stringer("handle", h))
	t.notify(Event{Type: EventDestroyed, TypeName: t.typeName, Handle: h, Value: value})
	return value, nil
}

// Notify delivers e to the observers. Callers use it for events the table
// cannot see itself, such as the release of an owned sequence.
func (t *Table[T]) Notify(e Event) {
	if e.TypeName == "" {
		e.TypeName = t.typeName
	}
	t.notify(e)
}

func (t *Table[T]) violation(h Handle, state State, destroyedKind errors.Kind) error {
	kind := errors.KindInvalidHandle
	if state == StateDestroyed {
		kind = destroyedKind
	}
	return errors.Violation(errors.PhaseHandle, kind, fmt.Sprintf("%s %s", t.typeName, h), uint64(h))
}

// Subscribe adds an observer for lifecycle events.
func (t *Table[T]) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table[T]) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Each iterates over live handles in slot order until fn returns false.
func (t *Table[T]) Each(fn func(Handle, T) bool) {
	t.mu.RLock()
	type pair struct {
		v T
		h Handle
	}
	pairs := make([]pair, 0, t.live)
	for i, e := range t.entries {
		if e.live {
			pairs = append(pairs, pair{h: makeHandle(e.gen, uint32(i)), v: e.value})
		}
	}
	t.mu.RUnlock()

	for _, p := range pairs {
		if !fn(p.h, p.v) {
			return
		}
	}
}

// Handles returns the live handles in slot order.
func (t *Table[T]) Handles() []Handle {
	var out []Handle
	t.Each(func(h Handle, _ T) bool {
		out = append(out, h)
		return true
	})
	return out
}

// Close destroys every live handle and stops accepting inserts. It returns
// the number of handles it destroyed.
func (t *Table[T]) Close() int {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	n := 0
	for _, h := range t.Handles() {
		if _, err := t.destroy(h); err == nil {
			n++
		}
	}
	return n
}

func (t *Table[T]) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnHandleEvent(e)
	}
}
