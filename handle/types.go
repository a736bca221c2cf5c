package handle

import "fmt"

// Handle is an opaque reference to an object in a Table.
// The high 32 bits hold the slot generation, the low 32 bits slot+1.
// Handle 0 is reserved and always invalid.
type Handle uint64

func makeHandle(gen, slot uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(slot+1))
}

// Generation returns the slot generation encoded in h.
func (h Handle) Generation() uint32 {
	return uint32(h >> 32)
}

func (h Handle) slot() (uint32, bool) {
	low := uint32(h)
	if low == 0 {
		return 0, false
	}
	return low - 1, true
}

func (h Handle) String() string {
	if h == 0 {
		return "handle(nil)"
	}
	slot, _ := h.slot()
	return fmt.Sprintf("handle(%d@%d)", slot, h.Generation())
}

// State is the lifecycle state of a handle.
type State uint8

const (
	StateInvalid State = iota
	StateLive
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateDestroyed:
		return "destroyed"
	default:
		return "invalid"
	}
}

// EventType identifies a lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDestroyed
	EventBorrowed
	EventReleased
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDestroyed:
		return "destroyed"
	case EventBorrowed:
		return "borrowed"
	case EventReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Event represents a lifecycle event.
type Event struct {
	Value    any
	TypeName string
	Handle   Handle
	Type     EventType
}

// Observer receives notifications about lifecycle events.
type Observer interface {
	OnHandleEvent(Event)
}

// Dropper is optionally implemented by values that need cleanup when their
// handle is destroyed.
type Dropper interface {
	Drop()
}
