package result

import (
	"fmt"

	"github.com/wippyai/ffi-bridge/errors"
)

// Void is the payload of a side that carries no value.
type Void struct{}

// Result holds either a success value of type T or a failure value of
// type E. The zero Result is a failure carrying the zero E.
type Result[T, E any] struct {
	ok   T
	err  E
	isOK bool
}

// Ok returns a successful result holding v.
func Ok[T, E any](v T) Result[T, E] {
	return Result[T, E]{ok: v, isOK: true}
}

// Err returns a failed result holding e.
func Err[T, E any](e E) Result[T, E] {
	return Result[T, E]{err: e}
}

// Success is Ok for results whose failure side is void.
func Success[T any](v T) Result[T, Void] {
	return Ok[T, Void](v)
}

// Failure is a failed result with no payload.
func Failure[T any]() Result[T, Void] {
	return Err[T](Void{})
}

// IsOK reports whether r holds a success value.
func (r Result[T, E]) IsOK() bool {
	return r.isOK
}

// Value returns the success value. ok is false for failures, in which case
// the zero T is returned.
func (r Result[T, E]) Value() (v T, ok bool) {
	if !r.isOK {
		return v, false
	}
	return r.ok, true
}

// Error returns the failure value. ok is false for successes.
func (r Result[T, E]) Error() (e E, ok bool) {
	if r.isOK {
		return e, false
	}
	return r.err, true
}

// Unwrap returns the success value, or an inactive member error for a
// failure.
func (r Result[T, E]) Unwrap() (T, error) {
	if !r.isOK {
		var zero T
		return zero, errors.InactiveMember([]string{"result"}, "ok")
	}
	return r.ok, nil
}

// UnwrapErr returns the failure value, or an inactive member error for a
// success.
func (r Result[T, E]) UnwrapErr() (E, error) {
	if r.isOK {
		var zero E
		return zero, errors.InactiveMember([]string{"result"}, "err")
	}
	return r.err, nil
}

// Match calls exactly one of onOK or onErr. A nil callback is skipped.
func (r Result[T, E]) Match(onOK func(T), onErr func(E)) {
	switch {
	case r.isOK && onOK != nil:
		onOK(r.ok)
	case !r.isOK && onErr != nil:
		onErr(r.err)
	}
}

func (r Result[T, E]) String() string {
	if r.isOK {
		return fmt.Sprintf("Ok(%v)", r.ok)
	}
	if _, void := any(r.err).(Void); void {
		return "Err"
	}
	return fmt.Sprintf("Err(%v)", r.err)
}

// Fold maps r to a single value with onOK or onErr.
func Fold[T, E, R any](r Result[T, E], onOK func(T) R, onErr func(E) R) R {
	if r.isOK {
		return onOK(r.ok)
	}
	return onErr(r.err)
}
