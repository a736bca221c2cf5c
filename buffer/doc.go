// Package buffer implements the two ways a native object hands out its
// UTF-16 code units.
//
// A View is borrowed. It reads through to the source object and stays valid
// only while that object is live and unmodified; every access rechecks the
// source epoch. Releasing a view is a precondition violation.
//
// An Owned sequence is a fresh copy in linear memory that belongs to the
// receiver. It outlives the source object and must be released exactly
// once, either by Release or by handing it to foreign code with Transfer.
//
// Misuse of either is a precondition violation, handled by the policy passed
// with WithPolicy: an error return by default, a panic under
// handle.PolicyPanic.
//
//	view, _ := buffer.Borrow(src)
//	units, _ := view.Units()
//
//	owned, _ := buffer.TakeOwned(arena, mem, units)
//	defer owned.Release()
package buffer
