// Package handle manages opaque native object handles.
//
// A handle is the only reference foreign code holds to a native object. Each
// handle is Live from Insert until Destroy and Destroyed afterwards; there is
// no way back. Slots are recycled, but every reuse bumps the slot generation
// so a stale handle never aliases a newer object.
//
//	table := handle.NewTable[*Wrap]("Utf16Wrap")
//	h, _ := table.Insert(w)
//	w, err := table.Get(h)   // live
//	_, err = table.Destroy(h) // Live -> Destroyed
//	_, err = table.Get(h)     // errors.KindUseAfterDestroy
//	_, err = table.Destroy(h) // errors.KindDoubleDestroy
//
// # Violations
//
// Invalid handles, use after destroy and double destroy are precondition
// violations. They are always detected and returned as *errors.Error; a
// table created WithPolicy(PolicyPanic) panics with the same error instead.
//
// # Observers
//
// Observers see EventCreated and EventDestroyed from the table itself, plus
// EventBorrowed from Borrow and any event delivered through Notify.
package handle
