// Package object implements Utf16Wrap, an opaque native object that holds
// UTF-16 text in linear memory and hands it out borrowed or owned.
//
//	store := object.NewStore(arena)
//	w, _ := store.FromString("hi")
//
//	view, _ := w.BorrowCont()  // valid until Set or Close
//	owned, _ := w.Owned()      // valid until Release
//	r, _ := w.ToF64()          // result.Result[float64, result.Void]
//
//	_ = w.Close()              // Live -> Destroyed
//	_, err := view.Units()     // errors.KindUseAfterDestroy
//	units, _ := owned.Units()  // still readable
//	_ = owned.Release()
//
// Every object is registered in the store's handle table. Foreign callers
// only see the handle; the Store methods taking a handle.Handle are what
// the exported symbols call.
package object
