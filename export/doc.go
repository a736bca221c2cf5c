// Package export assembles a native library instance and publishes its
// symbols under the C calling convention.
//
// Every symbol follows the <TypeName>_<operation> scheme, plus the runtime
// pair diplomat_alloc and diplomat_free:
//
//	Utf16Wrap_from_utf16(ptr i32, len i32) -> self i64
//	Utf16Wrap_set(self i64, ptr i32, len i32)
//	Utf16Wrap_borrow_cont(self i64, retptr i32)   // DiplomatString16View
//	Utf16Wrap_owned(self i64, retptr i32)         // DiplomatOwnedString16
//	Utf16Wrap_to_f64(self i64, retptr i32)        // diplomat_result_double_void
//	Utf16Wrap_destroy(self i64)
//	diplomat_alloc(size i32, align i32) -> ptr i32
//	diplomat_free(ptr i32, size i32, align i32)
//
// Symbols can be called in-process with Invoke or Call, or bound into a
// wazero runtime with Bind. Owned sequences returned through
// Utf16Wrap_owned are freed with diplomat_free(ptr, len*2, 2); a second
// free is reported as a double release.
package export
