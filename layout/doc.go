// Package layout computes C sequential layouts for types described with WIT
// type descriptors.
//
// # Layout Rules
//
//   - Primitives: size equals alignment (u8=1, u16=2, u32=4, f64=8, etc.)
//   - Records and tuples: fields laid out sequentially with padding
//   - Strings and lists: (pointer u32, length u32) slice descriptor
//   - Enums: 4-byte C enum
//   - Results and options: payload union first, then a one-byte is_ok flag
//
// The result rule differs from the Component Model canonical ABI, which
// places the discriminant first. Here the union comes first, matching
//
//	typedef struct diplomat_result_double_void {
//	    union { double ok; };
//	    bool is_ok;
//	} diplomat_result_double_void;
//
// The payload union is as large as the larger of the two payloads and as
// aligned as the stricter of the two. A void side contributes nothing.
//
// Variants, flags, resource handles, futures and streams have no layout
// here. Check rejects them, including when nested in another type.
package layout
