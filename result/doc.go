// Package result implements tagged results and their fixed-layout records.
//
// A Result[T, E] is a Go sum type: it holds a success value or a failure
// value, never both. Its C counterpart is a record whose payload union comes
// first, followed by a one-byte is_ok flag:
//
//	diplomat_result_double_void   size 16, align 8
//	  offset 0  union { double ok; }
//	  offset 8  bool is_ok
//	  offset 9  padding
//
// The payload is sized and aligned for the larger of the two sides, so a
// non-void failure type widens the union.
//
//	buf := result.F64Void.Encode(result.Success(3.14))
//	r, err := result.F64Void.Decode(buf)
//	r.Match(
//	    func(v float64) { fmt.Println("ok", v) },
//	    func(result.Void) { fmt.Println("failed") },
//	)
//
// Decoding never reads the inactive member. Floating point payloads are
// copied by bit pattern, NaN included.
package result
