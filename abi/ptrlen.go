package abi

import "fmt"

// Slice is the in-memory descriptor of a contiguous run of elements:
// a 32-bit pointer followed by a 32-bit element count.
type Slice struct {
	Ptr uint32
	Len uint32
}

// SliceSize and SliceAlign describe the Slice record in linear memory.
const (
	SliceSize  = 8
	SliceAlign = 4
)

// Packed returns s as a single uint64 (pointer high, length low).
func (s Slice) Packed() uint64 {
	return PackPtrLen(s.Ptr, s.Len)
}

// PackPtrLen packs a pointer and length into a single uint64.
// Pointer is stored in the high 32 bits, length in the low 32 bits.
// Panics if ptr is 0 and length > 0, indicating an invalid state.
func PackPtrLen(ptr, length uint32) uint64 {
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid pack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return (uint64(ptr) << 32) | uint64(length)
}

// UnpackPtrLen unpacks a uint64 into its original pointer and length.
// Panics if ptr is 0 and length > 0, indicating an invalid packed value.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32)
	length = uint32(packed)
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid unpack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return ptr, length
}
