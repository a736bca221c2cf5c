package result

import (
	"encoding/binary"
	"math"

	"go.bytecodealliance.org/wit"
)

// Scalar reads and writes one fixed-size payload type at the start of a
// byte slice. Put and Get assume the slice holds at least the layout size
// of Type(); Codec checks that before calling them.
type Scalar[T any] interface {
	Type() wit.Type
	Put(dst []byte, v T)
	Get(src []byte) T
}

// Payload codecs for the scalar types a result record can carry.
var (
	Bool Scalar[bool]    = boolScalar{}
	U8   Scalar[uint8]   = u8Scalar{}
	U16  Scalar[uint16]  = u16Scalar{}
	U32  Scalar[uint32]  = u32Scalar{}
	U64  Scalar[uint64]  = u64Scalar{}
	S32  Scalar[int32]   = s32Scalar{}
	S64  Scalar[int64]   = s64Scalar{}
	F32  Scalar[float32] = f32Scalar{}
	F64  Scalar[float64] = f64Scalar{}
	None Scalar[Void]    = voidScalar{}
)

type boolScalar struct{}

func (boolScalar) Type() wit.Type { return wit.Bool{} }
func (boolScalar) Put(dst []byte, v bool) {
	dst[0] = 0
	if v {
		dst[0] = 1
	}
}
func (boolScalar) Get(src []byte) bool { return src[0] != 0 }

type u8Scalar struct{}

func (u8Scalar) Type() wit.Type          { return wit.U8{} }
func (u8Scalar) Put(dst []byte, v uint8) { dst[0] = v }
func (u8Scalar) Get(src []byte) uint8    { return src[0] }

type u16Scalar struct{}

func (u16Scalar) Type() wit.Type           { return wit.U16{} }
func (u16Scalar) Put(dst []byte, v uint16) { binary.LittleEndian.PutUint16(dst, v) }
func (u16Scalar) Get(src []byte) uint16    { return binary.LittleEndian.Uint16(src) }

type u32Scalar struct{}

func (u32Scalar) Type() wit.Type           { return wit.U32{} }
func (u32Scalar) Put(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func (u32Scalar) Get(src []byte) uint32    { return binary.LittleEndian.Uint32(src) }

type u64Scalar struct{}

func (u64Scalar) Type() wit.Type           { return wit.U64{} }
func (u64Scalar) Put(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }
func (u64Scalar) Get(src []byte) uint64    { return binary.LittleEndian.Uint64(src) }

type s32Scalar struct{}

func (s32Scalar) Type() wit.Type          { return wit.S32{} }
func (s32Scalar) Put(dst []byte, v int32) { binary.LittleEndian.PutUint32(dst, uint32(v)) }
func (s32Scalar) Get(src []byte) int32    { return int32(binary.LittleEndian.Uint32(src)) }

type s64Scalar struct{}

func (s64Scalar) Type() wit.Type          { return wit.S64{} }
func (s64Scalar) Put(dst []byte, v int64) { binary.LittleEndian.PutUint64(dst, uint64(v)) }
func (s64Scalar) Get(src []byte) int64    { return int64(binary.LittleEndian.Uint64(src)) }

// Floats are copied by bit pattern, so NaN payloads survive a round trip.

type f32Scalar struct{}

func (f32Scalar) Type() wit.Type { return wit.F32{} }
func (f32Scalar) Put(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}
func (f32Scalar) Get(src []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(src))
}

type f64Scalar struct{}

func (f64Scalar) Type() wit.Type { return wit.F64{} }
func (f64Scalar) Put(dst []byte, v float64) {
	binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
}
func (f64Scalar) Get(src []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(src))
}

type voidScalar struct{}

func (voidScalar) Type() wit.Type   { return nil }
func (voidScalar) Put([]byte, Void) {}
func (voidScalar) Get([]byte) Void  { return Void{} }
