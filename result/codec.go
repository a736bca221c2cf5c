package result

import (
	"go.bytecodealliance.org/wit"

	ffibridge "github.com/wippyai/ffi-bridge"
	"github.com/wippyai/ffi-bridge/errors"
	"github.com/wippyai/ffi-bridge/layout"
)

// Codec converts between Result values and their fixed-size C record:
// a payload union at offset 0 followed by a one-byte is_ok flag.
type Codec[T, E any] struct {
	ok   Scalar[T]
	err  Scalar[E]
	name string
	info layout.ResultInfo
}

// BuildCodec builds the codec for result<ok, err>. It fails when either
// payload type has no C layout.
func BuildCodec[T, E any](ok Scalar[T], err Scalar[E]) (*Codec[T, E], error) {
	for _, t := range []wit.Type{ok.Type(), err.Type()} {
		if e := layout.Check(t); e != nil {
			return nil, e
		}
	}
	return &Codec[T, E]{
		ok:   ok,
		err:  err,
		name: layout.ResultName(ok.Type(), err.Type()),
		info: layout.ResultOf(ok.Type(), err.Type()),
	}, nil
}

// NewCodec is BuildCodec for payload types known to be supported. It
// panics otherwise.
func NewCodec[T, E any](ok Scalar[T], err Scalar[E]) *Codec[T, E] {
	c, e := BuildCodec(ok, err)
	if e != nil {
		panic(e)
	}
	return c
}

// F64Void encodes diplomat_result_double_void.
var F64Void = NewCodec(F64, None)

// Layout returns the record layout.
func (c *Codec[T, E]) Layout() layout.ResultInfo {
	return c.info
}

// Name returns the C record name, e.g. diplomat_result_double_void.
func (c *Codec[T, E]) Name() string {
	return c.name
}

// Size returns the record size in bytes.
func (c *Codec[T, E]) Size() uint32 {
	return c.info.Size
}

// Encode returns a new zeroed record holding r.
func (c *Codec[T, E]) Encode(r Result[T, E]) []byte {
	buf := make([]byte, c.info.Size)
	_ = c.EncodeInto(buf, r)
	return buf
}

// EncodeInto writes r into dst. Only the active payload member and the
// is_ok byte are written; a void failure leaves the payload bytes as they
// were.
func (c *Codec[T, E]) EncodeInto(dst []byte, r Result[T, E]) error {
	if uint32(len(dst)) < c.info.Size {
		return errors.OutOfBounds(errors.PhaseEncode, []string{c.name}, int(c.info.Size), len(dst))
	}

	if r.isOK {
		if c.info.HasOK {
			c.ok.Put(dst, r.ok)
		}
		dst[c.info.IsOKOffset] = 1
		return nil
	}

	if c.info.HasErr {
		c.err.Put(dst, r.err)
	}
	dst[c.info.IsOKOffset] = 0
	return nil
}

// Decode reads a record. It inspects is_ok first and then reads only the
// member it names.
func (c *Codec[T, E]) Decode(src []byte) (Result[T, E], error) {
	if uint32(len(src)) < c.info.Size {
		return Result[T, E]{}, errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
			Path(c.name).
			Detail("record is %d bytes, need %d", len(src), c.info.Size).
			Build()
	}

	switch tag := src[c.info.IsOKOffset]; tag {
	case 1:
		var v T
		if c.info.HasOK {
			v = c.ok.Get(src)
		}
		return Ok[T, E](v), nil
	case 0:
		var e E
		if c.info.HasErr {
			e = c.err.Get(src)
		}
		return Err[T](e), nil
	default:
		return Result[T, E]{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Path(c.name, "is_ok").
			Value(tag).
			Detail("is_ok byte 0x%02x is neither 0 nor 1", tag).
			Build()
	}
}

// Store encodes r into mem at offset, preserving the inactive payload bytes
// already there. offset must satisfy the record alignment.
func (c *Codec[T, E]) Store(mem ffibridge.Memory, offset uint32, r Result[T, E]) error {
	if err := c.checkAlign(errors.PhaseEncode, offset); err != nil {
		return err
	}
	cur, err := mem.Read(offset, c.info.Size)
	if err != nil {
		return err
	}
	buf := make([]byte, len(cur))
	copy(buf, cur)
	if err := c.EncodeInto(buf, r); err != nil {
		return err
	}
	return mem.Write(offset, buf)
}

// Load decodes the record stored in mem at offset.
func (c *Codec[T, E]) Load(mem ffibridge.Memory, offset uint32) (Result[T, E], error) {
	if err := c.checkAlign(errors.PhaseDecode, offset); err != nil {
		return Result[T, E]{}, err
	}
	src, err := mem.Read(offset, c.info.Size)
	if err != nil {
		return Result[T, E]{}, err
	}
	return c.Decode(src)
}

func (c *Codec[T, E]) checkAlign(phase errors.Phase, offset uint32) error {
	if offset%c.info.Align != 0 {
		return errors.New(phase, errors.KindInvalidInput).
			Path(c.name).
			Value(offset).
			Detail("offset %d is not %d-byte aligned", offset, c.info.Align).
			Build()
	}
	return nil
}
