package layout

import (
	"fmt"
	"sync"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/ffi-bridge/abi"
	"github.com/wippyai/ffi-bridge/errors"
)

// Info describes the size and alignment of a type in linear memory.
type Info struct {
	FieldOffs map[string]uint32
	Size      uint32
	Align     uint32
}

// ResultInfo describes a tagged result record.
type ResultInfo struct {
	OK           Info
	Err          Info
	Size         uint32
	Align        uint32
	PayloadSize  uint32
	PayloadAlign uint32
	IsOKOffset   uint32
	HasOK        bool
	HasErr       bool
}

// Calculator computes layouts, caching named type definitions.
type Calculator struct {
	cache map[*wit.TypeDef]Info
	mu    sync.Mutex
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*wit.TypeDef]Info),
	}
}

var defaultCalc = NewCalculator()

// Of calculates the layout of t with a shared calculator.
func Of(t wit.Type) Info {
	return defaultCalc.Calculate(t)
}

// ResultOf calculates the result record layout with a shared calculator.
func ResultOf(ok, err wit.Type) ResultInfo {
	return defaultCalc.Result(ok, err)
}

// Calculate returns the layout of t. Types rejected by Check get a
// zero-size layout; call Check first for types from outside this module.
func (c *Calculator) Calculate(t wit.Type) Info {
	switch typ := t.(type) {
	case nil:
		return Info{Size: 0, Align: 1}
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case wit.String:
		return Info{Size: abi.SliceSize, Align: abi.SliceAlign}
	case *wit.TypeDef:
		return c.calculateTypeDef(typ)
	default:
		return Info{Size: 0, Align: 1}
	}
}

// Check reports an unsupported error when t, or any type it contains, has
// no C layout here. Variants, flags, resource handles, futures and streams
// are rejected.
func Check(t wit.Type) error {
	switch typ := t.(type) {
	case nil, wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32,
		wit.U64, wit.S64, wit.F32, wit.F64, wit.Char, wit.String:
		return nil
	case *wit.TypeDef:
		return checkKind(typ.Kind)
	}
	return errors.Unsupported(errors.PhaseLayout, fmt.Sprintf("%T has no C layout", t))
}

func checkKind(kind wit.TypeDefKind) error {
	switch k := kind.(type) {
	case *wit.Record:
		for _, f := range k.Fields {
			if err := Check(f.Type); err != nil {
				return err
			}
		}
		return nil
	case *wit.Tuple:
		for _, typ := range k.Types {
			if err := Check(typ); err != nil {
				return err
			}
		}
		return nil
	case *wit.Enum:
		return nil
	case *wit.List:
		return Check(k.Type)
	case *wit.Option:
		return Check(k.Type)
	case *wit.Result:
		if err := Check(k.OK); err != nil {
			return err
		}
		return Check(k.Err)
	case wit.Type:
		return Check(k)
	}
	return errors.Unsupported(errors.PhaseLayout, fmt.Sprintf("%T has no C layout", kind))
}

// Result calculates the record layout for a result carrying ok on success
// and err on failure. A nil side is void.
func (c *Calculator) Result(ok, err wit.Type) ResultInfo {
	info := ResultInfo{
		OK:     c.Calculate(ok),
		Err:    c.Calculate(err),
		HasOK:  ok != nil,
		HasErr: err != nil,
	}

	info.PayloadAlign = max(info.OK.Align, info.Err.Align, 1)
	info.PayloadSize = abi.AlignTo(max(info.OK.Size, info.Err.Size), info.PayloadAlign)

	// is_ok follows the union; the record is padded out to the union's alignment.
	info.IsOKOffset = info.PayloadSize
	info.Align = info.PayloadAlign
	info.Size = abi.AlignTo(info.IsOKOffset+1, info.Align)

	return info
}

func (c *Calculator) calculateTypeDef(t *wit.TypeDef) Info {
	c.mu.Lock()
	if cached, ok := c.cache[t]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	var info Info

	switch kind := t.Kind.(type) {
	case *wit.Record:
		info = c.calculateRecord(kind)
	case *wit.Tuple:
		info = c.calculateTuple(kind)
	case *wit.Enum:
		info = Info{Size: 4, Align: 4}
	case *wit.List:
		info = Info{Size: abi.SliceSize, Align: abi.SliceAlign}
	case *wit.Option:
		r := c.Result(kind.Type, nil)
		info = Info{Size: r.Size, Align: r.Align}
	case *wit.Result:
		r := c.Result(kind.OK, kind.Err)
		info = Info{Size: r.Size, Align: r.Align}
	case wit.Type:
		info = c.Calculate(kind)
	default:
		info = Info{Size: 0, Align: 1}
	}

	c.mu.Lock()
	c.cache[t] = info
	c.mu.Unlock()
	return info
}

func (c *Calculator) calculateRecord(r *wit.Record) Info {
	if len(r.Fields) == 0 {
		return Info{Size: 0, Align: 1}
	}

	fieldOffs := make(map[string]uint32)
	maxAlign := uint32(1)
	offset := uint32(0)

	for _, field := range r.Fields {
		fieldLayout := c.Calculate(field.Type)

		offset = abi.AlignTo(offset, fieldLayout.Align)
		fieldOffs[field.Name] = offset

		if fieldLayout.Align > maxAlign {
			maxAlign = fieldLayout.Align
		}

		offset += fieldLayout.Size
	}

	totalSize := abi.AlignTo(offset, maxAlign)

	return Info{
		Size:      totalSize,
		Align:     maxAlign,
		FieldOffs: fieldOffs,
	}
}

func (c *Calculator) calculateTuple(t *wit.Tuple) Info {
	if len(t.Types) == 0 {
		return Info{Size: 0, Align: 1}
	}

	maxAlign := uint32(1)
	offset := uint32(0)

	for _, typ := range t.Types {
		elemLayout := c.Calculate(typ)
		offset = abi.AlignTo(offset, elemLayout.Align)

		if elemLayout.Align > maxAlign {
			maxAlign = elemLayout.Align
		}

		offset += elemLayout.Size
	}

	return Info{
		Size:  abi.AlignTo(offset, maxAlign),
		Align: maxAlign,
	}
}
