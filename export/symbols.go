package export

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/ffi-bridge/abi"
	"github.com/wippyai/ffi-bridge/buffer"
	"github.com/wippyai/ffi-bridge/errors"
	"github.com/wippyai/ffi-bridge/handle"
	"github.com/wippyai/ffi-bridge/object"
	"github.com/wippyai/ffi-bridge/result"
)

// Handler implements an exported symbol. Parameters arrive in stack in
// declaration order and results are written back from index 0, the same
// convention as wazero's api.GoModuleFunc.
type Handler func(ctx context.Context, stack []uint64) error

// Func describes one exported symbol.
type Func struct {
	Handler     Handler
	Name        string
	TypeName    string // empty for runtime functions
	Operation   string
	Returns     string // C record written through the trailing retptr
	Doc         string
	Convention  abi.CallingConvention
	Params      []api.ValueType
	ParamNames  []string
	Results     []api.ValueType
	ResultNames []string
}

// StackSize returns the number of stack slots a call needs.
func (f *Func) StackSize() int {
	return max(len(f.Params), len(f.Results))
}

// C record names written through retptr.
const (
	recordString16View = "DiplomatString16View"
	recordOwnedSlice   = "DiplomatOwnedString16"
)

func (l *Library) register(f *Func) error {
	if f.Convention == "" {
		f.Convention = abi.CDecl
	}
	if f.TypeName != "" {
		name, err := abi.Symbol(f.TypeName, f.Operation)
		if err != nil {
			return errors.Registration(errors.PhaseExport, f.TypeName+"_"+f.Operation, err)
		}
		f.Name = name
	}
	if f.Name == "" {
		return errors.Registration(errors.PhaseExport, "<unnamed>", errors.InvalidInput(errors.PhaseExport, "empty symbol name"))
	}
	if _, dup := l.funcs[f.Name]; dup {
		return errors.Registration(errors.PhaseExport, f.Name, errors.InvalidInput(errors.PhaseExport, "duplicate symbol"))
	}
	if len(f.ParamNames) != len(f.Params) || len(f.ResultNames) != len(f.Results) {
		return errors.Registration(errors.PhaseExport, f.Name, errors.InvalidInput(errors.PhaseExport, "name count does not match type count"))
	}
	l.funcs[f.Name] = f
	l.order = append(l.order, f.Name)
	return nil
}

func (l *Library) registerAll() error {
	i32, i64 := api.ValueTypeI32, api.ValueTypeI64
	funcs := []*Func{
		{
			TypeName:    object.TypeName,
			Operation:   "from_utf16",
			Doc:         "Creates an object holding a copy of the len code units at ptr.",
			Params:      []api.ValueType{i32, i32},
			ParamNames:  []string{"ptr", "len"},
			Results:     []api.ValueType{i64},
			ResultNames: []string{"self"},
			Handler:     l.fromUTF16,
		},
		{
			TypeName:   object.TypeName,
			Operation:  "set",
			Doc:        "Replaces the contents. Borrowed views taken earlier become invalid.",
			Params:     []api.ValueType{i64, i32, i32},
			ParamNames: []string{"self", "ptr", "len"},
			Handler:    l.set,
		},
		{
			TypeName:   object.TypeName,
			Operation:  "borrow_cont",
			Doc:        "Writes a view of the contents, valid while self is live and unmodified.",
			Returns:    recordString16View,
			Params:     []api.ValueType{i64, i32},
			ParamNames: []string{"self", "retptr"},
			Handler:    l.borrowCont,
		},
		{
			TypeName:   object.TypeName,
			Operation:  "owned",
			Doc:        "Writes a caller-owned copy of the contents. Release it with diplomat_free(ptr, len*2, 2).",
			Returns:    recordOwnedSlice,
			Params:     []api.ValueType{i64, i32},
			ParamNames: []string{"self", "retptr"},
			Handler:    l.owned,
		},
		{
			TypeName:   object.TypeName,
			Operation:  "to_f64",
			Doc:        "Parses the contents as a number.",
			Returns:    result.F64Void.Name(),
			Params:     []api.ValueType{i64, i32},
			ParamNames: []string{"self", "retptr"},
			Handler:    l.toF64,
		},
		{
			TypeName:   object.TypeName,
			Operation:  abi.OpDestroy,
			Doc:        "Destroys the object. Any later call with self is a violation.",
			Params:     []api.ValueType{i64},
			ParamNames: []string{"self"},
			Handler:    l.destroy,
		},
		{
			Name:        abi.SymAlloc,
			Doc:         "Allocates size bytes aligned to align. Returns 0 on failure.",
			Params:      []api.ValueType{i32, i32},
			ParamNames:  []string{"size", "align"},
			Results:     []api.ValueType{i32},
			ResultNames: []string{"ptr"},
			Handler:     l.alloc,
		},
		{
			Name:       abi.SymFree,
			Doc:        "Frees memory returned by diplomat_alloc or an owned sequence.",
			Params:     []api.ValueType{i32, i32, i32},
			ParamNames: []string{"ptr", "size", "align"},
			Handler:    l.free,
		},
	}
	for _, f := range funcs {
		if err := l.register(f); err != nil {
			return err
		}
	}
	return nil
}

// Funcs returns the exported symbols in registration order.
func (l *Library) Funcs() []*Func {
	out := make([]*Func, len(l.order))
	for i, name := range l.order {
		out[i] = l.funcs[name]
	}
	return out
}

// Func returns the exported symbol called name.
func (l *Library) Func(name string) (*Func, bool) {
	f, ok := l.funcs[name]
	return f, ok
}

func (l *Library) enforce(err error) error {
	return l.cfg.Policy().Enforce(err)
}

func (l *Library) readUnits(ptr, n uint32) ([]uint16, error) {
	if n == 0 {
		return nil, nil
	}
	if n > abi.MaxUnits {
		return nil, errors.Overflow(errors.PhaseExport, []string{"len"}, n, "code unit count")
	}
	if ptr%buffer.UnitAlign != 0 {
		return nil, errors.New(errors.PhaseExport, errors.KindInvalidInput).
			Detail("code unit pointer 0x%x is not %d-aligned", ptr, buffer.UnitAlign).
			Value(ptr).
			Build()
	}
	raw, err := l.mem.Read(ptr, n*buffer.UnitSize)
	if err != nil {
		return nil, err
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	return units, nil
}

func (l *Library) writeSlice(retptr uint32, s abi.Slice) error {
	if retptr%abi.SliceAlign != 0 {
		return errors.New(errors.PhaseExport, errors.KindInvalidInput).
			Detail("retptr 0x%x is not %d-aligned", retptr, abi.SliceAlign).
			Value(retptr).
			Build()
	}
	var buf [abi.SliceSize]byte
	binary.LittleEndian.PutUint32(buf[0:], s.Ptr)
	binary.LittleEndian.PutUint32(buf[4:], s.Len)
	return l.mem.Write(retptr, buf[:])
}

func (l *Library) fromUTF16(_ context.Context, stack []uint64) error {
	units, err := l.readUnits(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if err != nil {
		return err
	}
	w, err := l.store.FromUTF16(units)
	if err != nil {
		return err
	}
	stack[0] = uint64(w.Handle())
	return nil
}

func (l *Library) set(_ context.Context, stack []uint64) error {
	w, err := l.store.Get(handle.Handle(stack[0]))
	if err != nil {
		return err
	}
	units, err := l.readUnits(api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
	if err != nil {
		return err
	}
	return w.Set(units)
}

func (l *Library) borrowCont(_ context.Context, stack []uint64) error {
	view, err := l.store.BorrowCont(handle.Handle(stack[0]))
	if err != nil {
		return err
	}
	s, err := view.Slice()
	if err != nil {
		return err
	}
	return l.writeSlice(api.DecodeU32(stack[1]), s)
}

func (l *Library) owned(_ context.Context, stack []uint64) error {
	owned, err := l.store.Owned(handle.Handle(stack[0]))
	if err != nil {
		return err
	}
	s, err := owned.Transfer()
	if err != nil {
		return err
	}
	if err := l.writeSlice(api.DecodeU32(stack[1]), s); err != nil {
		// Nobody else can free it now.
		_ = l.arena.Free(s.Ptr, s.Len*buffer.UnitSize, buffer.UnitAlign)
		return err
	}
	return nil
}

func (l *Library) toF64(_ context.Context, stack []uint64) error {
	r, err := l.store.ToF64(handle.Handle(stack[0]))
	if err != nil {
		return err
	}
	return result.F64Void.Store(l.mem, api.DecodeU32(stack[1]), r)
}

func (l *Library) destroy(_ context.Context, stack []uint64) error {
	return l.store.Destroy(handle.Handle(stack[0]))
}

func (l *Library) alloc(_ context.Context, stack []uint64) error {
	size, align := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	ptr, err := l.arena.Alloc(size, align)
	if err != nil {
		l.log.Debug("diplomat_alloc failed",
			zap.Uint32("size", size), zap.Uint32("align", align), zap.Error(err))
		ptr = 0
	}
	stack[0] = api.EncodeU32(ptr)
	return nil
}

func (l *Library) free(_ context.Context, stack []uint64) error {
	ptr, size, align := api.DecodeU32(stack[0]), api.DecodeU32(stack[1]), api.DecodeU32(stack[2])
	if err := l.arena.Free(ptr, size, align); err != nil {
		return fmt.Errorf("%s(0x%x, %d, %d): %w", abi.SymFree, ptr, size, align, err)
	}
	return nil
}
