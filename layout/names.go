package layout

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/ffi-bridge/abi"
)

// CName returns the C spelling of t. Void (nil) is the empty string so that
// it can be passed straight to abi.ResultTypeName.
func CName(t wit.Type) string {
	switch typ := t.(type) {
	case nil:
		return ""
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "uint8_t"
	case wit.S8:
		return "int8_t"
	case wit.U16:
		return "uint16_t"
	case wit.S16:
		return "int16_t"
	case wit.U32:
		return "uint32_t"
	case wit.S32:
		return "int32_t"
	case wit.U64:
		return "uint64_t"
	case wit.S64:
		return "int64_t"
	case wit.F32:
		return "float"
	case wit.F64:
		return "double"
	case wit.Char:
		return "char32_t"
	case wit.String:
		return "DiplomatStringView"
	case *wit.TypeDef:
		if typ.Name != nil {
			return *typ.Name
		}
		if r, ok := typ.Kind.(*wit.Result); ok {
			return ResultName(r.OK, r.Err)
		}
		if o, ok := typ.Kind.(*wit.Option); ok {
			return "diplomat_option_" + orVoid(CName(o.Type))
		}
		if l, ok := typ.Kind.(*wit.List); ok && isU16(l.Type) {
			return "DiplomatString16View"
		}
		return "anonymous"
	default:
		return "unknown"
	}
}

// ResultName returns the C record name for result<ok, err>.
func ResultName(ok, err wit.Type) string {
	return abi.ResultTypeName(CName(ok), CName(err))
}

func orVoid(s string) string {
	if s == "" {
		return "void"
	}
	return s
}

func isU16(t wit.Type) bool {
	_, ok := t.(wit.U16)
	return ok
}
