package abi

import (
	"strings"

	"github.com/wippyai/ffi-bridge/errors"
)

// CallingConvention identifies how arguments and results are passed.
type CallingConvention string

// CDecl is the platform C calling convention. Every exported symbol uses it.
const CDecl CallingConvention = "cdecl"

// Operation names with fixed meaning across all exported types.
const (
	OpDestroy = "destroy"
)

// Runtime symbols exported alongside the per-type operations.
const (
	SymAlloc = "diplomat_alloc"
	SymFree  = "diplomat_free"
)

// Symbol returns the exported name of operation op on typeName:
// Symbol("Utf16Wrap", "borrow_cont") == "Utf16Wrap_borrow_cont".
func Symbol(typeName, op string) (string, error) {
	if err := validateTypeName(typeName); err != nil {
		return "", err
	}
	if err := validateIdent(op); err != nil {
		return "", errors.InvalidSymbol(typeName+"_"+op, "operation: "+err.Error())
	}
	return typeName + "_" + op, nil
}

// MustSymbol is Symbol for names known at compile time.
func MustSymbol(typeName, op string) string {
	s, err := Symbol(typeName, op)
	if err != nil {
		panic(err)
	}
	return s
}

// Destructor returns the destruction symbol for typeName.
func Destructor(typeName string) (string, error) {
	return Symbol(typeName, OpDestroy)
}

// ParseSymbol splits name into type name and operation. Type names never
// contain underscores, so the split happens at the first one.
func ParseSymbol(name string) (typeName, op string, ok bool) {
	typeName, op, found := strings.Cut(name, "_")
	if !found || typeName == "" || op == "" {
		return "", "", false
	}
	if validateTypeName(typeName) != nil || validateIdent(op) != nil {
		return "", "", false
	}
	return typeName, op, true
}

// IsDestructor reports whether name is a <TypeName>_destroy symbol.
func IsDestructor(name string) bool {
	_, op, ok := ParseSymbol(name)
	return ok && op == OpDestroy
}

func validateTypeName(name string) error {
	if name == "" {
		return errors.InvalidSymbol(name, "empty type name")
	}
	if strings.Contains(name, "_") {
		return errors.InvalidSymbol(name, "type name contains '_'")
	}
	if name[0] < 'A' || name[0] > 'Z' {
		return errors.InvalidSymbol(name, "type name must start with an upper-case letter")
	}
	return validateIdent(name)
}

func validateIdent(s string) error {
	if s == "" {
		return errors.InvalidInput(errors.PhaseExport, "empty identifier")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return errors.InvalidInput(errors.PhaseExport, "identifier starts with a digit")
			}
		default:
			return errors.InvalidInput(errors.PhaseExport, "invalid character "+string(c))
		}
	}
	return nil
}
