package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLayout   Phase = "layout"   // size and alignment calculation
	PhaseEncode   Phase = "encode"   // Go value to record
	PhaseDecode   Phase = "decode"   // record to Go value
	PhaseMemory   Phase = "memory"   // linear memory and arena
	PhaseHandle   Phase = "handle"   // native object handles
	PhaseBuffer   Phase = "buffer"   // borrowed views and owned sequences
	PhaseExport   Phase = "export"   // symbol registration and dispatch
	PhaseBind     Phase = "bind"     // host module binding
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseValidate Phase = "validate" // data validation
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindUnsupported    Kind = "unsupported"
	KindAllocation     Kind = "allocation"
	KindOverflow       Kind = "overflow"
	KindNotFound       Kind = "not_found"
	KindInvalidInput   Kind = "invalid_input"
	KindRegistration   Kind = "registration"
	KindInstantiation  Kind = "instantiation"
	KindInvalidUTF16   Kind = "invalid_utf16"
	KindInvalidSymbol  Kind = "invalid_symbol"
	KindMissingSymbol  Kind = "missing_symbol"
	KindInactiveMember Kind = "inactive_member"

	// Precondition violations. These are caller bugs, never operational
	// failures.
	KindInvalidHandle     Kind = "invalid_handle"
	KindUseAfterDestroy   Kind = "use_after_destroy"
	KindDoubleDestroy     Kind = "double_destroy"
	KindBorrowInvalidated Kind = "borrow_invalidated"
	KindReleaseBorrowed   Kind = "release_borrowed"
	KindDoubleRelease     Kind = "double_release"
	KindUseAfterRelease   Kind = "use_after_release"
)

// IsViolation reports whether k is a precondition violation kind.
func (k Kind) IsViolation() bool {
	switch k {
	case KindInvalidHandle, KindUseAfterDestroy, KindDoubleDestroy,
		KindBorrowInvalidated, KindReleaseBorrowed, KindDoubleRelease,
		KindUseAfterRelease:
		return true
	}
	return false
}

// Error is the structured error type used throughout the module
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	GoType  string
	WitType string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.WitType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.WitType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", WIT type ")
			b.WriteString(e.WitType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("WIT type ")
			b.WriteString(e.WitType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.WitType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// WitType sets the WIT type name
func (b *Builder) WitType(t string) *Builder {
	b.err.WitType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// KindOf returns a sentinel that matches any error of kind k under errors.Is,
// regardless of phase.
func KindOf(k Kind) *Error {
	return &Error{Kind: k}
}

// Convenience constructors for common error patterns

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindOverflow,
		Path:    path,
		WitType: targetType,
		Detail:  fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:   value,
	}
}

// InvalidUTF16 creates an error for a code-unit sequence with unpaired
// surrogates.
func InvalidUTF16(phase Phase, units []uint16, index int) *Error {
	preview := units
	if len(preview) > 16 {
		preview = preview[:16]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF16,
		Detail: fmt.Sprintf("unpaired surrogate at unit %d: %04x", index, preview),
		Value:  index,
	}
}

// InactiveMember creates an error for an attempt to read the payload member
// a result record does not currently hold.
func InactiveMember(path []string, member string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInactiveMember,
		Path:   path,
		Detail: fmt.Sprintf("%s member is not active", member),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Violation creates a precondition violation error for the object or buffer
// identified by what.
func Violation(phase Phase, kind Kind, what string, value any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: what,
		Value:  value,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidSymbol creates an error for a malformed exported symbol name
func InvalidSymbol(name, reason string) *Error {
	return &Error{
		Phase:  PhaseExport,
		Kind:   KindInvalidSymbol,
		Detail: fmt.Sprintf("symbol %q: %s", name, reason),
		Value:  name,
	}
}

// Registration creates a registration error
func Registration(phase Phase, symbol string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s", symbol),
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindInstantiation,
		Detail: "instantiate host module",
		Cause:  cause,
	}
}

// MissingSymbol represents a single unresolved exported symbol
type MissingSymbol struct {
	TypeName  string // e.g., "Utf16Wrap"
	Operation string // e.g., "borrow_cont"
}

// MissingSymbolsError is returned when a binding requires symbols the
// library does not export
type MissingSymbolsError struct {
	Symbols []MissingSymbol
}

// NewMissingSymbolsError creates an error from a list of "<Type>_<op>" names
func NewMissingSymbolsError(symbols []string) *MissingSymbolsError {
	result := &MissingSymbolsError{
		Symbols: make([]MissingSymbol, 0, len(symbols)),
	}
	for _, sym := range symbols {
		typeName, op := splitSymbol(sym)
		result.Symbols = append(result.Symbols, MissingSymbol{
			TypeName:  typeName,
			Operation: op,
		})
	}
	return result
}

// splitSymbol splits at the first underscore; type names never contain one.
// Free functions such as diplomat_free land in the "diplomat" group.
func splitSymbol(sym string) (typeName, op string) {
	typeName, op, found := strings.Cut(sym, "_")
	if found && typeName != "" {
		return typeName, op
	}
	return "", sym
}

func (e *MissingSymbolsError) Error() string {
	if len(e.Symbols) == 0 {
		return "[bind] missing_symbol: no symbols specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("missing %d exported symbol(s):\n", len(e.Symbols)))

	byType := make(map[string][]string)
	var typeOrder []string
	for _, sym := range e.Symbols {
		if _, exists := byType[sym.TypeName]; !exists {
			typeOrder = append(typeOrder, sym.TypeName)
		}
		byType[sym.TypeName] = append(byType[sym.TypeName], sym.Operation)
	}

	for _, tn := range typeOrder {
		b.WriteString("\n  ")
		if tn == "" {
			b.WriteString("(free functions)")
		} else {
			b.WriteString(tn)
		}
		b.WriteString(":\n")
		for _, op := range byType[tn] {
			b.WriteString("    - ")
			b.WriteString(op)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingSymbolsError) Is(target error) bool {
	_, ok := target.(*MissingSymbolsError)
	return ok
}
