// Package errors provides structured error types for ffi-bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: field path, Go/WIT type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
//		Path("diplomat_result_double_void", "is_ok").
//		WitType("bool").
//		Detail("record is %d bytes, need %d", 8, 16).
//		Build()
//
// Precondition violations (use after destroy, double release and friends)
// have dedicated kinds; Kind.IsViolation distinguishes them from ordinary
// failures. KindOf builds a phase-agnostic sentinel for errors.Is:
//
//	if errors.Is(err, ffierrors.KindOf(ffierrors.KindDoubleRelease)) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
