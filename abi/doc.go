// Package abi defines the binary contract shared by the native library and
// every host binding.
//
// # Contents
//
//   - symbol.go: <TypeName>_<operation> export naming and the C calling convention
//   - names.go: C spellings for tagged result record types
//   - ptrlen.go: (pointer, length) slice descriptors and packing
//   - helpers.go: alignment and overflow-checked arithmetic
//
// Symbol names are part of the ABI. Bindings resolve Utf16Wrap_borrow_cont by
// name, so renaming an operation breaks every generated binding.
package abi
