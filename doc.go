// Package ffibridge implements the value transfer convention used between a
// native library and its foreign-language bindings.
//
// Two things cross the boundary: tagged results and UTF-16 buffers. A tagged
// result is a fixed-size record pairing a payload union with an is_ok flag,
// for example diplomat_result_double_void:
//
//	typedef struct diplomat_result_double_void {
//	    union { double ok; };
//	    bool is_ok;
//	} diplomat_result_double_void;
//
// Buffers are produced by opaque native objects in one of two modes. A
// borrowed view stays valid only while its source object is live and
// unmodified. An owned sequence belongs to the caller and must be released
// exactly once.
//
// # Architecture Overview
//
//	ffibridge/       Root package with Memory and Allocator interfaces
//	├── abi/         Symbol naming, calling convention, pointer packing
//	├── layout/      C sequential layout over WIT type descriptors
//	├── result/      Result[T, E] sum type and fixed-layout record codec
//	├── memory/      Linear memory, wazero adapter, tracking arena
//	├── handle/      Generational handle table with Live/Destroyed states
//	├── buffer/      Borrowed views and owned sequences
//	├── object/      Utf16Wrap native object
//	├── export/      Exported symbol library and wazero host binding
//	├── config/      Configuration loading and validation
//	├── errors/      Structured error types
//	├── cmd/ffictl/  Command-line inspector and interactive caller
//	└── examples/    Runnable usage examples
//
// # Quick Start
//
//	lib, err := export.New(ctx, config.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer lib.Close(ctx)
//
//	w, _ := lib.Objects().FromString("hi")
//	view, _ := w.BorrowCont()
//	units, _ := view.Units() // [0x68 0x69]
//
//	owned, _ := w.Owned()
//	defer owned.Release()
//
// # Error Channels
//
// Expected failures travel as data in the is_ok flag. Precondition
// violations (use after destroy, double release, releasing a borrowed view)
// are reported as *errors.Error values with a dedicated Kind, or panic when
// the library runs with the panic violation policy.
package ffibridge
