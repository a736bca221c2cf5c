// Package memory provides linear memory implementations and the arena
// allocator that backs owned buffers.
//
// Linear is a plain byte slice. Wrapper adapts a wazero api.Memory so the
// same arena can live inside a WebAssembly instance's address space.
//
// Arena tracks every live allocation. Freeing a pointer twice, or a pointer
// it never handed out, is reported instead of corrupting the free list. With
// poisoning enabled, fresh allocations are filled with 0xCD and released
// regions with 0xDD so that stale reads are visible in tests.
package memory
