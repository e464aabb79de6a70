// Package engine runs guest modules on wazero and connects them to a
// router.Router.
//
// # Architecture
//
//	Engine     - owns the wazero runtime and the "wasm-bridge" host module
//	GuestPeer  - a guest instance seen as a wasmbridge.Peer
//	Memory     - wazero memory as a wasmbridge.Memory
//	Allocator  - guest allocator exports as a wasmbridge.Allocator
//
// The host module is generated from router.Catalogue(): every entry point
// becomes an import whose core signature is the flattened WIT signature.
//
//	WIT Type        Core Representation
//	───────────────────────────────────
//	u8, u32, s32    i32
//	string          (ptr, len) as i32×2
//	list<u8>        (ptr, len) as i32×2
//
// Host functions resolve pointers against the memory of the calling module.
// A caller without memory (the host module itself, or a module that imports
// memory) falls back to the router's attached peer.
//
// # Allocation
//
// Guest allocation uses cabi_realloc(old, old_size, align, new_size) when
// exported, then the legacy names canonical_abi_realloc, allocate and alloc.
// Frees go through cabi_free, deallocate or free, and otherwise through
// realloc with a zero new size.
//
// # Thread Safety
//
// Engine is safe for concurrent use. A GuestPeer serialises its allocator
// calls but a wazero module is not re-entrant across goroutines.
package engine
