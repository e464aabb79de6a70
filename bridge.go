package wasmbridge

import "context"

// Memory represents the linear memory shared across the boundary.
// All multi-byte values are little-endian.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory on the side that owns the linear memory.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// Func is a remote-callable entry point. Parameters and results use the
// flat core value encoding, so a wazero api.Function satisfies it directly.
type Func interface {
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// FuncOf adapts a Go function to Func.
type FuncOf func(ctx context.Context, params ...uint64) ([]uint64, error)

// Call implements Func.
func (f FuncOf) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f(ctx, params...)
}

// Peer is the other side of the boundary as seen from the host: the memory
// it owns, the allocator that manages that memory, and its exported entry
// points.
type Peer interface {
	Memory() Memory
	Allocator() Allocator
	// Export returns the named entry point, or nil when the peer does not
	// export it.
	Export(name string) Func
}
