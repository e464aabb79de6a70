package buffer

import (
	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// Owner says who may free a span and when.
type Owner uint8

const (
	CallerOwned Owner = iota + 1
	CalleeAllocated
	PoolOwned
)

func (o Owner) String() string {
	switch o {
	case CallerOwned:
		return "caller_owned"
	case CalleeAllocated:
		return "callee_allocated"
	case PoolOwned:
		return "pool_owned"
	default:
		return "unknown"
	}
}

// Buffer is a span of linear memory with an ownership tag.
// A Buffer is not safe for concurrent use.
type Buffer struct {
	mem   wasmbridge.Memory
	alloc wasmbridge.Allocator
	ptr   uint32
	len   uint32
	cap   uint32
	owner Owner
	dead  bool
}

// Caller wraps a span the caller allocated. The callee never frees it.
func Caller(mem wasmbridge.Memory, ptr, length, capacity uint32) *Buffer {
	if capacity < length {
		capacity = length
	}
	return &Buffer{mem: mem, ptr: ptr, len: length, cap: capacity, owner: CallerOwned}
}

// Callee wraps a block the callee allocated through alloc.
func Callee(mem wasmbridge.Memory, alloc wasmbridge.Allocator, ptr, length uint32) *Buffer {
	return &Buffer{mem: mem, alloc: alloc, ptr: ptr, len: length, cap: length, owner: CalleeAllocated}
}

// Place allocates a block through alloc, copies data into it and returns it
// as CallerOwned: the side that placed it frees it with Release once the
// call it was passed to has returned.
func Place(mem wasmbridge.Memory, alloc wasmbridge.Allocator, data []byte) (*Buffer, error) {
	size := uint32(len(data))
	if size == 0 {
		return &Buffer{mem: mem, owner: CallerOwned}, nil
	}
	ptr, err := alloc.Alloc(size, 1)
	if err != nil {
		return nil, errors.AllocationFailed(errors.PhaseBuffer, size, 1, err)
	}
	if err := mem.Write(ptr, data); err != nil {
		alloc.Free(ptr, size, 1)
		return nil, err
	}
	return &Buffer{mem: mem, alloc: alloc, ptr: ptr, len: size, cap: size, owner: CallerOwned}, nil
}

func usedAfterTransfer() error {
	return errors.New(errors.PhaseBuffer, errors.KindInvalidArgument).
		Detail("buffer used after transfer or release").
		Build()
}

// Ptr returns the span address. Zero means no buffer.
func (b *Buffer) Ptr() uint32 { return b.ptr }

// Len returns the number of valid bytes.
func (b *Buffer) Len() uint32 { return b.len }

// Cap returns the span capacity.
func (b *Buffer) Cap() uint32 { return b.cap }

// Owner returns the ownership tag.
func (b *Buffer) Owner() Owner { return b.owner }

// Valid reports whether the handle can still be used.
func (b *Buffer) Valid() bool { return b != nil && !b.dead }

// Transfer moves the span into a new handle and invalidates b.
func (b *Buffer) Transfer() (*Buffer, error) {
	if !b.Valid() {
		return nil, usedAfterTransfer()
	}
	next := *b
	b.dead = true
	return &next, nil
}

// View returns the bytes in place. The slice aliases linear memory and is
// only valid until the next call across the boundary.
func (b *Buffer) View() ([]byte, error) {
	if !b.Valid() {
		return nil, usedAfterTransfer()
	}
	if b.len == 0 {
		return nil, nil
	}
	return b.mem.Read(b.ptr, b.len)
}

// CopyOut copies the span into Go memory.
func (b *Buffer) CopyOut() ([]byte, error) {
	view, err := b.View()
	if err != nil || view == nil {
		return nil, err
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// Release frees the span through its allocator. Spans wrapped without an
// allocator are only invalidated. A second Release returns an error.
func (b *Buffer) Release() error {
	if !b.Valid() {
		return usedAfterTransfer()
	}
	b.dead = true
	if b.alloc != nil && b.ptr != 0 {
		b.alloc.Free(b.ptr, b.cap, 1)
	}
	return nil
}

// Fill overwrites the span from its start with single-buffer-out truncation
// against Cap and sets Len to the written length.
func (b *Buffer) Fill(data []byte) (uint32, bool, error) {
	if !b.Valid() {
		return 0, false, usedAfterTransfer()
	}
	n, truncated, err := WriteTruncated(b.mem, b.ptr, b.cap, data)
	if err != nil {
		return 0, false, err
	}
	b.len = n
	return n, truncated, nil
}

// WriteTruncated writes min(len(data), capacity) bytes at ptr and returns
// the written length. truncated is true when data did not fit.
func WriteTruncated(mem wasmbridge.Memory, ptr, capacity uint32, data []byte) (written uint32, truncated bool, err error) {
	n := uint32(len(data))
	if n > capacity {
		n = capacity
		truncated = true
	}
	if n == 0 {
		return 0, truncated, nil
	}
	if err := mem.Write(ptr, data[:n]); err != nil {
		return 0, false, err
	}
	return n, truncated, nil
}
