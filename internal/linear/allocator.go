package linear

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wippyai/wasm-bridge/errors"
)

type block struct {
	ptr  uint32
	size uint32
}

// Allocator is a first-fit allocator over the address range [base, limit).
// It only does address bookkeeping, so it works with any Memory.
type Allocator struct {
	used  []block // sorted by ptr
	base  uint32
	limit uint32
	mu    sync.Mutex
}

// NewAllocator manages [base, limit). base must be non-zero.
func NewAllocator(base, limit uint32) *Allocator {
	if base == 0 {
		base = 8
	}
	return &Allocator{base: base, limit: limit}
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}

// Alloc reserves size bytes aligned to align (a power of two).
func (a *Allocator) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.InvalidArgument(errors.PhaseBuffer, fmt.Sprintf("alignment %d is not a power of two", align), align)
	}
	if size == 0 {
		size = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cursor := a.base
	for i, b := range a.used {
		p := alignUp(cursor, align)
		if uint64(p)+uint64(size) <= uint64(b.ptr) {
			a.used = append(a.used, block{})
			copy(a.used[i+1:], a.used[i:])
			a.used[i] = block{ptr: p, size: size}
			return p, nil
		}
		cursor = b.ptr + b.size
	}

	p := alignUp(cursor, align)
	if uint64(p)+uint64(size) > uint64(a.limit) {
		return 0, errors.AllocationFailed(errors.PhaseBuffer, size, align, nil)
	}
	a.used = append(a.used, block{ptr: p, size: size})
	return p, nil
}

// Free releases the block starting at ptr. Unknown pointers are ignored.
func (a *Allocator) Free(ptr, size, align uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := sort.Search(len(a.used), func(i int) bool { return a.used[i].ptr >= ptr })
	if i < len(a.used) && a.used[i].ptr == ptr {
		a.used = append(a.used[:i], a.used[i+1:]...)
	}
}

// Live returns the number of outstanding allocations.
func (a *Allocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.used)
}

// Owns reports whether ptr is the start of a live allocation.
func (a *Allocator) Owns(ptr uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := sort.Search(len(a.used), func(i int) bool { return a.used[i].ptr >= ptr })
	return i < len(a.used) && a.used[i].ptr == ptr
}
