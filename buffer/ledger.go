package buffer

import (
	"fmt"
	"sync"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// Ledger records CalleeAllocated blocks handed to a remote caller so that
// the release entry point can check them before freeing.
type Ledger struct {
	alloc wasmbridge.Allocator
	live  map[uint32]uint32
	mu    sync.Mutex
}

// NewLedger creates a ledger that frees through alloc.
func NewLedger(alloc wasmbridge.Allocator) *Ledger {
	return &Ledger{alloc: alloc, live: make(map[uint32]uint32)}
}

// AllocOut is AllocOut with the resulting block recorded.
func (l *Ledger) AllocOut(mem wasmbridge.Memory, slots Slots, data []byte) (uint32, error) {
	ptr, err := AllocOut(mem, l.alloc, slots, data)
	if err != nil || ptr == 0 {
		return ptr, err
	}
	l.mu.Lock()
	l.live[ptr] = uint32(len(data))
	l.mu.Unlock()
	return ptr, nil
}

// Release frees a recorded block. Unknown addresses and repeated releases
// return NotFound; a length mismatch returns InvalidArgument.
func (l *Ledger) Release(ptr, length uint32) error {
	l.mu.Lock()
	size, ok := l.live[ptr]
	if !ok {
		l.mu.Unlock()
		return errors.NotFound(errors.PhaseBuffer, "buffer", fmt.Sprintf("%#x", ptr))
	}
	if size != length {
		l.mu.Unlock()
		return errors.InvalidArgument(errors.PhaseBuffer,
			fmt.Sprintf("release length %d does not match allocation %d", length, size), length)
	}
	delete(l.live, ptr)
	l.mu.Unlock()

	l.alloc.Free(ptr, size, 1)
	return nil
}

// Outstanding returns the number of unreleased blocks.
func (l *Ledger) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live)
}
