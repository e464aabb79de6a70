package linear

import (
	"sync"

	wasmbridge "github.com/wippyai/wasm-bridge"
)

// reserved keeps the low addresses out of the allocator so that 0 is never
// a valid buffer address.
const reserved = 1024

// Peer is an in-process stand-in for a guest runtime.
type Peer struct {
	mem     *Memory
	alloc   *Allocator
	exports map[string]wasmbridge.Func
	mu      sync.RWMutex
}

// NewPeer creates a peer with the given number of memory pages.
func NewPeer(pages uint32) *Peer {
	mem := NewMemory(pages)
	return &Peer{
		mem:     mem,
		alloc:   NewAllocator(reserved, mem.Size()),
		exports: make(map[string]wasmbridge.Func),
	}
}

// Memory implements wasmbridge.Peer.
func (p *Peer) Memory() wasmbridge.Memory { return p.mem }

// Allocator implements wasmbridge.Peer.
func (p *Peer) Allocator() wasmbridge.Allocator { return p.alloc }

// Export implements wasmbridge.Peer.
func (p *Peer) Export(name string) wasmbridge.Func {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn, ok := p.exports[name]
	if !ok {
		return nil
	}
	return fn
}

// SetExport publishes fn under name. A nil fn removes the export.
func (p *Peer) SetExport(name string, fn wasmbridge.Func) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fn == nil {
		delete(p.exports, name)
		return
	}
	p.exports[name] = fn
}

// Linear returns the concrete memory.
func (p *Peer) Linear() *Memory { return p.mem }

// Heap returns the concrete allocator.
func (p *Peer) Heap() *Allocator { return p.alloc }

// Put allocates a block in the peer's memory and copies data into it.
// The caller owns the block and frees it with Allocator().Free.
func (p *Peer) Put(data []byte) (ptr, length uint32, err error) {
	ptr, err = p.alloc.Alloc(uint32(len(data)), 1)
	if err != nil {
		return 0, 0, err
	}
	if err := p.mem.Write(ptr, data); err != nil {
		p.alloc.Free(ptr, uint32(len(data)), 1)
		return 0, 0, err
	}
	return ptr, uint32(len(data)), nil
}

// Get copies length bytes at ptr out of the peer's memory.
func (p *Peer) Get(ptr, length uint32) ([]byte, error) {
	view, err := p.mem.Read(ptr, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}
