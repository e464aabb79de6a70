package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// GuestPeer is a guest module instance seen from the host.
type GuestPeer struct {
	mod   api.Module
	mem   *Memory
	alloc *Allocator
}

// NewGuestPeer wraps mod. The module must define or export a memory.
func NewGuestPeer(mod api.Module) (*GuestPeer, error) {
	mem := mod.Memory()
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseHost, "memory of module", mod.Name())
	}
	return &GuestPeer{
		mod:   mod,
		mem:   WrapMemory(mem),
		alloc: WrapAllocator(mod),
	}, nil
}

// Name returns the module name.
func (p *GuestPeer) Name() string { return p.mod.Name() }

// Module returns the wazero module.
func (p *GuestPeer) Module() api.Module { return p.mod }

// Memory implements wasmbridge.Peer.
func (p *GuestPeer) Memory() wasmbridge.Memory { return p.mem }

// Allocator implements wasmbridge.Peer.
func (p *GuestPeer) Allocator() wasmbridge.Allocator { return p.alloc }

// Export implements wasmbridge.Peer.
func (p *GuestPeer) Export(name string) wasmbridge.Func {
	fn := p.mod.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	return fn
}

// Close closes the module.
func (p *GuestPeer) Close(ctx context.Context) error {
	return p.mod.Close(ctx)
}
