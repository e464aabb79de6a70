package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
)

const (
	CabiRealloc = "cabi_realloc"
	CabiFree    = "cabi_free"

	// Legacy names from pre-standardization component model implementations
	legacyRealloc = "canonical_abi_realloc"
	legacyAlloc   = "allocate"
	simpleAlloc   = "alloc"
	legacyDealloc = "deallocate"
	simpleFree    = "free"
)

// Allocator calls a guest's allocation exports.
type Allocator struct {
	allocFn       api.Function
	freeFn        api.Function
	ctx           context.Context
	stackBuf      []uint64
	mu            sync.Mutex
	isSimpleAlloc bool
}

// WrapAllocator finds the allocation exports of mod. A module without any
// yields an Allocator whose Alloc fails with Unavailable.
func WrapAllocator(mod api.Module) *Allocator {
	a := &Allocator{ctx: context.Background(), stackBuf: make([]uint64, 4)}

	defs := mod.ExportedFunctionDefinitions()
	var allocDef api.FunctionDefinition
	for _, name := range []string{CabiRealloc, legacyRealloc, legacyAlloc, simpleAlloc} {
		if d, ok := defs[name]; ok {
			allocDef = d
			break
		}
	}
	if allocDef != nil {
		a.allocFn = mod.ExportedFunction(allocDef.Name())
		a.isSimpleAlloc = len(allocDef.ParamTypes()) < 4
	}

	for _, name := range []string{CabiFree, legacyDealloc, simpleFree} {
		if fn := mod.ExportedFunction(name); fn != nil {
			a.freeFn = fn
			break
		}
	}
	return a
}

// SetContext sets the context used for allocator calls.
func (a *Allocator) SetContext(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctx = ctx
}

// Available reports whether the guest exports an allocator.
func (a *Allocator) Available() bool { return a.allocFn != nil }

func (a *Allocator) Alloc(size, align uint32) (uint32, error) {
	if a.allocFn == nil {
		return 0, errors.Unavailable(errors.PhaseHost, CabiRealloc)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	if a.isSimpleAlloc {
		a.stackBuf[0] = uint64(size)
		err = a.allocFn.CallWithStack(a.ctx, a.stackBuf[:1])
	} else {
		a.stackBuf[0] = 0
		a.stackBuf[1] = 0
		a.stackBuf[2] = uint64(align)
		a.stackBuf[3] = uint64(size)
		err = a.allocFn.CallWithStack(a.ctx, a.stackBuf[:4])
	}
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseHost, size, align, err)
	}
	ptr := api.DecodeU32(a.stackBuf[0])
	if ptr == 0 && size > 0 {
		return 0, errors.AllocationFailed(errors.PhaseHost, size, align, nil)
	}
	return ptr, nil
}

func (a *Allocator) Free(ptr, size, align uint32) {
	if ptr == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	switch {
	case a.freeFn != nil:
		a.stackBuf[0] = uint64(ptr)
		a.stackBuf[1] = uint64(size)
		a.stackBuf[2] = uint64(align)
		n := len(a.freeFn.Definition().ParamTypes())
		if n > 3 {
			n = 3
		}
		err = a.freeFn.CallWithStack(a.ctx, a.stackBuf[:max(n, 1)])
	case a.allocFn != nil && !a.isSimpleAlloc:
		a.stackBuf[0] = uint64(ptr)
		a.stackBuf[1] = uint64(size)
		a.stackBuf[2] = uint64(align)
		a.stackBuf[3] = 0
		err = a.allocFn.CallWithStack(a.ctx, a.stackBuf[:4])
	default:
		return
	}
	if err != nil {
		Logger().Warn("guest free failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}
