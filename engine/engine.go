package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/router"
)

// HostModule is the import module name guests link against.
const HostModule = "wasm-bridge"

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// EnableWASI instantiates wasi_snapshot_preview1 so that guests built
	// by TinyGo or wasi-sdk can link.
	EnableWASI bool
}

// Engine owns a wazero runtime with the host module instantiated.
type Engine struct {
	runtime wazero.Runtime
	router  *router.Router
	peers   map[string]*GuestPeer
	modules map[api.Module]*GuestPeer
	mu      sync.RWMutex
}

// New creates a runtime and instantiates the host module for r.
func New(ctx context.Context, r *router.Router, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	e := &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		router:  r,
		peers:   make(map[string]*GuestPeer),
		modules: make(map[api.Module]*GuestPeer),
	}

	if cfg != nil && cfg.EnableWASI {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
			_ = e.runtime.Close(ctx)
			return nil, errors.Wrap(errors.PhaseHost, errors.KindInternal, err, "instantiate WASI")
		}
	}
	if err := e.instantiateHost(ctx); err != nil {
		_ = e.runtime.Close(ctx)
		return nil, err
	}
	return e, nil
}

func (e *Engine) instantiateHost(ctx context.Context) error {
	builder := e.runtime.NewHostModuleBuilder(HostModule)
	for _, entry := range router.Catalogue() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(e.hostFunc(entry), entry.ParamTypes(), entry.ResultTypes()).
			WithName(entry.Name).
			WithParameterNames(paramNames(entry)...).
			Export(entry.Name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.Wrap(errors.PhaseHost, errors.KindInternal, err, "instantiate host module")
	}
	Logger().Debug("host module instantiated", zap.String("module", HostModule))
	return nil
}

// paramNames names each flattened parameter; strings and lists contribute
// a -ptr and -len pair.
func paramNames(entry router.EntryPoint) []string {
	var names []string
	for _, p := range entry.Params {
		flat := router.FlatTypes(p.Type)
		if len(flat) == 2 {
			names = append(names, p.Name+"-ptr", p.Name+"-len")
			continue
		}
		for range flat {
			names = append(names, p.Name)
		}
	}
	return names
}

func (e *Engine) hostFunc(entry router.EntryPoint) api.GoModuleFunc {
	n := len(entry.ParamTypes())
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		peer := e.peerFor(ctx, mod)
		stack[0] = api.EncodeI32(entry.Invoke(ctx, e.router, peer, stack[:n]))
	}
}

// peerFor resolves the calling module to a peer. A caller without memory
// falls back to the router's attached peer.
func (e *Engine) peerFor(ctx context.Context, mod api.Module) wasmbridge.Peer {
	if mod == nil || mod.Memory() == nil {
		return e.router.Peer()
	}
	p, err := e.PeerOf(mod)
	if err != nil {
		return e.router.Peer()
	}
	p.alloc.SetContext(ctx)
	return p
}

// PeerOf returns the peer for mod, wrapping it on first use. The same
// module always yields the same peer, so router state keyed by peer
// (outstanding load_resource blocks) survives across host calls.
func (e *Engine) PeerOf(mod api.Module) (*GuestPeer, error) {
	e.mu.RLock()
	p, ok := e.modules[mod]
	e.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := NewGuestPeer(mod)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.modules[mod]; ok {
		return existing, nil
	}
	e.sweepLocked()
	e.modules[mod] = p
	return p, nil
}

// sweepLocked drops peers whose modules were closed outside the engine.
func (e *Engine) sweepLocked() {
	for mod, p := range e.modules {
		if mod.IsClosed() {
			e.forgetLocked(p)
		}
	}
}

func (e *Engine) forgetLocked(p *GuestPeer) {
	delete(e.modules, p.mod)
	if e.peers[p.Name()] == p {
		delete(e.peers, p.Name())
	}
	e.router.Forget(p)
}

// Remove closes the guest and drops its router state.
func (e *Engine) Remove(ctx context.Context, p *GuestPeer) error {
	e.mu.Lock()
	e.forgetLocked(p)
	e.mu.Unlock()
	Logger().Debug("guest removed", zap.String("name", p.Name()))
	return p.Close(ctx)
}

// Instantiate compiles and instantiates a guest module under name.
func (e *Engine) Instantiate(ctx context.Context, name string, wasm []byte) (*GuestPeer, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.InvalidFormat(errors.PhaseHost, "compile module", err)
	}
	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name).WithStartFunctions("_initialize"))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindInternal, err, "instantiate module")
	}
	p, err := e.PeerOf(mod)
	if err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}

	e.mu.Lock()
	e.peers[name] = p
	e.mu.Unlock()
	Logger().Debug("guest instantiated",
		zap.String("name", name),
		zap.Bool("allocator", p.alloc.Available()))
	return p, nil
}

// Peer returns the guest instantiated under name.
func (e *Engine) Peer(name string) (*GuestPeer, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.peers[name]
	return p, ok
}

// Runtime returns the underlying wazero runtime.
func (e *Engine) Runtime() wazero.Runtime { return e.runtime }

// Close closes every module and the runtime.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	for _, p := range e.modules {
		e.router.Forget(p)
	}
	e.peers = make(map[string]*GuestPeer)
	e.modules = make(map[api.Module]*GuestPeer)
	e.mu.Unlock()
	return e.runtime.Close(ctx)
}
