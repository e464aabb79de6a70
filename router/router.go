// Package router exposes the boundary entry points.
//
// A Router is built once from a config.Config and owns every piece of
// shared state: the callback registry, the exception translator, the
// indirection bridge, the buffer pools and the battle manager. Nothing is
// kept in package variables.
//
// Each entry point exists twice: as a typed Go method (RegisterCallback,
// ProcessMessage, ...) and as a catalogue entry that decodes flat core
// values from a peer's memory. The catalogue carries WIT signatures so the
// wazero host module and the console are generated from the same table.
//
// Channels used by the router:
//
//	battle.notify     receives encoded protocol.Notification records
//	resource.loader   serves load_resource and load_config
package router

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/battle"
	"github.com/wippyai/wasm-bridge/buffer"
	"github.com/wippyai/wasm-bridge/callback"
	"github.com/wippyai/wasm-bridge/config"
	"github.com/wippyai/wasm-bridge/exception"
	"github.com/wippyai/wasm-bridge/indirection"
	"github.com/wippyai/wasm-bridge/logging"
	"github.com/wippyai/wasm-bridge/pool"
	"github.com/wippyai/wasm-bridge/protocol"
	"github.com/wippyai/wasm-bridge/resource"
)

// NotifyChannel receives battle notifications.
const NotifyChannel = "battle.notify"

// Option configures a Router.
type Option func(*options)

type options struct {
	logger *zap.Logger
	output io.Writer
	source indirection.Source
	now    func() time.Time
}

// WithLogger replaces the logger built from the configured level.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithOutput sets where the default logger writes. Defaults to stderr.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithSource serves the loader channel from src instead of the configured
// resource directory.
func WithSource(src indirection.Source) Option {
	return func(o *options) { o.source = src }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Router is the context object threaded through every entry point.
type Router struct {
	cfg        config.Config
	logger     *zap.Logger
	levels     *logging.Controller
	registry   *callback.Registry
	translator *exception.Translator
	bridge     *indirection.Bridge
	battles    *battle.Manager
	source     indirection.Source
	files      *resource.FileSource
	stopWatch  func() error
	now        func() time.Time

	bytes     *pool.Bytes
	envelopes *pool.Pool[*protocol.Envelope]
	responses *pool.Pool[*protocol.BattleResponse]

	peer      wasmbridge.Peer
	faultPeer wasmbridge.Peer
	ledgers   map[wasmbridge.Peer]*buffer.Ledger
	mu        sync.Mutex
}

// New builds a Router from a validated configuration.
func New(cfg config.Config, opts ...Option) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{output: os.Stderr, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	levels := logging.NewController(cfg.Level())
	logger := o.logger
	if logger == nil {
		logger = logging.New(levels, o.output)
	}

	r := &Router{
		cfg:        cfg,
		logger:     logger,
		levels:     levels,
		registry:   callback.NewRegistry(logger.Named("callback")),
		translator: exception.NewTranslator(logger.Named("exception")),
		now:        o.now,
		source:     o.source,
		ledgers:    make(map[wasmbridge.Peer]*buffer.Ledger),
		bytes:      pool.NewBytes(cfg.BytePoolSize, int(cfg.SmallBufferSize), int(cfg.LargeBufferSize)),
		envelopes: pool.New(cfg.RecordPoolSize,
			func() *protocol.Envelope { return &protocol.Envelope{} },
			func(e *protocol.Envelope) *protocol.Envelope { e.Reset(); return e }),
		responses: pool.New(cfg.RecordPoolSize,
			func() *protocol.BattleResponse { return &protocol.BattleResponse{} },
			func(b *protocol.BattleResponse) *protocol.BattleResponse { b.Reset(); return b }),
	}
	r.bridge = indirection.New(r.registry, indirection.DefaultChannel, logger.Named("indirection"))

	battleOpts := []battle.Option{
		battle.WithLogger(logger.Named("battle")),
		battle.WithSettings(cfg.Battle),
		battle.WithRecordPool(cfg.RecordPoolSize),
		battle.WithClock(o.now),
		battle.WithNotifier(r.publish),
	}
	if cfg.Seed != 0 {
		battleOpts = append(battleOpts, battle.WithSeed(cfg.Seed))
	}
	r.battles = battle.NewManager(battleOpts...)

	if r.source == nil && cfg.ResourceDir != "" {
		files, err := resource.NewFileSource(cfg.ResourceDir, cfg.ResourceCacheSize, logger.Named("resource"))
		if err != nil {
			return nil, err
		}
		r.files, r.source = files, files
		if cfg.WatchResources {
			stop, err := files.Watch()
			if err != nil {
				return nil, err
			}
			r.stopWatch = stop
		}
	}
	return r, nil
}

// Close stops the resource watcher.
func (r *Router) Close() error {
	if r.stopWatch != nil {
		return r.stopWatch()
	}
	return nil
}

// Attach makes peer the default peer for calls made without one and, when
// a Source is configured, serves it on the loader channel from peer's
// memory.
func (r *Router) Attach(peer wasmbridge.Peer) {
	r.mu.Lock()
	r.peer = peer
	r.mu.Unlock()

	if r.source != nil {
		r.registry.Register(indirection.DefaultChannel, callback.Handle{
			Fn:   indirection.Serve(peer, r.source),
			Peer: peer,
			Name: "host.source",
		})
	}
	r.logger.Debug("peer attached")
}

// Peer returns the attached peer, or nil.
func (r *Router) Peer() wasmbridge.Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peer
}

func (r *Router) ledger(peer wasmbridge.Peer) *buffer.Ledger {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[peer]
	if !ok {
		l = buffer.NewLedger(peer.Allocator())
		r.ledgers[peer] = l
	}
	return l
}

// Forget drops everything the router holds for peer: its outstanding
// load_resource blocks, channels bound to its exports, a fault buffer in
// its memory and, if attached, the attachment. Call it when the peer's
// module is closed.
func (r *Router) Forget(peer wasmbridge.Peer) {
	r.mu.Lock()
	delete(r.ledgers, peer)
	if r.peer == peer {
		r.peer = nil
	}
	disarm := r.faultPeer == peer
	if disarm {
		r.faultPeer = nil
	}
	r.mu.Unlock()

	if disarm {
		r.translator.Disarm()
	}
	for _, ch := range r.registry.Channels() {
		if h, ok := r.registry.Lookup(ch); ok && h.Peer == peer {
			r.registry.Register(ch, callback.Handle{})
		}
	}
	r.logger.Debug("peer forgotten")
}

// Outstanding returns how many load_resource blocks peer has not released.
func (r *Router) Outstanding(peer wasmbridge.Peer) int {
	return r.ledger(peer).Outstanding()
}

// Config returns the configuration the router was built from.
func (r *Router) Config() config.Config { return r.cfg }

// Logger returns the router's logger.
func (r *Router) Logger() *zap.Logger { return r.logger }

// Registry returns the callback registry.
func (r *Router) Registry() *callback.Registry { return r.registry }

// Translator returns the exception translator.
func (r *Router) Translator() *exception.Translator { return r.translator }

// Battles returns the battle manager.
func (r *Router) Battles() *battle.Manager { return r.battles }

// Files returns the file source, or nil when none is configured.
func (r *Router) Files() *resource.FileSource { return r.files }

// publish pushes a notification through the notify channel. The record is
// copied out of pooled memory into the handler's peer before the call.
func (r *Router) publish(ctx context.Context, n *protocol.Notification) {
	scratch := buffer.NewScratch(r.bytes)
	defer scratch.Release()
	scratch.Encode(n.Append)

	res, err := r.registry.Invoke(ctx, NotifyChannel, scratch.Bytes())
	if err != nil {
		r.logger.Warn("notification not delivered",
			zap.Uint32("battle_id", n.BattleID),
			zap.Stringer("type", n.Type),
			zap.Error(err))
		return
	}
	if res.Outcome == callback.Invoked && !res.Code.OK() {
		r.logger.Debug("notification handler returned failure",
			zap.Uint32("battle_id", n.BattleID),
			zap.Stringer("code", res.Code))
	}
}
