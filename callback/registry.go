// Package callback holds at most one remote-callable handle per named channel
// and invokes it synchronously.
//
// Invoke copies the handle out under the lock and releases the lock before
// calling across the boundary, so a handler may re-enter the registry (for
// example to replace itself) without deadlocking. Register is linearizable
// per channel: an Invoke that starts after Register(c, h2) has returned can
// only reach h2.
package callback

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/buffer"
	"github.com/wippyai/wasm-bridge/errors"
)

// Handle is a non-owning reference to a remote entry point and the peer
// whose memory it reads. The zero Handle is the empty variant.
type Handle struct {
	Fn   wasmbridge.Func
	Peer wasmbridge.Peer
	// Name is informational, usually the export name.
	Name string
}

// Empty reports whether h is the empty variant.
func (h Handle) Empty() bool { return h.Fn == nil }

// Outcome tells whether a handler was reached.
type Outcome uint8

const (
	NoHandler Outcome = iota
	Invoked
)

func (o Outcome) String() string {
	if o == Invoked {
		return "invoked"
	}
	return "no_handler"
}

// Result of an Invoke. Code is the i32 the remote handler returned, or
// StatusSuccess when it returns nothing.
type Result struct {
	Outcome Outcome
	Code    errors.Status
}

// Registry maps channel names to handles.
type Registry struct {
	handles map[string]Handle
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry. A nil logger disables logging.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{handles: make(map[string]Handle), logger: logger}
}

// Register replaces the handle for channel and returns the previous one.
// Registering the empty Handle clears the channel.
func (r *Registry) Register(channel string, h Handle) Handle {
	r.mu.Lock()
	prev := r.handles[channel]
	if h.Empty() {
		delete(r.handles, channel)
	} else {
		r.handles[channel] = h
	}
	r.mu.Unlock()

	r.logger.Debug("callback registered",
		zap.String("channel", channel),
		zap.String("handle", h.Name),
		zap.Bool("cleared", h.Empty()))
	return prev
}

// Lookup returns a copy of the handle registered for channel.
func (r *Registry) Lookup(channel string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[channel]
	return h, ok
}

// IsRegistered reports whether channel has a handle.
func (r *Registry) IsRegistered(channel string) bool {
	_, ok := r.Lookup(channel)
	return ok
}

// Channels returns the registered channel names, sorted.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.handles))
	for name := range r.handles {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Invoke calls the handle for channel with payload as (ptr, len) in the
// handle's peer memory. The payload block is caller-owned: it is freed as
// soon as the handler returns, so the handler must copy what it keeps.
// An empty channel yields NoHandler and makes no call.
func (r *Registry) Invoke(ctx context.Context, channel string, payload []byte) (Result, error) {
	h, ok := r.Lookup(channel)
	if !ok {
		r.logger.Debug("no handler for channel", zap.String("channel", channel))
		return Result{Outcome: NoHandler}, nil
	}
	return Call(ctx, h, payload)
}

// Call invokes h directly with payload placed in its peer's memory.
func Call(ctx context.Context, h Handle, payload []byte) (Result, error) {
	if h.Empty() {
		return Result{Outcome: NoHandler}, nil
	}

	var ptr, length uint32
	if len(payload) > 0 {
		if h.Peer == nil {
			return Result{}, errors.New(errors.PhaseCallback, errors.KindInvalidArgument).
				Detail("handle %q has no peer memory for a %d byte payload", h.Name, len(payload)).
				Build()
		}
		buf, err := buffer.Place(h.Peer.Memory(), h.Peer.Allocator(), payload)
		if err != nil {
			return Result{}, err
		}
		defer buf.Release()
		ptr, length = buf.Ptr(), buf.Len()
	}

	results, err := h.Fn.Call(ctx, uint64(ptr), uint64(length))
	if err != nil {
		return Result{}, errors.Wrap(errors.PhaseCallback, errors.KindInternal, err,
			fmt.Sprintf("handler %q failed", h.Name))
	}

	res := Result{Outcome: Invoked}
	if len(results) > 0 {
		res.Code = errors.Status(api.DecodeI32(results[0]))
	}
	return res, nil
}
