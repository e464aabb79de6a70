// Package indirection implements the "ask the other side to produce named
// data" round trip over double-indirection out-parameters.
//
// The loader calling convention is
//
//	loader(namePtr, nameLen, outPtrPtr, outLenPtr) -> i32 status
//
// The callee allocates a dedicated block sized to the data, stores its
// address and length in the two slots and returns StatusSuccess. The caller
// copies the block out and releases it through the callee's allocator.
// Bridge is the calling side; Serve builds the callee side over a Source, so
// the loader can live on either side of the boundary.
package indirection

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/buffer"
	"github.com/wippyai/wasm-bridge/callback"
	"github.com/wippyai/wasm-bridge/errors"
)

// DefaultChannel is the channel the loader is registered under.
const DefaultChannel = "resource.loader"

// Bridge requests data through the loader registered on a channel.
type Bridge struct {
	registry *callback.Registry
	logger   *zap.Logger
	channel  string
}

// New creates a Bridge using channel on registry. An empty channel means
// DefaultChannel.
func New(registry *callback.Registry, channel string, logger *zap.Logger) *Bridge {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{registry: registry, channel: channel, logger: logger}
}

// Channel returns the loader channel name.
func (b *Bridge) Channel() string { return b.channel }

// Request returns the status and data for name. Data is nil unless the
// status is StatusSuccess.
func (b *Bridge) Request(ctx context.Context, name string) (errors.Status, []byte) {
	data, err := b.Load(ctx, name)
	if err != nil {
		return errors.StatusOf(err), nil
	}
	return errors.StatusSuccess, data
}

// Load is Request with the failure as a taxonomy error. It returns
// Unavailable without making a call when no loader is registered.
func (b *Bridge) Load(ctx context.Context, name string) ([]byte, error) {
	h, ok := b.registry.Lookup(b.channel)
	if !ok {
		return nil, errors.Unavailable(errors.PhaseIndirection, b.channel)
	}
	if h.Peer == nil {
		return nil, errors.New(errors.PhaseIndirection, errors.KindInvalidArgument).
			Detail("loader %q has no peer memory", h.Name).
			Build()
	}
	mem, alloc := h.Peer.Memory(), h.Peer.Allocator()

	// slots first, then the name
	args := make([]byte, buffer.SlotsSize+len(name))
	copy(args[buffer.SlotsSize:], name)
	block, err := buffer.Place(mem, alloc, args)
	if err != nil {
		return nil, err
	}
	defer block.Release()

	slots := buffer.Adjacent(block.Ptr())
	namePtr := block.Ptr() + buffer.SlotsSize

	results, err := h.Fn.Call(ctx,
		api.EncodeU32(namePtr), api.EncodeU32(uint32(len(name))),
		api.EncodeU32(slots.PtrAddr), api.EncodeU32(slots.LenAddr))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseIndirection, errors.KindInternal, err,
			fmt.Sprintf("loader %q failed", h.Name))
	}
	if len(results) > 0 {
		status := errors.Status(api.DecodeI32(results[0]))
		if err := errors.FromStatus(errors.PhaseIndirection, status, fmt.Sprintf("load %q", name)); err != nil {
			b.logger.Debug("loader returned failure",
				zap.String("name", name),
				zap.Stringer("status", status))
			return nil, err
		}
	}

	out, err := buffer.ReadOut(mem, alloc, slots)
	if err != nil {
		return nil, err
	}
	data, err := out.CopyOut()
	if rerr := out.Release(); err == nil {
		err = rerr
	}
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}

	b.logger.Debug("resource loaded", zap.String("name", name), zap.Int("bytes", len(data)))
	return data, nil
}
