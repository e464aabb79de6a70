package indirection

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/buffer"
	"github.com/wippyai/wasm-bridge/errors"
)

// Source produces named data.
type Source interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, name string) ([]byte, error)

// Load implements Source.
func (f SourceFunc) Load(ctx context.Context, name string) ([]byte, error) {
	return f(ctx, name)
}

// Serve returns a loader Func that answers from src. Names and slots live in
// peer's memory and result blocks are allocated with peer's allocator.
// On failure the slots are cleared and the error's status is returned.
func Serve(peer wasmbridge.Peer, src Source) wasmbridge.Func {
	return wasmbridge.FuncOf(func(ctx context.Context, params ...uint64) ([]uint64, error) {
		status := serve(ctx, peer, src, params)
		return []uint64{api.EncodeI32(int32(status))}, nil
	})
}

func serve(ctx context.Context, peer wasmbridge.Peer, src Source, params []uint64) errors.Status {
	if len(params) < 4 {
		return errors.StatusInvalidArgument
	}
	mem := peer.Memory()
	namePtr, nameLen := api.DecodeU32(params[0]), api.DecodeU32(params[1])
	slots := buffer.Slots{PtrAddr: api.DecodeU32(params[2]), LenAddr: api.DecodeU32(params[3])}

	raw, err := buffer.Caller(mem, namePtr, nameLen, nameLen).CopyOut()
	if err != nil {
		return errors.StatusOf(err)
	}
	data, err := src.Load(ctx, string(raw))
	if err != nil {
		_ = slots.Clear(mem)
		return errors.StatusOf(err)
	}
	if _, err := buffer.AllocOut(mem, peer.Allocator(), slots, data); err != nil {
		_ = slots.Clear(mem)
		return errors.StatusOf(err)
	}
	return errors.StatusSuccess
}
