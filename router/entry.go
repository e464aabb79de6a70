package router

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/battle"
	"github.com/wippyai/wasm-bridge/buffer"
	"github.com/wippyai/wasm-bridge/callback"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/exception"
	"github.com/wippyai/wasm-bridge/protocol"
)

// guard runs fn under the exception translator.
func (r *Router) guard(ctx context.Context, fn func() error) errors.Status {
	_, err := exception.Wrap(ctx, r.translator, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return errors.StatusOf(err)
}

func resolveExport(peer wasmbridge.Peer, export string) (callback.Handle, error) {
	if export == "" {
		return callback.Handle{}, nil
	}
	if peer == nil {
		return callback.Handle{}, errors.Unavailable(errors.PhaseDispatch, "peer")
	}
	fn := peer.Export(export)
	if fn == nil {
		return callback.Handle{}, errors.NotFound(errors.PhaseCallback, "export", export)
	}
	return callback.Handle{Fn: fn, Peer: peer, Name: export}, nil
}

// RegisterCallback binds channel to the export of peer. An empty export
// clears the channel.
func (r *Router) RegisterCallback(ctx context.Context, peer wasmbridge.Peer, channel, export string) errors.Status {
	return r.guard(ctx, func() error {
		if channel == "" {
			return errors.InvalidArgument(errors.PhaseCallback, "empty channel name", channel)
		}
		h, err := resolveExport(peer, export)
		if err != nil {
			return err
		}
		r.registry.Register(channel, h)
		return nil
	})
}

// Notify invokes the handler of channel with payload. An empty channel is a
// no-op and reports success; otherwise the handler's status is returned.
func (r *Router) Notify(ctx context.Context, channel string, payload []byte) errors.Status {
	var code errors.Status
	status := r.guard(ctx, func() error {
		res, err := r.registry.Invoke(ctx, channel, payload)
		code = res.Code
		return err
	})
	if !status.OK() {
		return status
	}
	return code
}

// LoadResource asks the loader channel for name.
func (r *Router) LoadResource(ctx context.Context, name string) (errors.Status, []byte) {
	var data []byte
	status := r.guard(ctx, func() error {
		var err error
		data, err = r.bridge.Load(ctx, name)
		return err
	})
	if !status.OK() {
		return status, nil
	}
	return status, data
}

// loadResourceOut is LoadResource with the data handed to peer through
// double-indirection slots. The block stays recorded until release_buffer.
func (r *Router) loadResourceOut(ctx context.Context, peer wasmbridge.Peer, name string, slots buffer.Slots) errors.Status {
	mem := peer.Memory()
	status, data := r.LoadResource(ctx, name)
	if !status.OK() {
		if err := slots.Clear(mem); err != nil {
			return errors.StatusOf(err)
		}
		return status
	}
	if _, err := r.ledger(peer).AllocOut(mem, slots, data); err != nil {
		_ = slots.Clear(mem)
		return errors.StatusOf(err)
	}
	return errors.StatusSuccess
}

// ReleaseBuffer frees a block handed out by load_resource.
func (r *Router) ReleaseBuffer(peer wasmbridge.Peer, ptr, length uint32) errors.Status {
	if peer == nil {
		return errors.StatusUnavailable
	}
	return errors.StatusOf(r.ledger(peer).Release(ptr, length))
}

// LoadConfig loads name through the loader channel as TOML battle settings
// and applies them.
func (r *Router) LoadConfig(ctx context.Context, name string) errors.Status {
	return r.guard(ctx, func() error {
		data, err := r.bridge.Load(ctx, name)
		if err != nil {
			return err
		}
		s, err := battle.ParseSettings(data, r.battles.Settings())
		if err != nil {
			return err
		}
		return r.battles.Configure(s)
	})
}

// InitExceptionContext arms the translator with a scratch buffer in peer's
// memory. notify names an export of peer called after each report; it may
// be empty. A zero capacity disarms.
func (r *Router) InitExceptionContext(ctx context.Context, peer wasmbridge.Peer, notify string, ptr, capacity uint32) errors.Status {
	if peer == nil {
		return errors.StatusUnavailable
	}
	h, err := resolveExport(peer, notify)
	if err != nil {
		return errors.StatusOf(err)
	}
	if capacity > 0 {
		if _, err := peer.Memory().Read(ptr, capacity); err != nil {
			return errors.StatusOf(err)
		}
	}
	if err := r.translator.Arm(h, buffer.Caller(peer.Memory(), ptr, 0, capacity)); err != nil {
		return errors.StatusOf(err)
	}
	r.mu.Lock()
	r.faultPeer = peer
	r.mu.Unlock()
	return errors.StatusSuccess
}

// CreateInstance starts a battle instance.
func (r *Router) CreateInstance(ctx context.Context, id, sideA, sideB uint32) errors.Status {
	return r.guard(ctx, func() error { return r.battles.Create(id, sideA, sideB) })
}

// DestroyInstance removes a battle instance.
func (r *Router) DestroyInstance(ctx context.Context, id uint32) errors.Status {
	return r.guard(ctx, func() error { return r.battles.Destroy(id) })
}

// Tick advances every running instance and returns how many advanced.
func (r *Router) Tick(ctx context.Context) int32 {
	var n int
	status := r.guard(ctx, func() error {
		n = r.battles.Tick(ctx)
		return nil
	})
	if !status.OK() {
		return int32(status)
	}
	return int32(n)
}

// InstanceCount returns the number of instances.
func (r *Router) InstanceCount() int32 { return int32(r.battles.Count()) }

// ProcessInput applies a player action.
func (r *Router) ProcessInput(ctx context.Context, id, team uint32, action uint8, value int32) errors.Status {
	return r.guard(ctx, func() error {
		return r.battles.ProcessInput(id, team, uint32(action), value)
	})
}

// ProcessInputMessage applies a BattleInput carried in an envelope.
func (r *Router) ProcessInputMessage(ctx context.Context, message []byte) errors.Status {
	return r.guard(ctx, func() error {
		env := r.envelopes.Get()
		defer r.envelopes.Put(env)
		if err := env.Unmarshal(message); err != nil {
			return err
		}
		if env.Kind != protocol.KindBattleInput {
			return errors.InvalidArgument(errors.PhaseDispatch,
				fmt.Sprintf("expected %v envelope, got %v", protocol.KindBattleInput, env.Kind), int32(env.Kind))
		}
		var in protocol.BattleInput
		if err := in.Unmarshal(env.Payload); err != nil {
			return err
		}
		return r.battles.ProcessInput(in.BattleID, in.TeamID, in.ActionType, in.ActionValue)
	})
}

// RaiseFault reports message through the exception translator as if a
// domain operation had failed with it.
func (r *Router) RaiseFault(ctx context.Context, message string) errors.Status {
	return r.guard(ctx, func() error {
		return errors.Internal(errors.PhaseDomain, message, nil)
	})
}

// SetLogLevel changes the log level. Levels outside [0, 4] are rejected.
func (r *Router) SetLogLevel(level int32) errors.Status {
	if err := r.levels.Set(level); err != nil {
		return errors.StatusOf(err)
	}
	r.logger.Info("log level changed", zap.Stringer("level", r.levels.Get()))
	return errors.StatusSuccess
}

// GetLogLevel returns the current log level.
func (r *Router) GetLogLevel() int32 { return int32(r.levels.Get()) }
