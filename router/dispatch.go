package router

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/buffer"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/exception"
	"github.com/wippyai/wasm-bridge/protocol"
)

// ProcessMessage decodes a request envelope, runs it and returns the
// encoded response envelope. The response is always well-formed; the status
// says whether the request succeeded.
func (r *Router) ProcessMessage(ctx context.Context, request []byte) ([]byte, errors.Status) {
	scratch := buffer.NewScratch(r.bytes)
	defer scratch.Release()
	status := r.Process(ctx, request, scratch)
	return append([]byte(nil), scratch.Bytes()...), status
}

// Process is ProcessMessage writing the response into out.
func (r *Router) Process(ctx context.Context, request []byte, out *buffer.Scratch) errors.Status {
	env := r.envelopes.Get()
	defer r.envelopes.Put(env)

	if err := env.Unmarshal(request); err != nil {
		return r.fail(out, env, err)
	}

	switch env.Kind {
	case protocol.KindStartBattle:
		var req protocol.StartBattle
		if err := req.Unmarshal(env.Payload); err != nil {
			return r.fail(out, env, err)
		}
		return r.respond(ctx, out, env, func() (protocol.BattleResult, error) {
			return r.battles.Execute(ctx, &req)
		})

	case protocol.KindBatchRequest:
		var req protocol.BatchBattleRequest
		if err := req.Unmarshal(env.Payload); err != nil {
			return r.fail(out, env, err)
		}
		resp, err := exception.Wrap(ctx, r.translator, func() (*protocol.BatchBattleResponse, error) {
			return r.battles.ExecuteBatch(ctx, &req), nil
		})
		if err != nil {
			return r.fail(out, env, err)
		}
		env.Reset()
		env.Kind = protocol.KindBatchResponse
		env.Payload = resp.Append(env.Payload)
		out.Encode(env.Append)
		return errors.StatusSuccess

	case protocol.KindBattleInput:
		var in protocol.BattleInput
		if err := in.Unmarshal(env.Payload); err != nil {
			return r.fail(out, env, err)
		}
		return r.respond(ctx, out, env, func() (protocol.BattleResult, error) {
			err := r.battles.ProcessInput(in.BattleID, in.TeamID, in.ActionType, in.ActionValue)
			return protocol.BattleResult{}, err
		})

	default:
		return r.fail(out, env, errors.InvalidArgument(errors.PhaseDispatch,
			fmt.Sprintf("unsupported message kind %v", env.Kind), int32(env.Kind)))
	}
}

// respond runs fn and encodes its outcome as a BattleResponse envelope.
// Failures are carried in the response code rather than an error envelope.
func (r *Router) respond(ctx context.Context, out *buffer.Scratch, env *protocol.Envelope, fn func() (protocol.BattleResult, error)) errors.Status {
	res, err := exception.Wrap(ctx, r.translator, fn)

	resp := r.responses.Get()
	defer r.responses.Put(resp)
	resp.Timestamp = r.now().UnixMilli()
	status := errors.StatusOf(err)
	resp.Code = int32(status)
	if err != nil {
		resp.Message = err.Error()
	} else if res.Winner != 0 {
		resp.Result = res.Append(resp.Result)
	}

	env.Reset()
	env.Kind = protocol.KindBattleResponse
	env.Payload = resp.Append(env.Payload)
	out.Encode(env.Append)
	return status
}

// fail writes an error envelope for err into out.
func (r *Router) fail(out *buffer.Scratch, env *protocol.Envelope, err error) errors.Status {
	status := errors.StatusOf(err)
	r.logger.Debug("request rejected", zap.Stringer("status", status), zap.Error(err))
	env.Reset()
	env.Kind = protocol.KindError
	env.Code = status
	env.Message = err.Error()
	out.Encode(env.Append)
	return status
}
