package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/config"
	bridgeerrors "github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/linear"
	"github.com/wippyai/wasm-bridge/protocol"
	"github.com/wippyai/wasm-bridge/router"
)

// Out-parameter names the session provisions when left empty.
const (
	paramOut    = "out"
	paramOutLen = "out-len"
	paramOutPtr = "out-ptr"
	paramBuffer = "buffer"
)

// session drives a router over an in-process loopback peer.
type session struct {
	router *router.Router
	peer   *linear.Peer
	events []string
	mu     sync.Mutex
}

func newSession(cfg config.Config, opts ...router.Option) (*session, error) {
	r, err := router.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	s := &session{router: r, peer: linear.NewPeer(16)}
	r.Attach(s.peer)
	s.peer.SetExport("on_notify", s.recorder("notify"))
	s.peer.SetExport("on_fault", s.recorder("fault"))
	return s, nil
}

func (s *session) Close() error { return s.router.Close() }

// recorder is a loopback export that records each call. Payloads are
// decoded as notifications; calls without one report the last fault.
func (s *session) recorder(label string) wasmbridge.Func {
	return wasmbridge.FuncOf(func(ctx context.Context, params ...uint64) ([]uint64, error) {
		event := label
		if len(params) == 2 && params[1] > 0 {
			data, err := s.peer.Get(api.DecodeU32(params[0]), api.DecodeU32(params[1]))
			if err != nil {
				return nil, err
			}
			var n protocol.Notification
			if err := n.Unmarshal(data); err == nil {
				event = fmt.Sprintf("%s: battle %d %v", label, n.BattleID, n.Type)
			}
		} else if rep, ok := s.router.Translator().Last(); ok {
			event = fmt.Sprintf("%s: %s: %s", label, rep.Kind, rep.Message)
		}
		s.mu.Lock()
		s.events = append(s.events, event)
		s.mu.Unlock()
		return []uint64{0}, nil
	})
}

// drain returns and clears the recorded events.
func (s *session) drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

// call is a prepared invocation with the out-parameters it provisioned.
type call struct {
	entry  router.EntryPoint
	params []uint64
	out    map[string]uint32
	blocks [][2]uint32
}

func witTypeStr(t wit.Type) string {
	switch v := t.(type) {
	case wit.U8:
		return "u8"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if _, ok := v.Kind.(*wit.List); ok {
			return "list<u8>"
		}
		if v.Name != nil {
			return *v.Name
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}

func formatEntry(e router.EntryPoint) string {
	var params []string
	for _, p := range e.Params {
		params = append(params, p.Name+": "+witTypeStr(p.Type))
	}
	return e.Name + "(" + strings.Join(params, ", ") + ") -> s32"
}

// decodeBytes reads a list<u8> argument: hex when it parses as hex,
// otherwise the literal text.
func decodeBytes(v string) []byte {
	if b, err := hex.DecodeString(strings.TrimPrefix(v, "0x")); err == nil && v != "" {
		return b
	}
	return []byte(v)
}

func (s *session) put(data []byte, c *call) (uint32, uint32, error) {
	if len(data) == 0 {
		return 0, 0, nil
	}
	ptr, n, err := s.peer.Put(data)
	if err != nil {
		return 0, 0, err
	}
	c.blocks = append(c.blocks, [2]uint32{ptr, n})
	return ptr, n, nil
}

func (s *session) alloc(size, align uint32, c *call) (uint32, error) {
	ptr, err := s.peer.Heap().Alloc(size, align)
	if err != nil {
		return 0, err
	}
	c.blocks = append(c.blocks, [2]uint32{ptr, size})
	return ptr, nil
}

// prepare converts text arguments to flat params. Strings and lists are
// copied into the peer; empty out-parameters are allocated.
func (s *session) prepare(e router.EntryPoint, values []string) (*call, error) {
	if len(values) != len(e.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", e.Name, len(e.Params), len(values))
	}
	c := &call{entry: e, out: make(map[string]uint32)}
	small := s.router.Config().SmallBufferSize

	for i, p := range e.Params {
		v := strings.TrimSpace(values[i])
		switch t := p.Type.(type) {
		case wit.String:
			ptr, n, err := s.put([]byte(v), c)
			if err != nil {
				return nil, err
			}
			c.params = append(c.params, uint64(ptr), uint64(n))
		case *wit.TypeDef:
			ptr, n, err := s.put(decodeBytes(v), c)
			if err != nil {
				return nil, err
			}
			c.params = append(c.params, uint64(ptr), uint64(n))
		case wit.U8, wit.U32:
			if v == "" {
				ptr, err := s.provision(p.Name, small, c)
				if err != nil {
					return nil, err
				}
				c.params = append(c.params, uint64(ptr))
				continue
			}
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.Name, err)
			}
			c.params = append(c.params, api.EncodeU32(uint32(n)))
		case wit.S32:
			n, err := strconv.ParseInt(v, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.Name, err)
			}
			c.params = append(c.params, api.EncodeI32(int32(n)))
		default:
			return nil, fmt.Errorf("%s: unsupported type %s", p.Name, witTypeStr(t))
		}
	}
	return c, nil
}

func (s *session) provision(name string, small uint32, c *call) (uint32, error) {
	var ptr uint32
	var err error
	switch name {
	case paramOut:
		ptr, err = s.alloc(small, 1, c)
	case paramBuffer:
		ptr, err = s.alloc(256, 1, c)
	case paramOutLen:
		if ptr, err = s.alloc(4, 4, c); err == nil {
			err = s.peer.Memory().WriteU32(ptr, small)
		}
	case paramOutPtr:
		ptr, err = s.alloc(4, 4, c)
	case "capacity":
		return 256, nil
	default:
		return 0, fmt.Errorf("%s: value required", name)
	}
	if err != nil {
		return 0, err
	}
	c.out[name] = ptr
	return ptr, nil
}

// run invokes c and renders the result with whatever its out-parameters
// received.
func (s *session) run(ctx context.Context, c *call) (string, error) {
	defer s.release(c)
	res, err := s.router.Call(ctx, s.peer, c.entry.Name, c.params...)
	if err != nil {
		return "", err
	}
	code := api.DecodeI32(res[0])

	var b strings.Builder
	switch c.entry.Name {
	case "tick", "instance_count", "get_log_level":
		fmt.Fprintf(&b, "%d", code)
	default:
		fmt.Fprintf(&b, "status %d (%s)", code, bridgeerrors.Status(code))
	}

	if out, ok := c.out[paramOut]; ok {
		n, err := s.peer.Memory().ReadU32(c.out[paramOutLen])
		if err == nil {
			data, _ := s.peer.Get(out, n)
			b.WriteString("\n")
			b.WriteString(describeEnvelope(data))
		}
	}
	if slot, ok := c.out[paramOutPtr]; ok {
		ptr, _ := s.peer.Memory().ReadU32(slot)
		n, _ := s.peer.Memory().ReadU32(c.out[paramOutLen])
		if ptr != 0 {
			data, _ := s.peer.Get(ptr, n)
			fmt.Fprintf(&b, "\n%d bytes: %s", n, data)
			s.router.ReleaseBuffer(s.peer, ptr, n)
		}
	}
	return b.String(), nil
}

func (s *session) release(c *call) {
	for _, blk := range c.blocks {
		if c.entry.Name == "init_exception_context" && blk[0] == c.out[paramBuffer] {
			// The translator keeps writing into its buffer.
			continue
		}
		s.peer.Heap().Free(blk[0], blk[1], 1)
	}
}

// describeEnvelope renders a response envelope in one line.
func describeEnvelope(data []byte) string {
	var env protocol.Envelope
	if err := env.Unmarshal(data); err != nil {
		return fmt.Sprintf("%d bytes (%v)", len(data), err)
	}
	switch env.Kind {
	case protocol.KindError:
		return fmt.Sprintf("error %s: %s", env.Code, env.Message)
	case protocol.KindBattleResponse:
		var resp protocol.BattleResponse
		if err := resp.Unmarshal(env.Payload); err != nil {
			return err.Error()
		}
		if resp.Code != 0 {
			return fmt.Sprintf("battle response %s: %s", bridgeerrors.Status(resp.Code), resp.Message)
		}
		var res protocol.BattleResult
		if err := res.Unmarshal(resp.Result); err != nil {
			return err.Error()
		}
		return fmt.Sprintf("battle response: winner %d loser %d score %d", res.Winner, res.Loser, res.Score)
	case protocol.KindBatchResponse:
		var resp protocol.BatchBattleResponse
		if err := resp.Unmarshal(env.Payload); err != nil {
			return err.Error()
		}
		return fmt.Sprintf("batch %s: %d succeeded, %d failed", resp.BatchID, resp.Success, resp.Failure)
	}
	return fmt.Sprintf("%v envelope, %d byte payload", env.Kind, len(env.Payload))
}
