package router

import (
	"context"
	"sort"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/buffer"
	"github.com/wippyai/wasm-bridge/errors"
)

// Param is a named entry point parameter.
type Param struct {
	Name string
	Type wit.Type
}

// EntryPoint describes one guest-visible function. Every entry point
// returns a single s32: a status, or a count for tick, instance_count and
// get_log_level.
type EntryPoint struct {
	Name   string
	Doc    string
	Params []Param
	call   func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32
}

// ParamTypes returns the flattened core parameter types.
func (e EntryPoint) ParamTypes() []api.ValueType {
	var types []api.ValueType
	for _, p := range e.Params {
		types = append(types, FlatTypes(p.Type)...)
	}
	return types
}

// ResultTypes returns the flattened core result types.
func (e EntryPoint) ResultTypes() []api.ValueType {
	return FlatTypes(wit.S32{})
}

// Invoke decodes params against peer's memory and runs the entry point.
// An arity mismatch or unreadable argument returns InvalidArgument without
// running it.
func (e EntryPoint) Invoke(ctx context.Context, r *Router, peer wasmbridge.Peer, params []uint64) int32 {
	if want := len(e.ParamTypes()); len(params) != want {
		r.logger.Warn("entry point arity mismatch",
			zap.String("name", e.Name),
			zap.Int("want", want),
			zap.Int("got", len(params)))
		return int32(errors.StatusInvalidArgument)
	}
	a := &args{params: params}
	if peer != nil {
		a.mem = peer.Memory()
	}
	code := e.call(ctx, r, peer, a)
	if a.err != nil {
		r.logger.Debug("entry point arguments rejected",
			zap.String("name", e.Name),
			zap.Error(a.err))
		return int32(errors.StatusOf(a.err))
	}
	return code
}

// FlatTypes lowers a WIT type to core value types.
func FlatTypes(t wit.Type) []api.ValueType {
	switch t := t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return []api.ValueType{api.ValueTypeI32}
	case wit.U64, wit.S64:
		return []api.ValueType{api.ValueTypeI64}
	case wit.F32:
		return []api.ValueType{api.ValueTypeF32}
	case wit.F64:
		return []api.ValueType{api.ValueTypeF64}
	case wit.String:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	case *wit.TypeDef:
		switch kind := t.Kind.(type) {
		case *wit.List:
			return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
		case *wit.Record:
			var types []api.ValueType
			for _, f := range kind.Fields {
				types = append(types, FlatTypes(f.Type)...)
			}
			return types
		case *wit.Tuple:
			var types []api.ValueType
			for _, elem := range kind.Types {
				types = append(types, FlatTypes(elem)...)
			}
			return types
		case *wit.Enum, *wit.Flags:
			return []api.ValueType{api.ValueTypeI32}
		}
	}
	return nil
}

// args decodes flat parameters in order. The first failure sticks.
type args struct {
	mem    wasmbridge.Memory
	err    error
	params []uint64
	i      int
}

func (a *args) next() uint64 {
	v := a.params[a.i]
	a.i++
	return v
}

func (a *args) u32() uint32 { return api.DecodeU32(a.next()) }

func (a *args) s32() int32 { return api.DecodeI32(a.next()) }

func (a *args) u8() uint8 { return uint8(api.DecodeU32(a.next())) }

func (a *args) bytes() []byte {
	ptr, length := a.u32(), a.u32()
	if a.err != nil || length == 0 {
		return nil
	}
	if a.mem == nil {
		a.err = errors.Unavailable(errors.PhaseDispatch, "peer memory")
		return nil
	}
	data, err := buffer.Caller(a.mem, ptr, length, length).CopyOut()
	if err != nil {
		a.err = err
		return nil
	}
	return data
}

func (a *args) str() string { return string(a.bytes()) }

var (
	witString = wit.String{}
	witU32    = wit.U32{}
	witBytes  = &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}
)

func i32(s errors.Status) int32 { return int32(s) }

// peerOrErr is the peer as needed by entry points that write into guest
// memory.
func peerOrErr(a *args, peer wasmbridge.Peer) bool {
	if peer == nil && a.err == nil {
		a.err = errors.Unavailable(errors.PhaseDispatch, "peer memory")
	}
	return a.err == nil
}

var entries = []EntryPoint{
	{
		Name:   "register_callback",
		Doc:    "bind a channel to a guest export; an empty export clears it",
		Params: []Param{{"channel", witString}, {"export", witString}},
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			ch, ex := a.str(), a.str()
			if a.err != nil {
				return 0
			}
			return i32(r.RegisterCallback(ctx, peer, ch, ex))
		},
	},
	{
		Name:   "notify",
		Doc:    "invoke the handler registered on a channel",
		Params: []Param{{"channel", witString}, {"payload", witBytes}},
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			ch, payload := a.str(), a.bytes()
			if a.err != nil {
				return 0
			}
			return i32(r.Notify(ctx, ch, payload))
		},
	},
	{
		Name:   "process_message",
		Doc:    "run an encoded request envelope; the response fits the small tier",
		Params: []Param{{"request", witBytes}, {"out", witU32}, {"out-len", witU32}},
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			return r.processRaw(ctx, peer, a, r.cfg.SmallBufferSize)
		},
	},
	{
		Name:   "process_batch",
		Doc:    "run an encoded request envelope; the response fits the large tier",
		Params: []Param{{"request", witBytes}, {"out", witU32}, {"out-len", witU32}},
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			return r.processRaw(ctx, peer, a, r.cfg.LargeBufferSize)
		},
	},
	{
		Name:   "load_resource",
		Doc:    "load a named resource into a host-allocated block; free it with release_buffer",
		Params: []Param{{"name", witString}, {"out-ptr", witU32}, {"out-len", witU32}},
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			name := a.str()
			slots := buffer.Slots{PtrAddr: a.u32(), LenAddr: a.u32()}
			if !peerOrErr(a, peer) {
				return 0
			}
			return i32(r.loadResourceOut(ctx, peer, name, slots))
		},
	},
	{
		Name:   "release_buffer",
		Doc:    "free a block returned by load_resource",
		Params: []Param{{"ptr", witU32}, {"len", witU32}},
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			ptr, length := a.u32(), a.u32()
			return i32(r.ReleaseBuffer(peer, ptr, length))
		},
	},
	{
		Name:   "load_config",
		Doc:    "load TOML battle settings through the loader channel",
		Params: []Param{{"name", witString}},
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			name := a.str()
			if a.err != nil {
				return 0
			}
			return i32(r.LoadConfig(ctx, name))
		},
	},
	{
		Name:   "init_exception_context",
		Doc:    "arm fault reporting with a guest buffer and notify export",
		Params: []Param{{"notify", witString}, {"buffer", witU32}, {"capacity", witU32}},
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			notify, ptr, capacity := a.str(), a.u32(), a.u32()
			if a.err != nil {
				return 0
			}
			return i32(r.InitExceptionContext(ctx, peer, notify, ptr, capacity))
		},
	},
	{
		Name:   "create_instance",
		Doc:    "start a battle instance",
		Params: []Param{{"id", witU32}, {"side-a", witU32}, {"side-b", witU32}},
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			return i32(r.CreateInstance(ctx, a.u32(), a.u32(), a.u32()))
		},
	},
	{
		Name:   "destroy_instance",
		Doc:    "remove a battle instance",
		Params: []Param{{"id", witU32}},
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			return i32(r.DestroyInstance(ctx, a.u32()))
		},
	},
	{
		Name: "tick",
		Doc:  "advance every running instance; returns how many advanced",
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			return r.Tick(ctx)
		},
	},
	{
		Name: "instance_count",
		Doc:  "number of battle instances",
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			return r.InstanceCount()
		},
	},
	{
		Name:   "process_input",
		Doc:    "apply an action: 0 attack, 1 defend, 2 skill",
		Params: []Param{{"id", witU32}, {"team", witU32}, {"action", wit.U8{}}, {"value", wit.S32{}}},
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			return i32(r.ProcessInput(ctx, a.u32(), a.u32(), a.u8(), a.s32()))
		},
	},
	{
		Name:   "process_input_message",
		Doc:    "apply an action carried in an encoded battle_input envelope",
		Params: []Param{{"input", witBytes}},
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			msg := a.bytes()
			if a.err != nil {
				return 0
			}
			return i32(r.ProcessInputMessage(ctx, msg))
		},
	},
	{
		Name:   "raise_fault",
		Doc:    "report a fault through the exception context",
		Params: []Param{{"message", witString}},
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			msg := a.str()
			if a.err != nil {
				return 0
			}
			return i32(r.RaiseFault(ctx, msg))
		},
	},
	{
		Name:   "set_log_level",
		Doc:    "0 debug, 1 info, 2 warn, 3 error, 4 none",
		Params: []Param{{"level", wit.S32{}}},
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			return i32(r.SetLogLevel(a.s32()))
		},
	},
	{
		Name: "get_log_level",
		Doc:  "current log level",
		call: func(ctx context.Context, r *Router, peer wasmbridge.Peer, a *args) int32 {
			return r.GetLogLevel()
		},
	},
}

var index = func() map[string]int {
	m := make(map[string]int, len(entries))
	for i, e := range entries {
		m[e.Name] = i
	}
	return m
}()

// Catalogue returns every entry point sorted by name.
func Catalogue() []EntryPoint {
	out := append([]EntryPoint(nil), entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the named entry point.
func Lookup(name string) (EntryPoint, bool) {
	i, ok := index[name]
	if !ok {
		return EntryPoint{}, false
	}
	return entries[i], true
}

// Call runs the named entry point with flat params on behalf of peer. A nil
// peer means the attached one.
func (r *Router) Call(ctx context.Context, peer wasmbridge.Peer, name string, params ...uint64) ([]uint64, error) {
	e, ok := Lookup(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseDispatch, "entry point", name)
	}
	if peer == nil {
		peer = r.Peer()
	}
	return []uint64{api.EncodeI32(e.Invoke(ctx, r, peer, params))}, nil
}

// Export returns the named entry point as a Func bound to the attached
// peer, or nil when there is no such entry point.
func (r *Router) Export(name string) wasmbridge.Func {
	if _, ok := Lookup(name); !ok {
		return nil
	}
	return wasmbridge.FuncOf(func(ctx context.Context, params ...uint64) ([]uint64, error) {
		return r.Call(ctx, nil, name, params...)
	})
}

// processRaw is process_message over guest memory. The caller's capacity
// is read from the out-len slot and clamped to tier; the written length is
// stored back. Length equal to capacity means the response may be
// truncated. A zero capacity is rejected before the request is processed.
func (r *Router) processRaw(ctx context.Context, peer wasmbridge.Peer, a *args, tier uint32) int32 {
	request := a.bytes()
	outPtr, outLenPtr := a.u32(), a.u32()
	if !peerOrErr(a, peer) {
		return 0
	}
	mem := peer.Memory()
	capacity, err := mem.ReadU32(outLenPtr)
	if err != nil {
		return i32(errors.StatusOf(err))
	}
	if capacity == 0 {
		return i32(errors.StatusInvalidArgument)
	}
	if capacity > tier {
		capacity = tier
	}

	scratch := buffer.NewScratch(r.bytes)
	defer scratch.Release()
	code := r.Process(ctx, request, scratch)

	n, truncated, err := scratch.CopyTo(mem, outPtr, capacity)
	if err != nil {
		return i32(errors.StatusOf(err))
	}
	if truncated {
		r.logger.Debug("response truncated",
			zap.Int("size", scratch.Len()),
			zap.Uint32("capacity", capacity))
	}
	if err := mem.WriteU32(outLenPtr, n); err != nil {
		return i32(errors.StatusOf(err))
	}
	return i32(code)
}
