package indirection

import (
	"context"
	"errors"
	"testing"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/callback"
	bridgeerrors "github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/linear"
)

type mapSource map[string]string

func (m mapSource) Load(ctx context.Context, name string) ([]byte, error) {
	v, ok := m[name]
	if !ok {
		return nil, bridgeerrors.NotFound(bridgeerrors.PhaseResource, "resource", name)
	}
	return []byte(v), nil
}

func TestRequest_NoLoader(t *testing.T) {
	b := New(callback.NewRegistry(nil), "", nil)
	status, data := b.Request(context.Background(), "cfg.json")
	if status != bridgeerrors.StatusUnavailable {
		t.Errorf("status = %v, want unavailable", status)
	}
	if len(data) != 0 {
		t.Errorf("data = %q, want empty", data)
	}
}

func TestRequest_RoundTrip(t *testing.T) {
	peer := linear.NewPeer(1)
	reg := callback.NewRegistry(nil)
	reg.Register(DefaultChannel, callback.Handle{
		Name: "loader",
		Peer: peer,
		Fn:   Serve(peer, mapSource{"cfg.json": `{"initial_health":300}`, "empty": ""}),
	})
	b := New(reg, "", nil)

	tests := []struct {
		name   string
		status bridgeerrors.Status
		data   string
	}{
		{"cfg.json", bridgeerrors.StatusSuccess, `{"initial_health":300}`},
		{"empty", bridgeerrors.StatusSuccess, ""},
		{"missing", bridgeerrors.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := b.Request(context.Background(), tt.name)
			if status != tt.status || string(data) != tt.data {
				t.Errorf("Request = (%v, %q), want (%v, %q)", status, data, tt.status, tt.data)
			}
			if peer.Heap().Live() != 0 {
				t.Errorf("blocks leaked: Live = %d", peer.Heap().Live())
			}
		})
	}
}

func TestLoad_ErrorKinds(t *testing.T) {
	reg := callback.NewRegistry(nil)
	b := New(reg, "custom", nil)
	if b.Channel() != "custom" {
		t.Errorf("Channel = %q", b.Channel())
	}

	_, err := b.Load(context.Background(), "x")
	if !errors.Is(err, bridgeerrors.ErrUnavailable) {
		t.Errorf("Load = %v, want unavailable", err)
	}

	reg.Register("custom", callback.Handle{Name: "nopeer", Fn: wasmbridge.FuncOf(func(ctx context.Context, params ...uint64) ([]uint64, error) {
		t.Error("loader without peer must not be called")
		return nil, nil
	})})
	if _, err := b.Load(context.Background(), "x"); !errors.Is(err, bridgeerrors.ErrInvalidArgument) {
		t.Errorf("Load = %v, want invalid_argument", err)
	}

	peer := linear.NewPeer(1)
	boom := errors.New("trap")
	reg.Register("custom", callback.Handle{Name: "trap", Peer: peer, Fn: wasmbridge.FuncOf(func(ctx context.Context, params ...uint64) ([]uint64, error) {
		return nil, boom
	})})
	if _, err := b.Load(context.Background(), "x"); !errors.Is(err, boom) {
		t.Errorf("Load = %v, want wrapped trap", err)
	}
	if peer.Heap().Live() != 0 {
		t.Errorf("argument block leaked: Live = %d", peer.Heap().Live())
	}
}

func TestServe_BadArity(t *testing.T) {
	peer := linear.NewPeer(1)
	fn := Serve(peer, mapSource{})
	res, err := fn.Call(context.Background(), 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if bridgeerrors.Status(int32(uint32(res[0]))) != bridgeerrors.StatusInvalidArgument {
		t.Errorf("status = %d", int32(uint32(res[0])))
	}
}

func TestServe_FailureClearsSlots(t *testing.T) {
	peer := linear.NewPeer(1)
	mem := peer.Linear()
	namePtr, nameLen, _ := peer.Put([]byte("nope"))
	_ = mem.WriteU32(64, 0xDEAD)
	_ = mem.WriteU32(68, 0xBEEF)

	res, _ := Serve(peer, mapSource{}).Call(context.Background(),
		uint64(namePtr), uint64(nameLen), 64, 68)
	if bridgeerrors.Status(int32(uint32(res[0]))) != bridgeerrors.StatusNotFound {
		t.Errorf("status = %d", int32(uint32(res[0])))
	}
	p, _ := mem.ReadU32(64)
	l, _ := mem.ReadU32(68)
	if p != 0 || l != 0 {
		t.Errorf("slots = (%#x, %#x), want cleared", p, l)
	}
}
