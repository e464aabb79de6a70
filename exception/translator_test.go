package exception

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/buffer"
	"github.com/wippyai/wasm-bridge/callback"
	bridgeerrors "github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/linear"
)

const scratchAddr = 2048

func armed(t *testing.T, capacity uint32) (*Translator, *linear.Memory, *atomic.Int32) {
	t.Helper()
	mem := linear.NewMemory(1)
	calls := &atomic.Int32{}
	notify := callback.Handle{Name: "on_fault", Fn: wasmbridge.FuncOf(func(ctx context.Context, params ...uint64) ([]uint64, error) {
		if len(params) != 0 {
			t.Errorf("notify called with %d params, want 0", len(params))
		}
		calls.Add(1)
		return nil, nil
	})}
	tr := NewTranslator(nil)
	if err := tr.Arm(notify, buffer.Caller(mem, scratchAddr, 0, capacity)); err != nil {
		t.Fatal(err)
	}
	return tr, mem, calls
}

// reportOfSize returns a report whose encoding is exactly n bytes.
// An empty report encodes to 40 bytes.
func reportOfSize(t *testing.T, n int) Report {
	t.Helper()
	r := Report{Message: strings.Repeat("m", n-40)}
	data, err := r.Encode()
	if err != nil || len(data) != n {
		t.Fatalf("report encodes to %d bytes, want %d (%v)", len(data), n, err)
	}
	return r
}

func TestTranslator_States(t *testing.T) {
	tr := NewTranslator(nil)
	if tr.State() != Uninitialized {
		t.Errorf("State = %v", tr.State())
	}
	mem := linear.NewMemory(1)
	_ = tr.Arm(callback.Handle{}, buffer.Caller(mem, 0, 0, 32))
	if tr.State() != Armed {
		t.Errorf("State = %v after Arm", tr.State())
	}
	_ = tr.Arm(callback.Handle{}, buffer.Caller(mem, 0, 0, 0))
	if tr.State() != Uninitialized {
		t.Errorf("zero capacity did not disarm: %v", tr.State())
	}
	_ = tr.Arm(callback.Handle{}, buffer.Caller(mem, 0, 0, 32))
	tr.Disarm()
	if tr.State() != Uninitialized {
		t.Errorf("State = %v after Disarm", tr.State())
	}
}

func TestTranslator_ArmTransfersScratch(t *testing.T) {
	mem := linear.NewMemory(1)
	scratch := buffer.Caller(mem, scratchAddr, 0, 16)
	tr := NewTranslator(nil)
	if err := tr.Arm(callback.Handle{}, scratch); err != nil {
		t.Fatal(err)
	}
	if scratch.Valid() {
		t.Error("scratch handle still valid after Arm")
	}
	if err := tr.Arm(callback.Handle{}, scratch); err == nil {
		t.Error("arming with a moved buffer should fail")
	}
}

func TestRaise_CapacityScenario(t *testing.T) {
	tr, mem, calls := armed(t, 64)
	ctx := context.Background()

	first := reportOfSize(t, 40)
	if err := tr.Raise(ctx, first); err != nil {
		t.Fatal(err)
	}
	want, _ := first.Encode()
	got, _ := mem.Read(scratchAddr, 41)
	if !bytes.Equal(got[:40], want) || got[40] != 0 {
		t.Errorf("scratch = %q, want 40-byte record plus terminator", got)
	}
	if calls.Load() != 1 {
		t.Errorf("notify calls = %d, want 1", calls.Load())
	}

	second := reportOfSize(t, 100)
	if err := tr.Raise(ctx, second); err != nil {
		t.Fatal(err)
	}
	want, _ = second.Encode()
	got, _ = mem.Read(scratchAddr, 64)
	if !bytes.Equal(got[:63], want[:63]) || got[63] != 0 {
		t.Errorf("scratch = %q, want first 63 bytes plus terminator", got)
	}
	if calls.Load() != 2 {
		t.Errorf("notify calls = %d, want 2", calls.Load())
	}
	// nothing written past the buffer
	tail, _ := mem.Read(scratchAddr+64, 8)
	if !bytes.Equal(tail, make([]byte, 8)) {
		t.Errorf("bytes past capacity written: %v", tail)
	}
}

func TestRaise_Uninitialized(t *testing.T) {
	tr := NewTranslator(nil)
	if err := tr.Raise(context.Background(), Report{Kind: "k", Message: "m"}); err != nil {
		t.Fatal(err)
	}
	last, ok := tr.Last()
	if !ok || last.Message != "m" {
		t.Errorf("Last = %+v, %v", last, ok)
	}
}

func TestWrap_SuccessLeavesScratchUntouched(t *testing.T) {
	tr, mem, calls := armed(t, 64)
	_ = mem.Write(scratchAddr, bytes.Repeat([]byte{0x5A}, 64))

	v, err := Wrap(context.Background(), tr, func() (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Fatalf("Wrap = %d, %v", v, err)
	}
	got, _ := mem.Read(scratchAddr, 64)
	if !bytes.Equal(got, bytes.Repeat([]byte{0x5A}, 64)) {
		t.Error("scratch buffer modified on success")
	}
	if calls.Load() != 0 || tr.Faults() != 0 {
		t.Errorf("calls=%d faults=%d", calls.Load(), tr.Faults())
	}
}

func TestWrap_ExpectedErrorsPassThrough(t *testing.T) {
	tests := []error{
		bridgeerrors.NotFound(bridgeerrors.PhaseDomain, "battle", "7"),
		bridgeerrors.InvalidArgument(bridgeerrors.PhaseDomain, "bad action", 9),
		bridgeerrors.InvalidFormat(bridgeerrors.PhaseDecode, "envelope", nil),
		bridgeerrors.Unavailable(bridgeerrors.PhaseIndirection, "resource.loader"),
		bridgeerrors.AlreadyExists(bridgeerrors.PhaseDomain, "battle", "1"),
	}
	for _, want := range tests {
		tr, _, calls := armed(t, 64)
		_, err := Wrap(context.Background(), tr, func() (string, error) { return "", want })
		if err != want {
			t.Errorf("Wrap = %v, want %v unchanged", err, want)
		}
		if calls.Load() != 0 || tr.Faults() != 0 {
			t.Errorf("%v: expected error produced a report", want)
		}
	}
}

func TestWrap_ErrorFault(t *testing.T) {
	tr, mem, calls := armed(t, 256)
	cause := errors.New("disk on fire")

	v, err := Wrap(context.Background(), tr, func() (int, error) { return 7, cause })
	if v != 0 {
		t.Errorf("value = %d, want zero", v)
	}
	if !errors.Is(err, bridgeerrors.ErrInternal) || !errors.Is(err, cause) {
		t.Errorf("err = %v, want internal wrapping cause", err)
	}
	if calls.Load() != 1 {
		t.Errorf("notify calls = %d, want 1", calls.Load())
	}

	raw, _ := mem.Read(scratchAddr, 256)
	end := bytes.IndexByte(raw, 0)
	if end < 0 || end > 255 {
		t.Fatalf("no terminator within capacity")
	}
	r, err := DecodeReport(raw[:end+1])
	if err != nil {
		t.Fatal(err)
	}
	if r.Message != "disk on fire" || r.Kind != "*errors.errorString" {
		t.Errorf("report = %+v", r)
	}
}

func TestWrap_PanicFault(t *testing.T) {
	tr, mem, calls := armed(t, 512)

	s, err := Wrap(context.Background(), tr, func() (string, error) {
		panic("invariant broken")
	})
	if s != "" || !errors.Is(err, bridgeerrors.ErrInternal) {
		t.Errorf("Wrap = %q, %v", s, err)
	}
	if calls.Load() != 1 {
		t.Errorf("notify calls = %d", calls.Load())
	}
	raw, _ := mem.Read(scratchAddr, 512)
	if raw[511] != 0 {
		t.Error("record longer than capacity-1")
	}
	r, err := DecodeReport(raw[:bytes.IndexByte(raw, 0)+1])
	if err != nil {
		// the stack may have been truncated mid-string
		if !bytes.HasPrefix(raw, []byte(`{"type":"panic","message":"invariant broken"`)) {
			t.Errorf("scratch = %q", raw[:64])
		}
		return
	}
	if r.Kind != "panic" || r.Message != "invariant broken" {
		t.Errorf("report = %+v", r)
	}
}

func TestWrap_RuntimeErrorIsFatal(t *testing.T) {
	tr, _, calls := armed(t, 64)
	defer func() {
		if recover() == nil {
			t.Error("runtime.Error was swallowed")
		}
		if calls.Load() != 0 {
			t.Error("fatal fault produced a report")
		}
	}()

	var values []int
	i := 3
	_, _ = Wrap(context.Background(), tr, func() (int, error) {
		return values[i], nil
	})
}

func TestFromError_BridgeKind(t *testing.T) {
	err := bridgeerrors.Internal(bridgeerrors.PhaseDomain, "state corrupt", errors.New("root"))
	r := FromError(err)
	if r.Kind != "domain.internal" {
		t.Errorf("Kind = %q", r.Kind)
	}
	if r.Diagnostic != "root" {
		t.Errorf("Diagnostic = %q", r.Diagnostic)
	}
}
