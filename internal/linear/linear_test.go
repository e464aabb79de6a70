package linear

import (
	"bytes"
	"context"
	"testing"

	wasmbridge "github.com/wippyai/wasm-bridge"
)

func TestMemory_ReadWrite(t *testing.T) {
	mem := NewMemory(1)
	if mem.Size() != PageSize {
		t.Fatalf("Size = %d, want %d", mem.Size(), PageSize)
	}

	if err := mem.Write(100, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := mem.Read(100, 4)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("Read = %v", got)
	}

	if err := mem.WriteU32(0, 0x12345678); err != nil {
		t.Fatal(err)
	}
	b, _ := mem.Read(0, 4)
	if !bytes.Equal(b, []byte{0x78, 0x56, 0x34, 0x12}) {
		t.Errorf("WriteU32 not little-endian: %x", b)
	}
	v, _ := mem.ReadU32(0)
	if v != 0x12345678 {
		t.Errorf("ReadU32 = %#x", v)
	}

	if err := mem.WriteU64(8, 0x123456789ABCDEF0); err != nil {
		t.Fatal(err)
	}
	v64, _ := mem.ReadU64(8)
	if v64 != 0x123456789ABCDEF0 {
		t.Errorf("ReadU64 = %#x", v64)
	}
}

func TestMemory_OutOfBounds(t *testing.T) {
	mem := NewMemory(1)
	if _, err := mem.Read(PageSize, 1); err == nil {
		t.Error("expected error reading past the end")
	}
	if err := mem.Write(PageSize-1, []byte{1, 2}); err == nil {
		t.Error("expected error writing past the end")
	}
	if _, err := mem.Read(0xFFFFFFFF, 2); err == nil {
		t.Error("expected error on offset overflow")
	}
}

func TestAllocator_FirstFit(t *testing.T) {
	a := NewAllocator(16, 1024)

	p1, err := a.Alloc(10, 1)
	if err != nil {
		t.Fatal(err)
	}
	if p1 != 16 {
		t.Errorf("first alloc = %d, want 16", p1)
	}
	p2, _ := a.Alloc(8, 8)
	if p2%8 != 0 || p2 < p1+10 {
		t.Errorf("second alloc = %d, not aligned or overlapping", p2)
	}

	a.Free(p1, 10, 1)
	p3, _ := a.Alloc(4, 1)
	if p3 != p1 {
		t.Errorf("freed space not reused: got %d, want %d", p3, p1)
	}
	if a.Live() != 2 {
		t.Errorf("Live = %d, want 2", a.Live())
	}
	if !a.Owns(p2) || a.Owns(p2+1) {
		t.Error("Owns mismatch")
	}
}

func TestAllocator_Exhausted(t *testing.T) {
	a := NewAllocator(16, 64)
	if _, err := a.Alloc(100, 1); err == nil {
		t.Error("expected allocation failure")
	}
	if _, err := a.Alloc(4, 3); err == nil {
		t.Error("expected error for non power of two alignment")
	}
}

func TestPeer_Exports(t *testing.T) {
	p := NewPeer(1)
	if p.Export("missing") != nil {
		t.Error("expected nil for missing export")
	}

	called := false
	p.SetExport("ping", wasmbridge.FuncOf(func(ctx context.Context, params ...uint64) ([]uint64, error) {
		called = true
		return []uint64{uint64(len(params))}, nil
	}))
	res, err := p.Export("ping").Call(context.Background(), 1, 2)
	if err != nil || !called || res[0] != 2 {
		t.Fatalf("Call = %v, %v (called=%v)", res, err, called)
	}

	p.SetExport("ping", nil)
	if p.Export("ping") != nil {
		t.Error("export not removed")
	}
}

func TestPeer_PutGet(t *testing.T) {
	p := NewPeer(1)
	ptr, n, err := p.Put([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if ptr < reserved {
		t.Errorf("ptr %d inside reserved range", ptr)
	}
	got, err := p.Get(ptr, n)
	if err != nil || string(got) != "hello" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	p.Allocator().Free(ptr, n, 1)
	if p.Heap().Live() != 0 {
		t.Errorf("Live = %d after free", p.Heap().Live())
	}
}
