package buffer

import (
	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// SlotsSize is the byte size of a pointer slot followed by a length slot.
const SlotsSize = 8

// Slots are the caller-supplied output locations of a double-indirection
// call: a u32 address slot and a u32 length slot.
type Slots struct {
	PtrAddr uint32
	LenAddr uint32
}

// Adjacent returns slots laid out as (ptr, len) starting at base.
func Adjacent(base uint32) Slots {
	return Slots{PtrAddr: base, LenAddr: base + 4}
}

// Set writes ptr and length into the slots.
func (s Slots) Set(mem wasmbridge.Memory, ptr, length uint32) error {
	if err := mem.WriteU32(s.PtrAddr, ptr); err != nil {
		return err
	}
	return mem.WriteU32(s.LenAddr, length)
}

// Clear writes (0, 0).
func (s Slots) Clear(mem wasmbridge.Memory) error {
	return s.Set(mem, 0, 0)
}

// AllocOut allocates a block sized exactly to data, copies data into it and
// writes its address and length into slots. Empty data writes (0, 0) and
// allocates nothing. The block is never pooled; the caller releases it.
func AllocOut(mem wasmbridge.Memory, alloc wasmbridge.Allocator, slots Slots, data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, slots.Clear(mem)
	}
	size := uint32(len(data))
	ptr, err := alloc.Alloc(size, 1)
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseBuffer, size, 1, err)
	}
	if err := mem.Write(ptr, data); err != nil {
		alloc.Free(ptr, size, 1)
		return 0, err
	}
	if err := slots.Set(mem, ptr, size); err != nil {
		alloc.Free(ptr, size, 1)
		return 0, err
	}
	return ptr, nil
}

// ReadOut reads the slots written by a callee and returns the block as a
// CalleeAllocated Buffer released through alloc.
func ReadOut(mem wasmbridge.Memory, alloc wasmbridge.Allocator, slots Slots) (*Buffer, error) {
	ptr, err := mem.ReadU32(slots.PtrAddr)
	if err != nil {
		return nil, err
	}
	length, err := mem.ReadU32(slots.LenAddr)
	if err != nil {
		return nil, err
	}
	if ptr == 0 && length != 0 {
		return nil, errors.New(errors.PhaseBuffer, errors.KindInvalidFormat).
			Detail("null address with length %d", length).
			Build()
	}
	return Callee(mem, alloc, ptr, length), nil
}
